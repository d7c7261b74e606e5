// Package crisis handles turns whose risk crosses the crisis threshold.
package crisis

import (
	"math"
	"strings"
	"time"

	"github.com/PabloGalante/farum-therapy/internal/domain"
	"github.com/PabloGalante/farum-therapy/internal/policy"
)

// PatternScorer scores conversation history for risk patterns.
type PatternScorer interface {
	Score(history []domain.Message) float64
}

// NoPatterns is the default scorer; it never contributes risk.
type NoPatterns struct{}

func (NoPatterns) Score([]domain.Message) float64 { return 0 }

// Evaluator is a keyword-only risk check that does not depend on the text classifier,
// so the crisis path keeps working when the classifier is degraded.
type Evaluator struct {
	keywords policy.KeywordTable
	patterns PatternScorer
	now      func() time.Time
}

// NewEvaluator builds an evaluator; a nil scorer means NoPatterns.
func NewEvaluator(pol *policy.Policy, patterns PatternScorer) *Evaluator {
	if patterns == nil {
		patterns = NoPatterns{}
	}
	return &Evaluator{
		keywords: pol.Crisis,
		patterns: patterns,
		now:      time.Now,
	}
}

// EvaluateRisk matches keywords as substrings of the lowercased content.
func (e *Evaluator) EvaluateRisk(msg domain.Message, history []domain.Message) domain.SafetyStatus {
	content := strings.ToLower(msg.Content)

	risk := 0.0
	indicators := []string{}
	for _, k := range e.keywords.Keywords {
		if strings.Contains(content, k.Term) {
			risk = math.Max(risk, k.Weight)
			indicators = append(indicators, k.Term)
		}
	}

	if len(history) > 0 {
		risk = math.Max(risk, e.patterns.Score(history))
	}
	risk = math.Max(0, math.Min(1, risk))

	return domain.SafetyStatus{
		RiskLevel:          risk,
		CrisisIndicators:   indicators,
		LastAssessment:     e.now(),
		RecommendedActions: recommendations(risk),
	}
}

func recommendations(risk float64) []string {
	switch {
	case risk > 0.8:
		return []string{"Immediate professional help required", "Crisis hotline contact"}
	case risk > 0.6:
		return []string{"Suggest professional consultation", "Provide support resources"}
	}
	return []string{"Monitor situation", "Offer support"}
}
