// Package assessment turns a user message into an emotional snapshot and a safety status.
package assessment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/PabloGalante/farum-therapy/internal/domain"
	"github.com/PabloGalante/farum-therapy/internal/policy"
)

const (
	historyWindow        = 3
	historyNegativeLimit = -0.7
	historyRiskStep      = 0.1
	severeValence        = -0.8
	severeIntensity      = 0.7
	severeBump           = 0.2
)

// Engine is stateless apart from its keyword table and may be shared across sessions.
type Engine struct {
	classifier domain.TextClassifier
	keywords   policy.KeywordTable
	now        func() time.Time
}

func NewEngine(classifier domain.TextClassifier, pol *policy.Policy) *Engine {
	return &Engine{
		classifier: classifier,
		keywords:   pol.Assessment,
		now:        time.Now,
	}
}

// Analyze scores msg against the prior history (most recent last).
// A classifier failure is returned wrapped in domain.ErrClassifierUnavailable.
func (e *Engine) Analyze(
	ctx context.Context,
	msg domain.Message,
	history []domain.Message,
) (domain.EmotionalState, domain.SafetyStatus, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return domain.EmotionalState{}, domain.SafetyStatus{}, domain.ErrEmptyMessage
	}

	sentiment, err := e.classify(ctx, msg.Content)
	if err != nil {
		return domain.EmotionalState{}, domain.SafetyStatus{}, err
	}

	emotional := toEmotionalState(sentiment)

	historyRisk, err := e.historyRisk(ctx, history)
	if err != nil {
		return domain.EmotionalState{}, domain.SafetyStatus{}, err
	}

	score, indicators := e.keywordScore(msg.Content)
	if emotional.Valence < severeValence && emotional.Intensity > severeIntensity {
		score += severeBump
	}

	risk := clamp(math.Max(score, historyRisk), 0, 1)

	safety := domain.SafetyStatus{
		RiskLevel:          risk,
		CrisisIndicators:   indicators,
		LastAssessment:     e.now(),
		RecommendedActions: Recommendations(risk),
	}
	return emotional, safety, nil
}

func (e *Engine) classify(ctx context.Context, text string) (domain.Sentiment, error) {
	s, err := e.classifier.Classify(ctx, text)
	if err != nil {
		return domain.Sentiment{}, fmt.Errorf("%w: %w", domain.ErrClassifierUnavailable, err)
	}
	return domain.Sentiment{
		Polarity:     clamp(s.Polarity, -1, 1),
		Subjectivity: clamp(s.Subjectivity, 0, 1),
	}, nil
}

func toEmotionalState(s domain.Sentiment) domain.EmotionalState {
	return domain.EmotionalState{
		PrimaryEmotion:    LookupEmotion(s.Polarity, s.Subjectivity),
		Intensity:         s.Subjectivity,
		Valence:           s.Polarity,
		Arousal:           Arousal(s.Polarity, s.Subjectivity),
		SecondaryEmotions: []string{},
	}
}

// keywordScore returns the highest weight among matched tokens and the distinct matched terms.
func (e *Engine) keywordScore(text string) (float64, []string) {
	score := 0.0
	indicators := []string{}
	seen := map[string]bool{}

	for _, tok := range Tokenize(text) {
		w, ok := e.keywords.Lookup(tok)
		if !ok {
			continue
		}
		score = math.Max(score, w)
		if !seen[tok] {
			seen[tok] = true
			indicators = append(indicators, tok)
		}
	}
	return score, indicators
}

func (e *Engine) historyRisk(ctx context.Context, history []domain.Message) (float64, error) {
	recent := history
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}

	risk := 0.0
	for _, m := range recent {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		s, err := e.classify(ctx, m.Content)
		if err != nil {
			return 0, err
		}
		if s.Polarity < historyNegativeLimit {
			risk += historyRiskStep
		}
	}
	return math.Min(1, risk), nil
}

// Tokenize splits on whitespace, lowercases, and trims punctuation around each token.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Recommendations picks the directive list for a risk level.
func Recommendations(risk float64) []string {
	switch {
	case risk > 0.8:
		return []string{
			"Immediate professional intervention recommended",
			"Provide crisis hotline information",
		}
	case risk > 0.6:
		return []string{
			"Suggest professional consultation",
			"Offer grounding exercises",
		}
	case risk > 0.4:
		return []string{
			"Monitor closely",
			"Provide coping strategies",
		}
	}
	return []string{}
}
