// Package sentiment provides the text classifiers behind domain.TextClassifier.
package sentiment

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/farum-therapy/internal/domain"
)

//go:embed lexicon.yaml
var lexiconYAML []byte

const negationFactor = -0.5

type wordScore struct {
	polarity     float64
	subjectivity float64
}

type lexiconFile struct {
	Words     map[string][2]float64 `yaml:"words"`
	Negators  []string              `yaml:"negators"`
	Modifiers map[string]float64    `yaml:"modifiers"`
}

// LexiconClassifier scores text offline from a small word list. Polarity is the mean of the
// scored words after negation and modifiers; subjectivity is their mean subjectivity.
// Text with no scored words is neutral and objective.
type LexiconClassifier struct {
	words     map[string]wordScore
	negators  map[string]bool
	modifiers map[string]float64
}

func NewLexiconClassifier() (*LexiconClassifier, error) {
	return parseLexicon(lexiconYAML)
}

func parseLexicon(data []byte) (*LexiconClassifier, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}

	c := &LexiconClassifier{
		words:     make(map[string]wordScore, len(f.Words)),
		negators:  make(map[string]bool, len(f.Negators)),
		modifiers: make(map[string]float64, len(f.Modifiers)),
	}
	for w, s := range f.Words {
		if s[0] < -1 || s[0] > 1 || s[1] < 0 || s[1] > 1 {
			return nil, fmt.Errorf("lexicon word %q: score %v out of range", w, s)
		}
		c.words[strings.ToLower(w)] = wordScore{polarity: s[0], subjectivity: s[1]}
	}
	for _, n := range f.Negators {
		c.negators[strings.ToLower(n)] = true
	}
	for m, v := range f.Modifiers {
		c.modifiers[strings.ToLower(m)] = v
	}
	return c, nil
}

// Classify implements domain.TextClassifier.
func (c *LexiconClassifier) Classify(ctx context.Context, text string) (domain.Sentiment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sentiment{}, fmt.Errorf("%w: %w", domain.ErrClassifierUnavailable, err)
	}

	var (
		polSum, subjSum float64
		scored          int
		factor          = 1.0
	)
	for _, tok := range tokens(text) {
		if c.negators[tok] {
			factor *= negationFactor
			continue
		}
		if m, ok := c.modifiers[tok]; ok {
			factor *= m
			continue
		}
		ws, ok := c.words[tok]
		if !ok {
			continue
		}
		polSum += ws.polarity * factor
		subjSum += ws.subjectivity
		scored++
		factor = 1.0
	}

	if scored == 0 {
		return domain.Sentiment{}, nil
	}
	return domain.Sentiment{
		Polarity:     math.Max(-1, math.Min(1, polSum/float64(scored))),
		Subjectivity: math.Max(0, math.Min(1, subjSum/float64(scored))),
	}, nil
}

func tokens(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "’", "'")
	fields := strings.Fields(text)
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
