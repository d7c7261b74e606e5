// Package framework chooses the therapeutic framework for a turn and keeps session goals in step with it.
package framework

import (
	"slices"
	"strings"

	"github.com/PabloGalante/farum-therapy/internal/domain"
)

// HighRiskLevel is the risk above which DBT is chosen regardless of emotion.
const HighRiskLevel = 0.5

// concernFrameworks maps a clinical concern to the framework that treats it.
var concernFrameworks = map[string]domain.Framework{
	"anxiety":                 domain.FrameworkCBT,
	"depression":              domain.FrameworkCBT,
	"emotional_dysregulation": domain.FrameworkDBT,
	"trauma":                  domain.FrameworkPersonCentered,
	"stress":                  domain.FrameworkMindfulness,
	"relationship_issues":     domain.FrameworkSolutionFocused,
}

// emotionConcerns aliases grid labels that name a concern in adjective form.
// Other grid labels fall through to the default.
var emotionConcerns = map[domain.Emotion]string{
	domain.EmotionAnxious: "anxiety",
}

var frameworkGoals = map[domain.Framework][]string{
	domain.FrameworkCBT: {
		"Identify thought patterns",
		"Challenge cognitive distortions",
		"Develop coping strategies",
	},
	domain.FrameworkDBT: {
		"Improve emotion regulation",
		"Build distress tolerance",
		"Practice mindfulness",
	},
	domain.FrameworkPersonCentered: {
		"Explore feelings and experiences",
		"Build self-awareness",
		"Develop self-acceptance",
	},
	domain.FrameworkMindfulness: {
		"Present moment awareness",
		"Non-judgmental observation",
		"Emotional awareness",
	},
	domain.FrameworkSolutionFocused: {
		"Identify solutions",
		"Set achievable goals",
		"Build on strengths",
	},
}

// Selector is stateless and safe for concurrent use.
type Selector struct{}

func NewSelector() *Selector {
	return &Selector{}
}

// Select applies the rules in order: high risk, emotion table, person-centered default.
func (s *Selector) Select(emotional domain.EmotionalState, safety domain.SafetyStatus) domain.Framework {
	if safety.RiskLevel > HighRiskLevel {
		return domain.FrameworkDBT
	}

	label := strings.ToLower(strings.TrimSpace(string(emotional.PrimaryEmotion)))
	if f, ok := concernFrameworks[label]; ok {
		return f
	}
	if concern, ok := emotionConcerns[domain.Emotion(label)]; ok {
		return concernFrameworks[concern]
	}
	return domain.FrameworkPersonCentered
}

// Goals returns a fresh copy of the goal list for f.
func Goals(f domain.Framework) []string {
	goals, ok := frameworkGoals[f]
	if !ok {
		goals = frameworkGoals[domain.FrameworkPersonCentered]
	}
	return slices.Clone(goals)
}

// Commit switches ts to f. When f differs from the active framework the interventions are
// cleared and the goals regenerated; otherwise ts is left untouched. It reports whether a change happened.
func Commit(ts *domain.TherapeuticState, f domain.Framework) bool {
	if ts.ActiveFramework == f {
		return false
	}
	ts.ActiveFramework = f
	ts.InterventionsUsed = []string{}
	ts.SessionGoals = Goals(f)
	return true
}
