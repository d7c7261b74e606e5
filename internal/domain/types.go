package domain

import (
	"strings"
	"time"
)

type SessionID string
type MessageID string

type Timestamp = time.Time

// Sender tags who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Emotion is the primary emotion label produced by the assessment grid.
type Emotion string

const (
	EmotionDetached   Emotion = "detached"
	EmotionSad        Emotion = "sad"
	EmotionDistressed Emotion = "distressed"
	EmotionTired      Emotion = "tired"
	EmotionAnxious    Emotion = "anxious"
	EmotionFrustrated Emotion = "frustrated"
	EmotionNeutral    Emotion = "neutral"
	EmotionFocused    Emotion = "focused"
	EmotionEngaged    Emotion = "engaged"
	EmotionCalm       Emotion = "calm"
	EmotionPleased    Emotion = "pleased"
	EmotionHappy      Emotion = "happy"
	EmotionContent    Emotion = "content"
	EmotionExcited    Emotion = "excited"
	EmotionElated     Emotion = "elated"
)

// Framework is the therapeutic technique policy active for a session.
type Framework string

const (
	FrameworkCBT             Framework = "cognitive_behavioral"
	FrameworkDBT             Framework = "dialectical_behavioral"
	FrameworkPersonCentered  Framework = "person_centered"
	FrameworkMindfulness     Framework = "mindfulness"
	FrameworkSolutionFocused Framework = "solution_focused"
)

// Frameworks lists every framework in a stable order.
var Frameworks = []Framework{
	FrameworkCBT,
	FrameworkDBT,
	FrameworkPersonCentered,
	FrameworkMindfulness,
	FrameworkSolutionFocused,
}

func (f Framework) Valid() bool {
	switch f {
	case FrameworkCBT, FrameworkDBT, FrameworkPersonCentered, FrameworkMindfulness, FrameworkSolutionFocused:
		return true
	}
	return false
}

// DisplayName is the short human label used in prompts and logs.
func (f Framework) DisplayName() string {
	switch f {
	case FrameworkCBT:
		return "CBT"
	case FrameworkDBT:
		return "DBT"
	case FrameworkPersonCentered:
		return "person-centered"
	case FrameworkMindfulness:
		return "mindfulness"
	case FrameworkSolutionFocused:
		return "solution-focused"
	}
	return string(f)
}

// ParseFramework accepts either the wire value or the display name.
func ParseFramework(s string) (Framework, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, f := range Frameworks {
		if norm == string(f) || norm == strings.ToLower(f.DisplayName()) {
			return f, true
		}
	}
	return "", false
}

// Metadata keys shared by the pipeline and the transports.
const (
	MetaCrisis            = "crisis"
	MetaEscalated         = "escalated"
	MetaRiskLevel         = "risk_level"
	MetaCrisisIndicators  = "crisis_indicators"
	MetaEvaluatorRisk     = "evaluator_risk_level"
	MetaFallback          = "fallback"
	MetaFallbackReason    = "fallback_reason"
	MetaError             = "error"
	MetaErrorType         = "error_type"
	MetaTherapeuticIntent = "therapeutic_intent"
	MetaEmotionalTarget   = "emotional_target"
	MetaMessageType       = "message_type"
	MetaAttempts          = "attempts"
)
