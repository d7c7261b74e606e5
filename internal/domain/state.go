package domain

import (
	"maps"
	"slices"
	"time"
)

// DefaultMaxHistory bounds the rolling message window when no limit is configured.
const DefaultMaxHistory = 10

// EmotionalState is recomputed every turn and replaces the previous one.
type EmotionalState struct {
	PrimaryEmotion    Emotion  `json:"primary_emotion"`
	Intensity         float64  `json:"intensity"`
	Valence           float64  `json:"valence"`
	Arousal           float64  `json:"arousal"`
	SecondaryEmotions []string `json:"secondary_emotions"`
}

// SafetyStatus is the per-turn risk snapshot.
type SafetyStatus struct {
	RiskLevel          float64   `json:"risk_level"`
	CrisisIndicators   []string  `json:"crisis_indicators"`
	LastAssessment     Timestamp `json:"last_assessment"`
	RecommendedActions []string  `json:"recommended_actions"`
}

// HasIndicator reports whether term was matched during the assessment.
func (s SafetyStatus) HasIndicator(term string) bool {
	return slices.Contains(s.CrisisIndicators, term)
}

// TherapeuticState lives for the whole session and is mutated in place.
// SessionGoals is derived from ActiveFramework; change both through framework.Commit.
type TherapeuticState struct {
	ActiveFramework   Framework          `json:"active_framework"`
	SessionGoals      []string           `json:"session_goals"`
	ProgressMarkers   map[string]float64 `json:"progress_markers"`
	InterventionsUsed []string           `json:"interventions_used"`
}

// ConversationState is the per-session aggregate.
type ConversationState struct {
	SessionID        SessionID        `json:"session_id"`
	Messages         []Message        `json:"messages"`
	EmotionalState   EmotionalState   `json:"emotional_state"`
	TherapeuticState TherapeuticState `json:"therapeutic_state"`
	SafetyStatus     SafetyStatus     `json:"safety_status"`
	Metadata         map[string]any   `json:"metadata"`
	CreatedAt        Timestamp        `json:"created_at"`
	UpdatedAt        Timestamp        `json:"updated_at"`
}

// NewConversationState returns the initial state of a fresh session.
// Goals start empty and are filled on the first framework change.
func NewConversationState(id SessionID, now time.Time) *ConversationState {
	return &ConversationState{
		SessionID: id,
		Messages:  []Message{},
		EmotionalState: EmotionalState{
			PrimaryEmotion:    EmotionNeutral,
			SecondaryEmotions: []string{},
		},
		TherapeuticState: TherapeuticState{
			ActiveFramework:   FrameworkPersonCentered,
			SessionGoals:      []string{},
			ProgressMarkers:   map[string]float64{},
			InterventionsUsed: []string{},
		},
		SafetyStatus: SafetyStatus{
			CrisisIndicators:   []string{},
			LastAssessment:     now,
			RecommendedActions: []string{},
		},
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy suitable as a working copy for one turn.
// Messages are shared by value; their metadata maps are never mutated.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = slices.Clone(s.Messages)
	out.EmotionalState.SecondaryEmotions = slices.Clone(s.EmotionalState.SecondaryEmotions)
	out.SafetyStatus.CrisisIndicators = slices.Clone(s.SafetyStatus.CrisisIndicators)
	out.SafetyStatus.RecommendedActions = slices.Clone(s.SafetyStatus.RecommendedActions)
	out.TherapeuticState.SessionGoals = slices.Clone(s.TherapeuticState.SessionGoals)
	out.TherapeuticState.InterventionsUsed = slices.Clone(s.TherapeuticState.InterventionsUsed)
	out.TherapeuticState.ProgressMarkers = maps.Clone(s.TherapeuticState.ProgressMarkers)
	out.Metadata = maps.Clone(s.Metadata)
	return &out
}

// AppendMessage adds msg to the history and evicts the oldest entries beyond limit.
func (s *ConversationState) AppendMessage(msg Message, limit int) {
	if limit <= 0 {
		limit = DefaultMaxHistory
	}
	s.Messages = append(s.Messages, msg)
	if over := len(s.Messages) - limit; over > 0 {
		s.Messages = slices.Delete(s.Messages, 0, over)
	}
}

// History returns the messages that precede the last one.
func (s *ConversationState) History() []Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[:len(s.Messages)-1]
}
