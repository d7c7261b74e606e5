package domain

import "context"

// Sentiment is the classifier signal consumed by the assessment stage.
type Sentiment struct {
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`
}

// TextClassifier scores free text. Failures surface as ErrClassifierUnavailable.
type TextClassifier interface {
	Classify(ctx context.Context, text string) (Sentiment, error)
}

// GenerationRequest is what the pipeline sends to a text generation backend.
type GenerationRequest struct {
	System      string
	UserText    string
	Model       string
	Temperature float32
	MaxTokens   int
}

// TextGenerator produces a free-text reply for a system instruction and a user message.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// SessionStore holds the in-process map of session id to ConversationState.
// Revisions make commits optimistic: a commit against a stale revision is rejected.
type SessionStore interface {
	Create(state *ConversationState) (revision uint64, err error)
	Get(id SessionID) (state *ConversationState, revision uint64, err error)
	Commit(state *ConversationState, revision uint64) (uint64, error)
	Delete(id SessionID) error
	IdleSince(cutoff Timestamp) []SessionID
	Len() int
}
