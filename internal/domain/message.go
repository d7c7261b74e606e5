package domain

import (
	"maps"

	"github.com/google/uuid"
)

// Message is an immutable turn record. Build it with NewMessage and treat it as read-only afterwards.
type Message struct {
	ID        MessageID      `json:"id"`
	Content   string         `json:"content"`
	Sender    Sender         `json:"sender"`
	Timestamp Timestamp      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewMessage(sender Sender, content string, at Timestamp, metadata map[string]any) Message {
	return Message{
		ID:        MessageID(uuid.NewString()),
		Content:   content,
		Sender:    sender,
		Timestamp: at,
		Metadata:  maps.Clone(metadata),
	}
}

// Flag reports whether a boolean metadata key is set to true.
func (m Message) Flag(key string) bool {
	v, ok := m.Metadata[key].(bool)
	return ok && v
}
