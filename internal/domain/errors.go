package domain

import "errors"

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionExists         = errors.New("session already exists")
	ErrStaleRevision         = errors.New("session changed during turn")
	ErrEmptyMessage          = errors.New("message content is empty")
	ErrClassifierUnavailable = errors.New("text classifier unavailable")
	ErrGenerationFailed      = errors.New("text generation failed")
	ErrRateLimited           = errors.New("too many messages for session")
	ErrTurnDiscarded         = errors.New("turn discarded before commit")
)
