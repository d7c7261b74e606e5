package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/farum-therapy/internal/domain"
)

const echoLimit = 80

// MockGenerator is the offline backend used for local runs and the CLI without credentials.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (m *MockGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	said := []rune(strings.TrimSpace(req.UserText))
	if len(said) > echoLimit {
		said = append(said[:echoLimit], []rune("...")...)
	}
	return fmt.Sprintf(
		"I hear you. You said %q. Could you tell me a little more about how that makes you feel, "+
			"and what has been on your mind the most today?", string(said)), nil
}
