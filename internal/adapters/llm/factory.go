package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/farum-therapy/internal/domain"
)

// Backend names accepted by NewGenerator.
const (
	BackendMock   = "mock"
	BackendGemini = "gemini"
	BackendVertex = "vertex"
	BackendOpenAI = "openai"
)

type Settings struct {
	Backend       string
	Model         string
	GeminiAPIKey  string
	GCPProject    string
	GCPLocation   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewGenerator picks the generation backend named in s.
func NewGenerator(ctx context.Context, s Settings) (domain.TextGenerator, error) {
	switch s.Backend {
	case BackendMock, "":
		return NewMockGenerator(), nil
	case BackendGemini:
		c, err := NewGeminiAPIClient(ctx, s.GeminiAPIKey, s.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendVertex:
		c, err := NewVertexClient(ctx, s.GCPProject, s.GCPLocation, s.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendOpenAI:
		c, err := NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIBaseURL, s.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown llm backend %q", s.Backend)
}

// DefaultModel names the model used for backend when none is configured.
func DefaultModel(backend string) string {
	switch backend {
	case BackendGemini, BackendVertex:
		return DefaultGeminiModel
	case BackendOpenAI:
		return DefaultOpenAIModel
	}
	return "mock"
}
