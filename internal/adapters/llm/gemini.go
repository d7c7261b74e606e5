package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/farum-therapy/internal/domain"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient generates replies through the Gemini API or Vertex AI.
type GeminiClient struct {
	client    *genai.Client
	modelName string
	topP      float32
}

// NewVertexClient uses Application Default Credentials against a GCP project.
func NewVertexClient(ctx context.Context, projectID, location, modelName string) (*GeminiClient, error) {
	if projectID == "" || location == "" {
		return nil, errors.New("vertex backend needs FARUM_GCP_PROJECT and FARUM_GCP_LOCATION")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}
	return newGeminiClient(client, modelName), nil
}

// NewGeminiAPIClient talks to the public Gemini API with an API key.
func NewGeminiAPIClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini backend needs GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return newGeminiClient(client, modelName), nil
}

func newGeminiClient(client *genai.Client, modelName string) *GeminiClient {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiClient{
		client:    client,
		modelName: modelName,
		topP:      0.9,
	}
}

// Generate implements domain.TextGenerator.
func (g *GeminiClient) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = g.modelName
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.UserText, genai.RoleUser),
	}

	temp := req.Temperature
	topP := g.topP
	cfg := &genai.GenerateContentConfig{
		// the SDK expects the system instruction as a user-role content
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	res, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate content: %w", domain.ErrGenerationFailed, err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned empty text", domain.ErrGenerationFailed)
	}
	return text, nil
}
