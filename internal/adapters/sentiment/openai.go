package sentiment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/PabloGalante/farum-therapy/internal/domain"
)

const DefaultOpenAIModel = "gpt-4o-mini"

const classifierInstructions = `You rate the sentiment of one message written by a person talking to a support assistant.
Return polarity from -1 (very negative) to 1 (very positive) and subjectivity from 0 (purely factual) to 1 (purely personal opinion or feeling).
Rate only the message itself. Do not answer it.`

type sentimentResponse struct {
	Polarity     float64 `json:"polarity" jsonschema:"required" jsonschema_description:"Sentiment from -1 (very negative) to 1 (very positive)"`
	Subjectivity float64 `json:"subjectivity" jsonschema:"required" jsonschema_description:"From 0 (factual) to 1 (personal feeling)"`
}

var sentimentSchema = generateSchema[sentimentResponse]()

// OpenAIClassifier asks a model for polarity and subjectivity through the Responses API
// with a strict JSON schema.
type OpenAIClassifier struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

// NewOpenAIClassifier builds the classifier. Extra options (base URL, retries) are passed to the client.
func NewOpenAIClassifier(apiKey, model string, opts ...option.RequestOption) (*OpenAIClassifier, error) {
	if apiKey == "" {
		return nil, errors.New("openai classifier needs OPENAI_API_KEY")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIClassifier{
		client:    &client,
		model:     model,
		maxTokens: 100,
	}, nil
}

// Classify implements domain.TextClassifier.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (domain.Sentiment, error) {
	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        "Sentiment",
			Schema:      sentimentSchema,
			Strict:      openai.Bool(true),
			Description: openai.String("Sentiment scores for one message"),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(c.maxTokens),
		Instructions:    openai.String(classifierInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return domain.Sentiment{}, fmt.Errorf("%w: responses call: %w", domain.ErrClassifierUnavailable, err)
	}

	var out sentimentResponse
	if err := decodeModelJSON(resp.OutputText(), &out); err != nil {
		return domain.Sentiment{}, fmt.Errorf("%w: decode sentiment: %w", domain.ErrClassifierUnavailable, err)
	}
	if math.IsNaN(out.Polarity) || math.IsNaN(out.Subjectivity) {
		return domain.Sentiment{}, fmt.Errorf("%w: model returned NaN", domain.ErrClassifierUnavailable)
	}

	return domain.Sentiment{
		Polarity:     math.Max(-1, math.Min(1, out.Polarity)),
		Subjectivity: math.Max(0, math.Min(1, out.Subjectivity)),
	}, nil
}
