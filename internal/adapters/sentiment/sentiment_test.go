package sentiment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-therapy/internal/adapters/sentiment"
	"github.com/PabloGalante/farum-therapy/internal/domain"
)

func TestLexiconClassifier_Scores(t *testing.T) {
	c, err := sentiment.NewLexiconClassifier()
	require.NoError(t, err)

	tests := []struct {
		text         string
		polarity     float64
		subjectivity float64
	}{
		{text: "I'm a bit anxious about my exam", polarity: -0.3, subjectivity: 0.6},
		{text: "I am not happy", polarity: -0.4, subjectivity: 1.0},
		{text: "I feel really good today", polarity: 0.91, subjectivity: 0.6},
		{text: "Sad, but hopeful!", polarity: 0.05, subjectivity: 0.9},
		{text: "EXTREMELY terrible", polarity: -1.0, subjectivity: 1.0},
		{text: "The meeting is at 3pm.", polarity: 0, subjectivity: 0},
		{text: "I don’t feel good", polarity: -0.35, subjectivity: 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.InDelta(t, tt.polarity, got.Polarity, 1e-9)
			assert.InDelta(t, tt.subjectivity, got.Subjectivity, 1e-9)
		})
	}
}

func TestLexiconClassifier_CancelledContext(t *testing.T) {
	c, err := sentiment.NewLexiconClassifier()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Classify(ctx, "hello")
	assert.ErrorIs(t, err, domain.ErrClassifierUnavailable)
}

func TestNewClassifier_Backends(t *testing.T) {
	c, err := sentiment.NewClassifier(sentiment.Settings{})
	require.NoError(t, err)
	assert.IsType(t, &sentiment.LexiconClassifier{}, c)

	_, err = sentiment.NewClassifier(sentiment.Settings{Backend: sentiment.BackendOpenAI})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	_, err = sentiment.NewClassifier(sentiment.Settings{Backend: "vibes"})
	assert.ErrorContains(t, err, "unknown classifier backend")
}

func responsesBody(outputText string) string {
	text, _ := json.Marshal(outputText)
	return `{
		"id": "resp_1",
		"object": "response",
		"created_at": 1700000000,
		"model": "gpt-4o-mini",
		"status": "completed",
		"output": [{
			"type": "message",
			"id": "msg_1",
			"role": "assistant",
			"status": "completed",
			"content": [{"type": "output_text", "text": ` + string(text) + `, "annotations": []}]
		}]
	}`
}

func newOpenAIClassifier(t *testing.T, handler http.HandlerFunc) *sentiment.OpenAIClassifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := sentiment.NewOpenAIClassifier("test-key", "gpt-4o-mini",
		option.WithBaseURL(srv.URL+"/v1/"),
		option.WithMaxRetries(0),
	)
	require.NoError(t, err)
	return c
}

func TestOpenAIClassifier_SendsStrictSchema(t *testing.T) {
	var body map[string]any
	c := newOpenAIClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responsesBody(`{"polarity": -0.3, "subjectivity": 0.55}`)))
	})

	got, err := c.Classify(context.Background(), "I'm a bit anxious about my exam")
	require.NoError(t, err)
	assert.InDelta(t, -0.3, got.Polarity, 1e-9)
	assert.InDelta(t, 0.55, got.Subjectivity, 1e-9)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	text, ok := body["text"].(map[string]any)
	require.True(t, ok)
	format, ok := text["format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, true, format["strict"])
	schema, ok := format["schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, schema["additionalProperties"])
	assert.ElementsMatch(t, []any{"polarity", "subjectivity"}, schema["required"])
}

func TestOpenAIClassifier_ClampsAndUnwrapsProse(t *testing.T) {
	c := newOpenAIClassifier(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responsesBody("Sure! ```json\n{\"polarity\": -1.7, \"subjectivity\": 1.2}\n```")))
	})

	got, err := c.Classify(context.Background(), "awful")
	require.NoError(t, err)
	assert.Equal(t, -1.0, got.Polarity)
	assert.Equal(t, 1.0, got.Subjectivity)
}

func TestOpenAIClassifier_FailuresAreClassifierUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			},
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(responsesBody("I'd rather not say")))
			},
		},
		{
			name: "truncated",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(responsesBody(`{"polarity": -0.2, "subj`)))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newOpenAIClassifier(t, tt.handler)
			_, err := c.Classify(context.Background(), "hello")
			assert.ErrorIs(t, err, domain.ErrClassifierUnavailable)
		})
	}
}
