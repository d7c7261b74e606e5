package sentiment

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema_IsStrict(t *testing.T) {
	type inner struct {
		Label string `json:"label"`
	}
	type outer struct {
		Score float64 `json:"score"`
		Inner inner   `json:"inner"`
	}

	schema := generateSchema[outer]()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	assert.ElementsMatch(t, []string{"score", "inner"}, schema["required"])

	props := schema["properties"].(map[string]any)
	in := props["inner"].(map[string]any)
	assert.Equal(t, false, in["additionalProperties"])
	assert.ElementsMatch(t, []string{"label"}, in["required"])
}

func TestDecodeModelJSON(t *testing.T) {
	var out sentimentResponse

	require.NoError(t, decodeModelJSON(`{"polarity":0.2,"subjectivity":0.4}`, &out))
	assert.Equal(t, sentimentResponse{Polarity: 0.2, Subjectivity: 0.4}, out)

	require.NoError(t, decodeModelJSON("here you go: {\"polarity\":-0.5,\"subjectivity\":1} thanks", &out))
	assert.Equal(t, sentimentResponse{Polarity: -0.5, Subjectivity: 1}, out)

	assert.ErrorIs(t, decodeModelJSON("   ", &out), io.ErrUnexpectedEOF)
	assert.ErrorIs(t, decodeModelJSON(`{"polarity": 0.1`, &out), io.ErrUnexpectedEOF)
	assert.ErrorContains(t, decodeModelJSON("no json here", &out), "no JSON object")
}

func TestParseLexicon_RejectsOutOfRangeScores(t *testing.T) {
	_, err := parseLexicon([]byte("words:\n  great: [1.5, 0.5]\n"))
	assert.ErrorContains(t, err, "out of range")

	_, err = parseLexicon([]byte("words: [oops"))
	assert.ErrorContains(t, err, "parse lexicon")
}
