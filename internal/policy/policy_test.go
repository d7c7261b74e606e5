package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-therapy/internal/policy"
)

func TestDefaultPolicyLoads(t *testing.T) {
	p, err := policy.Default()
	require.NoError(t, err)

	w, ok := p.Assessment.Lookup("suicide")
	require.True(t, ok)
	assert.Equal(t, 1.0, w)

	w, ok = p.Crisis.Lookup("kill")
	require.True(t, ok)
	assert.Equal(t, 0.9, w)

	assert.Equal(t, 10, p.Validator.MinWords)
	assert.Contains(t, p.Validator.BoundaryStatements, "please seek professional help")
	require.Len(t, p.Validator.DisclaimerPatterns, 3)
	assert.True(t, p.Validator.DisclaimerPatterns[0].MatchString("call the crisis text hotline"))
}

func TestDefaultIsShared(t *testing.T) {
	a, err := policy.Default()
	require.NoError(t, err)
	b, err := policy.Default()
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestLoadRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"invalid yaml":   "assessment: [",
		"empty table":    "assessment:\n  keywords: []\ncrisis:\n  keywords: [{term: x, weight: 1}]\n",
		"weight too big": "assessment:\n  keywords: [{term: x, weight: 2}]\ncrisis:\n  keywords: [{term: x, weight: 1}]\n",
		"bad regex": "assessment:\n  keywords: [{term: x, weight: 1}]\ncrisis:\n  keywords: [{term: x, weight: 1}]\n" +
			"validator:\n  disclaimer_patterns: [{id: broken, regex: '('}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := policy.Load([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadNormalizesTerms(t *testing.T) {
	doc := "assessment:\n  keywords: [{term: ' Hopeless ', weight: 0.5}]\ncrisis:\n  keywords: [{term: END, weight: 0.6}]\n"
	p, err := policy.Load([]byte(doc))
	require.NoError(t, err)

	_, ok := p.Assessment.Lookup("hopeless")
	assert.True(t, ok)
	_, ok = p.Crisis.Lookup("end")
	assert.True(t, ok)
}

func TestEmbeddedKeywordTables(t *testing.T) {
	p, err := policy.Default()
	require.NoError(t, err)

	assert.Equal(t, []policy.Keyword{
		{Term: "suicide", Weight: 1.0},
		{Term: "kill", Weight: 0.8},
		{Term: "die", Weight: 0.7},
		{Term: "hurt", Weight: 0.6},
		{Term: "harm", Weight: 0.6},
		{Term: "end", Weight: 0.5},
		{Term: "worthless", Weight: 0.5},
		{Term: "hopeless", Weight: 0.5},
	}, p.Assessment.Keywords)

	assert.Equal(t, []policy.Keyword{
		{Term: "suicide", Weight: 1.0},
		{Term: "kill", Weight: 0.9},
		{Term: "die", Weight: 0.8},
		{Term: "hurt", Weight: 0.7},
		{Term: "end", Weight: 0.6},
	}, p.Crisis.Keywords)

	assert.Equal(t, []string{"harm yourself", "end your life", "suicide"}, p.Validator.SelfHarmPhrases)
}
