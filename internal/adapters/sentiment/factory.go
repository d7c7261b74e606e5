package sentiment

import (
	"fmt"

	"github.com/openai/openai-go/option"

	"github.com/PabloGalante/farum-therapy/internal/domain"
)

// Backend names accepted by NewClassifier.
const (
	BackendLexicon = "lexicon"
	BackendOpenAI  = "openai"
)

type Settings struct {
	Backend       string
	Model         string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClassifier(s Settings) (domain.TextClassifier, error) {
	switch s.Backend {
	case BackendLexicon, "":
		c, err := NewLexiconClassifier()
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendOpenAI:
		var opts []option.RequestOption
		if s.OpenAIBaseURL != "" {
			opts = append(opts, option.WithBaseURL(s.OpenAIBaseURL))
		}
		c, err := NewOpenAIClassifier(s.OpenAIAPIKey, s.Model, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown classifier backend %q", s.Backend)
}
