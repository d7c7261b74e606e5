package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/PabloGalante/farum-therapy/internal/adapters/llm"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode     Mode   `validate:"oneof=local gcp"`
	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"oneof=debug info warn warning error"`

	CrisisThreshold  float64 `validate:"gte=0,lte=1"`
	MaxHistory       int     `validate:"gte=2"`
	MaxRegenerations int     `validate:"gte=0,lte=10"`
	Temperature      float32 `validate:"gte=0,lte=2"`
	MaxTokens        int     `validate:"gt=0"`

	LLMBackend    string `validate:"oneof=mock gemini vertex openai"`
	ModelName     string `validate:"required"`
	OpenAIBaseURL string `validate:"omitempty,url"`

	ClassifierBackend string `validate:"oneof=lexicon openai"`
	ClassifierModel   string `validate:"required"`

	ClassifierTimeout time.Duration `validate:"gt=0"`
	GenerationTimeout time.Duration `validate:"gt=0"`
	SessionIdleTTL    time.Duration `validate:"gte=0"`
	TurnsPerMinute    int           `validate:"gte=0"`

	GCPProjectID string `validate:"required_if=LLMBackend vertex"`
	GCPLocation  string
	GeminiAPIKey string `validate:"required_if=LLMBackend gemini"`
	OpenAIAPIKey string

	// APIKey guards the one-shot POST /message route when set.
	APIKey string
}

var configValidate = validator.New()

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getFloatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Load reads all env vars, applies defaults and validates the result.
func Load() (*Config, error) {
	mode := Mode(strings.ToLower(getEnv("FARUM_MODE", string(ModeLocal))))

	defaultBackend := "mock"
	if mode == ModeGCP {
		defaultBackend = "vertex"
	}
	// FARUM_USE_MOCK_LLM forces the mock backend in any mode.
	if getBoolEnv("FARUM_USE_MOCK_LLM", false) {
		defaultBackend = "mock"
	}

	cfg := &Config{
		Mode:     mode,
		Port:     getEnv("FARUM_PORT", "8080"),
		LogLevel: strings.ToLower(getEnv("FARUM_LOG_LEVEL", "info")),

		LLMBackend:    strings.ToLower(getEnv("FARUM_LLM_BACKEND", defaultBackend)),
		OpenAIBaseURL: getEnv("FARUM_OPENAI_BASE_URL", ""),

		ClassifierBackend: strings.ToLower(getEnv("FARUM_CLASSIFIER_BACKEND", "lexicon")),
		ClassifierModel:   getEnv("FARUM_CLASSIFIER_MODEL", "gpt-4o-mini"),

		GCPProjectID: getEnv("FARUM_GCP_PROJECT", ""),
		GCPLocation:  getEnv("FARUM_GCP_LOCATION", "us-central1"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		APIKey:       getEnv("FARUM_API_KEY", ""),
	}
	// The model default follows the backend so each provider gets an id it knows.
	cfg.ModelName = getEnv("FARUM_MODEL_NAME", llm.DefaultModel(cfg.LLMBackend))

	var (
		err         error
		temperature float64
	)
	if cfg.CrisisThreshold, err = getFloatEnv("FARUM_CRISIS_THRESHOLD", 0.7); err != nil {
		return nil, err
	}
	if cfg.MaxHistory, err = getIntEnv("FARUM_MAX_HISTORY", 10); err != nil {
		return nil, err
	}
	if cfg.MaxRegenerations, err = getIntEnv("FARUM_MAX_REGENERATIONS", 2); err != nil {
		return nil, err
	}
	if temperature, err = getFloatEnv("FARUM_TEMPERATURE", 0.7); err != nil {
		return nil, err
	}
	cfg.Temperature = float32(temperature)
	if cfg.MaxTokens, err = getIntEnv("FARUM_MAX_TOKENS", 300); err != nil {
		return nil, err
	}
	if cfg.ClassifierTimeout, err = getDurationEnv("FARUM_CLASSIFIER_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.GenerationTimeout, err = getDurationEnv("FARUM_GENERATION_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = getDurationEnv("FARUM_SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TurnsPerMinute, err = getIntEnv("FARUM_TURNS_PER_MINUTE", 30); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags plus the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	needsOpenAIKey := c.LLMBackend == "openai" || c.ClassifierBackend == "openai"
	if needsOpenAIKey && c.OpenAIAPIKey == "" {
		return fmt.Errorf("invalid config: OPENAI_API_KEY is required for the openai backend")
	}
	return nil
}
