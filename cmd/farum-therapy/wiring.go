package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/PabloGalante/farum-therapy/internal/adapters/llm"
	"github.com/PabloGalante/farum-therapy/internal/adapters/sentiment"
	"github.com/PabloGalante/farum-therapy/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-therapy/internal/app/agentflow"
	"github.com/PabloGalante/farum-therapy/internal/app/assessment"
	"github.com/PabloGalante/farum-therapy/internal/app/conversation"
	"github.com/PabloGalante/farum-therapy/internal/app/crisis"
	"github.com/PabloGalante/farum-therapy/internal/app/framework"
	"github.com/PabloGalante/farum-therapy/internal/app/validator"
	"github.com/PabloGalante/farum-therapy/internal/config"
	"github.com/PabloGalante/farum-therapy/internal/observability"
	"github.com/PabloGalante/farum-therapy/internal/policy"
)

// buildService assembles the pipeline from cfg. reg may be nil, in which case no metrics are kept.
func buildService(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*conversation.Service, error) {
	log := observability.Logger()

	pol, err := policy.Default()
	if err != nil {
		return nil, fmt.Errorf("load safety policy: %w", err)
	}

	classifier, err := sentiment.NewClassifier(sentiment.Settings{
		Backend:       cfg.ClassifierBackend,
		Model:         cfg.ClassifierModel,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init classifier: %w", err)
	}
	log.Info("classifier ready", "backend", cfg.ClassifierBackend)

	generator, err := llm.NewGenerator(ctx, llm.Settings{
		Backend:       cfg.LLMBackend,
		Model:         cfg.ModelName,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GCPProject:    cfg.GCPProjectID,
		GCPLocation:   cfg.GCPLocation,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init generator: %w", err)
	}
	log.Info("generator ready", "backend", cfg.LLMBackend, "model", cfg.ModelName)

	var metrics *observability.Metrics
	if reg != nil {
		metrics = observability.NewMetrics(reg)
	}

	orch := agentflow.NewOrchestrator(
		assessment.NewEngine(classifier, pol),
		crisis.NewFlow(crisis.NewEvaluator(pol, nil)),
		framework.NewSelector(),
		validator.New(pol),
		generator,
		agentflow.Config{
			CrisisThreshold:   cfg.CrisisThreshold,
			MaxHistory:        cfg.MaxHistory,
			MaxRegenerations:  cfg.MaxRegenerations,
			Model:             cfg.ModelName,
			Temperature:       cfg.Temperature,
			MaxTokens:         cfg.MaxTokens,
			ClassifierTimeout: cfg.ClassifierTimeout,
			GenerationTimeout: cfg.GenerationTimeout,
		},
		metrics,
	)

	return conversation.NewService(orch, memory.NewSessionStore(), metrics, conversation.Config{
		IdleTTL:        cfg.SessionIdleTTL,
		TurnsPerMinute: cfg.TurnsPerMinute,
	}), nil
}
