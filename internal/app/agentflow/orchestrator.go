package agentflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PabloGalante/farum-therapy/internal/app/assessment"
	"github.com/PabloGalante/farum-therapy/internal/app/crisis"
	"github.com/PabloGalante/farum-therapy/internal/app/framework"
	"github.com/PabloGalante/farum-therapy/internal/app/validator"
	"github.com/PabloGalante/farum-therapy/internal/domain"
	"github.com/PabloGalante/farum-therapy/internal/observability"
)

// Stage is a state of the per-turn pipeline.
type Stage string

const (
	StageAssess   Stage = "assess"
	StageBranch   Stage = "branch"
	StageGenerate Stage = "generate"
	StageValidate Stage = "validate"
	StageDone     Stage = "done"
)

// Route is the tagged decision returned by a checkpoint. Exactly one successor runs per route.
type Route int

const (
	RouteContinue Route = iota
	RouteEscalate
	RouteAccept
	RouteRegenerate
	RouteFallback
)

// Outcome names the terminal path a turn took.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeCrisis   Outcome = "crisis"
	OutcomeFallback Outcome = "fallback"
	OutcomeError    Outcome = "error"
)

const (
	// CrisisIntervention is recorded in interventions_used whenever the crisis path runs.
	CrisisIntervention = "crisis_intervention"

	disclaimerRiskLevel = 0.6
)

const (
	FallbackText = "I understand you're going through something important. " +
		"Could you tell me more about what you're feeling?"

	ErrorText = "I apologize, but I'm having trouble processing that properly. " +
		"Could you rephrase what you're trying to tell me? " +
		"I want to make sure I understand and respond appropriately."

	aiDisclaimer = "\n\nPlease remember that I'm an AI assistant. If you're in crisis, " +
		"please contact emergency services or crisis hotline immediately."
)

// Config holds the values the pipeline consumes; see DefaultConfig.
type Config struct {
	CrisisThreshold   float64
	MaxHistory        int
	MaxRegenerations  int
	Model             string
	Temperature       float32
	MaxTokens         int
	ClassifierTimeout time.Duration
	GenerationTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		CrisisThreshold:   0.7,
		MaxHistory:        domain.DefaultMaxHistory,
		MaxRegenerations:  2,
		Temperature:       0.7,
		MaxTokens:         300,
		ClassifierTimeout: 5 * time.Second,
		GenerationTimeout: 20 * time.Second,
	}
}

// TurnResult is what a terminal state hands back: one reply and the working copy it was appended to.
type TurnResult struct {
	Reply    domain.Message
	State    *domain.ConversationState
	Outcome  Outcome
	Attempts int
	Trace    []Stage
}

// Orchestrator runs assess -> branch -> generate -> validate for one turn.
// It holds no per-session state and may be shared by all sessions.
type Orchestrator struct {
	assessor  *assessment.Engine
	crisis    *crisis.Flow
	selector  *framework.Selector
	validator *validator.Validator
	generator domain.TextGenerator
	cfg       Config
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewOrchestrator(
	assessor *assessment.Engine,
	crisisFlow *crisis.Flow,
	selector *framework.Selector,
	responseValidator *validator.Validator,
	generator domain.TextGenerator,
	cfg Config,
	metrics *observability.Metrics,
) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = def.MaxHistory
	}
	if cfg.MaxRegenerations < 0 {
		cfg.MaxRegenerations = 0
	}
	if cfg.ClassifierTimeout <= 0 {
		cfg.ClassifierTimeout = def.ClassifierTimeout
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = def.GenerationTimeout
	}
	return &Orchestrator{
		assessor:  assessor,
		crisis:    crisisFlow,
		selector:  selector,
		validator: responseValidator,
		generator: generator,
		cfg:       cfg,
		metrics:   metrics,
		now:       time.Now,
	}
}

// turn is the scratch space of one pipeline run.
type turn struct {
	state         *domain.ConversationState
	inbound       domain.Message
	prior         []domain.Message
	draft         domain.Message
	violation     validator.Violation
	regenerations int
	attempts      int
	reply         domain.Message
	outcome       Outcome
	trace         []Stage
}

// ProcessTurn runs the pipeline on a working copy of state. The caller's state is never modified;
// committing the returned State is the caller's decision. Every path returns a well-formed reply.
func (o *Orchestrator) ProcessTurn(
	ctx context.Context,
	state *domain.ConversationState,
	inbound domain.Message,
) (res TurnResult) {
	if state == nil {
		state = domain.NewConversationState("", o.now())
	}

	ctx = observability.WithSessionID(ctx, string(state.SessionID))
	log := observability.LoggerFromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error("turn pipeline panicked", "panic", fmt.Sprint(r))
			res = o.errorResult(state, inbound, "internal_error")
		}
	}()

	t := &turn{
		state:   state.Clone(),
		inbound: inbound,
		prior:   state.Messages,
	}
	t.state.AppendMessage(inbound, o.cfg.MaxHistory)

	stage := StageAssess
	for stage != StageDone {
		t.trace = append(t.trace, stage)
		start := time.Now()

		var next Stage
		switch stage {
		case StageAssess:
			next = o.assess(ctx, t)
		case StageBranch:
			next = o.branch(ctx, t)
		case StageGenerate:
			next = o.generate(ctx, t)
		case StageValidate:
			next = o.validate(ctx, t)
		default:
			panic(fmt.Sprintf("unknown stage %q", stage))
		}

		elapsed := time.Since(start)
		o.metrics.ObserveStage(string(stage), elapsed)
		log.Debug("stage finished", "stage", stage, "next", next, "elapsed_ms", elapsed.Milliseconds())
		stage = next
	}

	t.state.AppendMessage(t.reply, o.cfg.MaxHistory)
	t.state.UpdatedAt = o.now()

	log.Info("turn finished",
		"outcome", t.outcome,
		"attempts", t.attempts,
		"framework", t.state.TherapeuticState.ActiveFramework,
		"risk_level", t.state.SafetyStatus.RiskLevel,
		"history_len", len(t.state.Messages),
	)

	return TurnResult{
		Reply:    t.reply,
		State:    t.state,
		Outcome:  t.outcome,
		Attempts: t.attempts,
		Trace:    t.trace,
	}
}

func (o *Orchestrator) assess(ctx context.Context, t *turn) Stage {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.ClassifierTimeout)
	defer cancel()

	emotional, safety, err := o.assessor.Analyze(cctx, t.inbound, t.prior)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("assessment failed", "error", err)
		errorType := "classifier_failure"
		if errors.Is(err, domain.ErrEmptyMessage) {
			errorType = "empty_message"
		}
		t.reply = o.errorReply(errorType)
		t.outcome = OutcomeError
		return StageDone
	}

	t.state.EmotionalState = emotional
	t.state.SafetyStatus = safety
	return StageBranch
}

// checkCrisis is the branch checkpoint.
func (o *Orchestrator) checkCrisis(safety domain.SafetyStatus) Route {
	if safety.RiskLevel >= o.cfg.CrisisThreshold {
		return RouteEscalate
	}
	return RouteContinue
}

func (o *Orchestrator) branch(ctx context.Context, t *turn) Stage {
	switch o.checkCrisis(t.state.SafetyStatus) {
	case RouteEscalate:
		o.handleCrisis(ctx, t)
		return StageDone
	default:
		selected := o.selector.Select(t.state.EmotionalState, t.state.SafetyStatus)
		if framework.Commit(&t.state.TherapeuticState, selected) {
			o.metrics.ObserveFrameworkChange(string(selected))
		}
		return StageGenerate
	}
}

func (o *Orchestrator) handleCrisis(ctx context.Context, t *turn) {
	safety := t.state.SafetyStatus
	observability.LoggerFromContext(ctx).Warn("crisis detected",
		"risk_level", safety.RiskLevel,
		"indicators", safety.CrisisIndicators,
	)

	out := o.crisis.Handle(t.inbound, t.prior, safety)

	ts := &t.state.TherapeuticState
	if framework.Commit(ts, domain.FrameworkDBT) {
		o.metrics.ObserveFrameworkChange(string(domain.FrameworkDBT))
	}
	ts.InterventionsUsed = append(ts.InterventionsUsed, CrisisIntervention)

	t.reply = out.Reply
	t.outcome = OutcomeCrisis
}

func (o *Orchestrator) generate(ctx context.Context, t *turn) Stage {
	t.attempts++

	req := domain.GenerationRequest{
		System:      BuildInstruction(t.state, t.violation.Guidance()),
		UserText:    t.inbound.Content,
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	}

	gctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	text, err := o.generator.Generate(gctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: empty reply", domain.ErrGenerationFailed)
	}
	if err != nil {
		observability.LoggerFromContext(ctx).Error("generation failed",
			"attempt", t.attempts,
			"error", err,
		)
		t.reply = o.fallbackReply("generation_failed")
		t.outcome = OutcomeFallback
		return StageDone
	}

	text = strings.TrimSpace(text)
	if t.state.SafetyStatus.RiskLevel > disclaimerRiskLevel {
		text += aiDisclaimer
	}

	t.draft = domain.NewMessage(domain.SenderBot, text, o.now(), map[string]any{
		domain.MetaTherapeuticIntent: string(t.state.TherapeuticState.ActiveFramework),
		domain.MetaEmotionalTarget:   string(t.state.EmotionalState.PrimaryEmotion),
		domain.MetaAttempts:          t.attempts,
	})
	return StageValidate
}

// checkDraft is the validation checkpoint.
func (o *Orchestrator) checkDraft(t *turn) (Route, validator.Violation) {
	v := o.validator.Validate(t.draft)
	switch {
	case v.Passed():
		return RouteAccept, v
	case t.regenerations < o.cfg.MaxRegenerations:
		return RouteRegenerate, v
	default:
		return RouteFallback, v
	}
}

func (o *Orchestrator) validate(ctx context.Context, t *turn) Stage {
	route, violation := o.checkDraft(t)
	switch route {
	case RouteAccept:
		t.reply = t.draft
		t.outcome = OutcomeAccepted
		return StageDone
	case RouteRegenerate:
		observability.LoggerFromContext(ctx).Info("draft rejected, regenerating",
			"violation", violation,
			"attempt", t.attempts,
		)
		o.metrics.ObserveRegeneration(string(violation))
		t.violation = violation
		t.regenerations++
		return StageGenerate
	default:
		observability.LoggerFromContext(ctx).Warn("regeneration limit reached",
			"violation", violation,
			"attempts", t.attempts,
		)
		t.reply = o.fallbackReply("validation_exhausted")
		t.outcome = OutcomeFallback
		return StageDone
	}
}

func (o *Orchestrator) fallbackReply(reason string) domain.Message {
	return domain.NewMessage(domain.SenderBot, FallbackText, o.now(), map[string]any{
		domain.MetaFallback:       true,
		domain.MetaFallbackReason: reason,
	})
}

func (o *Orchestrator) errorReply(errorType string) domain.Message {
	return domain.NewMessage(domain.SenderBot, ErrorText, o.now(), map[string]any{
		domain.MetaError:     true,
		domain.MetaErrorType: errorType,
	})
}

// errorResult rebuilds a clean working copy so a half-applied turn never leaks out.
func (o *Orchestrator) errorResult(state *domain.ConversationState, inbound domain.Message, errorType string) TurnResult {
	working := state.Clone()
	working.AppendMessage(inbound, o.cfg.MaxHistory)
	reply := o.errorReply(errorType)
	working.AppendMessage(reply, o.cfg.MaxHistory)
	working.UpdatedAt = o.now()
	return TurnResult{
		Reply:   reply,
		State:   working,
		Outcome: OutcomeError,
		Trace:   []Stage{StageDone},
	}
}
