package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/PabloGalante/farum-therapy/internal/app/agentflow"
	"github.com/PabloGalante/farum-therapy/internal/domain"
	"github.com/PabloGalante/farum-therapy/internal/observability"
)

const WelcomeText = "Hello! I'm here to listen and support you. How are you feeling today?"

type Config struct {
	// IdleTTL is how long a session may go without a turn before SweepIdle evicts it. Zero disables eviction.
	IdleTTL time.Duration
	// TurnsPerMinute caps inbound turns per session. Zero disables the limit.
	TurnsPerMinute int
}

// lane serializes turns for one session. It stays in the map while any turn holds or
// waits on it, so a message sent after EndSession still queues behind the old turn.
type lane struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	refs    int
	ended   bool
}

// Service owns the session map. Turns for one session run one at a time, in arrival order;
// turns for different sessions run concurrently.
type Service struct {
	orchestrator *agentflow.Orchestrator
	store        domain.SessionStore
	metrics      *observability.Metrics
	cfg          Config
	now          func() time.Time

	mu    sync.Mutex
	lanes map[domain.SessionID]*lane
}

func NewService(
	orchestrator *agentflow.Orchestrator,
	store domain.SessionStore,
	metrics *observability.Metrics,
	cfg Config,
) *Service {
	return &Service{
		orchestrator: orchestrator,
		store:        store,
		metrics:      metrics,
		cfg:          cfg,
		now:          time.Now,
		lanes:        make(map[domain.SessionID]*lane),
	}
}

type StartSessionInput struct {
	// SessionID is optional; a random id is assigned when empty.
	SessionID domain.SessionID
}

type StartSessionOutput struct {
	State   *domain.ConversationState
	Welcome domain.Message
}

// StartSession creates an empty session and returns the welcome message, which is not added to history.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	id := in.SessionID
	if id == "" {
		id = newSessionID()
	}

	log := observability.LoggerFromContext(ctx).With("session_id", id)

	state := domain.NewConversationState(id, s.now())
	if _, err := s.store.Create(state); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}
	s.metrics.SetActiveSessions(s.store.Len())

	log.Info("session started")

	return &StartSessionOutput{
		State:   state,
		Welcome: s.Welcome(),
	}, nil
}

type SendMessageInput struct {
	// SessionID is optional; an unknown or empty id starts a new session on this turn.
	SessionID domain.SessionID
	Text      string
}

type SendMessageOutput struct {
	SessionID   domain.SessionID
	UserMessage domain.Message
	Reply       domain.Message
	State       *domain.ConversationState
	Outcome     agentflow.Outcome
}

// SendMessage runs one turn. It waits behind any turn already in flight for the same session.
// If ctx is cancelled or the session ends before the turn commits, nothing is committed and
// ErrTurnDiscarded is returned.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}

	id := in.SessionID
	if id == "" {
		id = newSessionID()
	}
	ctx = observability.WithSessionID(ctx, string(id))
	log := observability.LoggerFromContext(ctx)

	ln := s.acquireLane(id)
	defer s.releaseLane(id, ln)

	if ln.limiter != nil && !ln.limiter.Allow() {
		log.Warn("turn rejected by rate limit")
		s.metrics.ObserveTurn(observability.OutcomeRateLimits)
		return nil, domain.ErrRateLimited
	}

	if err := ln.sem.Acquire(ctx, 1); err != nil {
		s.metrics.ObserveTurn(observability.OutcomeDiscarded)
		return nil, fmt.Errorf("%w: %w", domain.ErrTurnDiscarded, err)
	}
	defer ln.sem.Release(1)

	state, revision, err := s.load(id)
	if err != nil {
		log.Error("failed to load session", "error", err)
		return nil, err
	}

	log.Info("processing turn", "text_len", len(text), "history_len", len(state.Messages))

	inbound := domain.NewMessage(domain.SenderUser, text, s.now(), nil)
	res := s.orchestrator.ProcessTurn(ctx, state, inbound)

	if err := ctx.Err(); err != nil {
		log.Warn("turn cancelled before commit", "error", err)
		s.metrics.ObserveTurn(observability.OutcomeDiscarded)
		return nil, fmt.Errorf("%w: %w", domain.ErrTurnDiscarded, err)
	}

	if _, err := s.store.Commit(res.State, revision); err != nil {
		log.Warn("turn not committed", "error", err)
		s.metrics.ObserveTurn(observability.OutcomeDiscarded)
		return nil, fmt.Errorf("%w: %w", domain.ErrTurnDiscarded, err)
	}
	s.metrics.ObserveTurn(string(res.Outcome))

	return &SendMessageOutput{
		SessionID:   id,
		UserMessage: inbound,
		Reply:       res.Reply,
		State:       res.State,
		Outcome:     res.Outcome,
	}, nil
}

// load returns the committed state, creating the session on its first turn.
func (s *Service) load(id domain.SessionID) (*domain.ConversationState, uint64, error) {
	state, revision, err := s.store.Get(id)
	if err == nil {
		return state, revision, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, 0, err
	}

	state = domain.NewConversationState(id, s.now())
	revision, err = s.store.Create(state)
	if err != nil {
		return nil, 0, err
	}
	s.metrics.SetActiveSessions(s.store.Len())
	return state, revision, nil
}

func (s *Service) GetSession(ctx context.Context, id domain.SessionID) (*domain.ConversationState, error) {
	state, _, err := s.store.Get(id)
	if err != nil {
		observability.LoggerFromContext(ctx).Debug("session lookup failed", "session_id", id, "error", err)
		return nil, err
	}
	return state, nil
}

// EndSession drops the session. A turn still in flight for it is discarded at commit time.
func (s *Service) EndSession(ctx context.Context, id domain.SessionID) error {
	s.dropLane(id)
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.metrics.SetActiveSessions(s.store.Len())
	observability.LoggerFromContext(ctx).Info("session ended", "session_id", id)
	return nil
}

// SweepIdle evicts sessions idle for longer than the configured TTL and reports how many went.
func (s *Service) SweepIdle(ctx context.Context) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}

	evicted := 0
	for _, id := range s.store.IdleSince(s.now().Add(-s.cfg.IdleTTL)) {
		s.dropLane(id)
		if err := s.store.Delete(id); err == nil {
			evicted++
		}
	}
	if evicted > 0 {
		s.metrics.SetActiveSessions(s.store.Len())
		observability.LoggerFromContext(ctx).Info("evicted idle sessions", "count", evicted)
	}
	return evicted
}

// RunSweeper calls SweepIdle every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepIdle(ctx)
		}
	}
}

// acquireLane returns the session's lane with one reference taken. Pair it with releaseLane.
func (s *Service) acquireLane(id domain.SessionID) *lane {
	s.mu.Lock()
	defer s.mu.Unlock()

	ln, ok := s.lanes[id]
	if !ok {
		ln = &lane{sem: semaphore.NewWeighted(1)}
		if s.cfg.TurnsPerMinute > 0 {
			ln.limiter = rate.NewLimiter(rate.Limit(float64(s.cfg.TurnsPerMinute)/60), s.cfg.TurnsPerMinute)
		}
		s.lanes[id] = ln
	}
	ln.refs++
	ln.ended = false
	return ln
}

func (s *Service) releaseLane(id domain.SessionID, ln *lane) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ln.refs--
	if ln.refs == 0 && ln.ended && s.lanes[id] == ln {
		delete(s.lanes, id)
	}
}

// dropLane forgets an ended session's lane once no turn holds or waits on it.
func (s *Service) dropLane(id domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ln, ok := s.lanes[id]
	if !ok {
		return
	}
	if ln.refs == 0 {
		delete(s.lanes, id)
		return
	}
	ln.ended = true
}

// Welcome builds the greeting sent when a client connects. It is never stored in history.
func (s *Service) Welcome() domain.Message {
	return domain.NewMessage(domain.SenderBot, WelcomeText, s.now(), map[string]any{
		domain.MetaMessageType: "welcome",
	})
}

func newSessionID() domain.SessionID {
	return domain.SessionID(uuid.NewString())
}
