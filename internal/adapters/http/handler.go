package httpadapter

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PabloGalante/farum-therapy/internal/app/conversation"
	"github.com/PabloGalante/farum-therapy/internal/domain"
	"github.com/PabloGalante/farum-therapy/internal/observability"
)

const maxBodyBytes = 64 << 10

type Options struct {
	// Gatherer backs GET /metrics. Nil leaves the route out.
	Gatherer prometheus.Gatherer
	// APIKey, when set, is required in X-API-Key on POST /message.
	APIKey string
}

type Server struct {
	svc      *conversation.Service
	opts     Options
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewServer(svc *conversation.Service, opts Options) http.Handler {
	s := &Server{
		svc:      svc,
		opts:     opts,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)

	// /sessions → create session (POST)
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/{id}          → GET: session state, DELETE: end session
	// /sessions/{id}/messages → POST: send message
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	// one-shot turn, creating a session when none is given
	mux.HandleFunc("/message", s.handleOneShot)

	// /ws/{client_id} → websocket chat, the client id is the session id
	mux.HandleFunc("/ws/", s.handleWebSocket)

	if opts.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128,printascii,excludesall=/ "`
}

type createSessionResponse struct {
	Session *domain.ConversationState `json:"session"`
	Welcome domain.Message            `json:"welcome_message"`
}

type getSessionResponse struct {
	Session *domain.ConversationState `json:"session"`
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type sendMessageResponse struct {
	SessionID   string                    `json:"session_id"`
	UserMessage domain.Message            `json:"user_message"`
	Reply       domain.Message            `json:"reply"`
	Outcome     string                    `json:"outcome"`
	Session     *domain.ConversationState `json:"session"`
}

type oneShotRequest struct {
	Content   string `json:"content" validate:"required,max=4000"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128,printascii,excludesall=/ "`
}

type oneShotResponse struct {
	SessionID string         `json:"session_id"`
	Response  domain.Message `json:"response"`
	Metadata  map[string]any `json:"metadata"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// /sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions/{id} or /sessions/{id}/messages
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(path, "/")
	id := parts[0]

	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSession(w, r, domain.SessionID(id))
		case http.MethodDelete:
			s.handleEndSession(w, r, domain.SessionID(id))
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "messages" {
		switch r.Method {
		case http.MethodPost:
			s.handleSendMessage(w, r, domain.SessionID(id))
		default:
			methodNotAllowed(w)
		}
		return
	}

	http.NotFound(w, r)
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if !s.decode(w, r, &req) {
			return
		}
	}

	out, err := s.svc.StartSession(r.Context(), conversation.StartSessionInput{
		SessionID: domain.SessionID(req.SessionID),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		Session: out.State,
		Welcome: out.Welcome,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	state, err := s.svc.GetSession(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, getSessionResponse{Session: state})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	if err := s.svc.EndSession(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req sendMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.svc.SendMessage(r.Context(), conversation.SendMessageInput{
		SessionID: id,
		Text:      req.Text,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		SessionID:   string(out.SessionID),
		UserMessage: out.UserMessage,
		Reply:       out.Reply,
		Outcome:     string(out.Outcome),
		Session:     out.State,
	})
}

func (s *Server) handleOneShot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.opts.APIKey != "" {
		got := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.APIKey)) != 1 {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid API key"})
			return
		}
	}

	var req oneShotRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.svc.SendMessage(r.Context(), conversation.SendMessageInput{
		SessionID: domain.SessionID(req.SessionID),
		Text:      req.Content,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	metadata := out.Reply.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	writeJSON(w, http.StatusOK, oneShotResponse{
		SessionID: string(out.SessionID),
		Response:  out.Reply,
		Metadata:  metadata,
	})
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

// decode reads a JSON body into v and validates it, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		badRequest(w, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " is too long"
	}
	return field + " is invalid"
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, domain.ErrSessionExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session already exists"})
	case errors.Is(err, domain.ErrEmptyMessage):
		badRequest(w, "text is required")
	case errors.Is(err, domain.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many messages, slow down"})
	case errors.Is(err, domain.ErrTurnDiscarded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "turn discarded, session ended or request cancelled"})
	default:
		internalError(w, r, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
