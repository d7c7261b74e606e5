package httpadapter_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/PabloGalante/farum-therapy/internal/adapters/http"
	"github.com/PabloGalante/farum-therapy/internal/adapters/llm"
	"github.com/PabloGalante/farum-therapy/internal/adapters/sentiment"
	"github.com/PabloGalante/farum-therapy/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-therapy/internal/app/agentflow"
	"github.com/PabloGalante/farum-therapy/internal/app/assessment"
	"github.com/PabloGalante/farum-therapy/internal/app/conversation"
	"github.com/PabloGalante/farum-therapy/internal/app/crisis"
	"github.com/PabloGalante/farum-therapy/internal/app/framework"
	"github.com/PabloGalante/farum-therapy/internal/app/validator"
	"github.com/PabloGalante/farum-therapy/internal/domain"
	"github.com/PabloGalante/farum-therapy/internal/observability"
	"github.com/PabloGalante/farum-therapy/internal/policy"
)

type testServerOptions struct {
	apiKey         string
	turnsPerMinute int
}

func newTestServer(t *testing.T, o testServerOptions) http.Handler {
	t.Helper()

	pol, err := policy.Default()
	require.NoError(t, err)
	classifier, err := sentiment.NewLexiconClassifier()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	orch := agentflow.NewOrchestrator(
		assessment.NewEngine(classifier, pol),
		crisis.NewFlow(crisis.NewEvaluator(pol, nil)),
		framework.NewSelector(),
		validator.New(pol),
		llm.NewMockGenerator(),
		agentflow.DefaultConfig(),
		metrics,
	)
	svc := conversation.NewService(orch, memory.NewSessionStore(), metrics, conversation.Config{
		TurnsPerMinute: o.turnsPerMinute,
	})

	return httpadapter.NewServer(svc, httpadapter.Options{Gatherer: reg, APIKey: o.apiKey})
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body=%s", w.Body.String())
	return out
}

type sessionBody struct {
	Session domain.ConversationState `json:"session"`
	Welcome domain.Message           `json:"welcome_message"`
}

type turnBody struct {
	SessionID   string                   `json:"session_id"`
	UserMessage domain.Message           `json:"user_message"`
	Reply       domain.Message           `json:"reply"`
	Outcome     string                   `json:"outcome"`
	Session     domain.ConversationState `json:"session"`
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	w := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	w = do(t, srv, http.MethodPost, "/healthz", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCreateSessionAndSendMessage(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	w := do(t, srv, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[sessionBody](t, w)
	require.NotEmpty(t, created.Session.SessionID)
	assert.Empty(t, created.Session.Messages)
	assert.Equal(t, conversation.WelcomeText, created.Welcome.Content)
	assert.Equal(t, "welcome", created.Welcome.Metadata[domain.MetaMessageType])

	path := "/sessions/" + string(created.Session.SessionID) + "/messages"
	w = do(t, srv, http.MethodPost, path, `{"text":"I feel a bit anxious about tomorrow"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	turn := decodeBody[turnBody](t, w)
	assert.Equal(t, string(created.Session.SessionID), turn.SessionID)
	assert.Equal(t, "I feel a bit anxious about tomorrow", turn.UserMessage.Content)
	assert.Equal(t, domain.SenderBot, turn.Reply.Sender)
	assert.Equal(t, string(agentflow.OutcomeAccepted), turn.Outcome)
	assert.Len(t, turn.Session.Messages, 2)

	w = do(t, srv, http.MethodGet, "/sessions/"+string(created.Session.SessionID), "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[sessionBody](t, w)
	assert.Len(t, got.Session.Messages, 2)
}

func TestCreateSession_WithIDRejectsDuplicates(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	w := do(t, srv, http.MethodPost, "/sessions", `{"session_id":"client-42"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, domain.SessionID("client-42"), decodeBody[sessionBody](t, w).Session.SessionID)

	w = do(t, srv, http.MethodPost, "/sessions", `{"session_id":"client-42"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodPost, "/sessions", `{"session_id":"has space"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessage_RejectsBadBodies(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "malformed json", body: `{"text":`, want: "invalid JSON body"},
		{name: "missing text", body: `{}`, want: "text is required"},
		{name: "whitespace text", body: `{"text":"   "}`, want: "text is required"},
		{name: "too long", body: `{"text":"` + strings.Repeat("a", 4001) + `"}`, want: "text is too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/sessions/abc/messages", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decodeBody[map[string]string](t, w)["error"])
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	w := do(t, srv, http.MethodGet, "/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodDelete, "/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The first message to an unknown id opens the session.
	w = do(t, srv, http.MethodPost, "/sessions/fresh/messages", `{"text":"hello there"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, srv, http.MethodDelete, "/sessions/fresh", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions/fresh", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodPut, "/sessions/fresh", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions/fresh/other", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessage_RateLimited(t *testing.T) {
	srv := newTestServer(t, testServerOptions{turnsPerMinute: 1})

	w := do(t, srv, http.MethodPost, "/sessions/busy/messages", `{"text":"first message"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPost, "/sessions/busy/messages", `{"text":"second message"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestOneShotMessage(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	w := do(t, srv, http.MethodPost, "/message", `{"content":"I had a good day at work"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		SessionID string         `json:"session_id"`
		Response  domain.Message `json:"response"`
		Metadata  map[string]any `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.SessionID)
	assert.Equal(t, domain.SenderBot, body.Response.Sender)
	assert.NotNil(t, body.Metadata)

	w = do(t, srv, http.MethodGet, "/sessions/"+body.SessionID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/message", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestOneShotMessage_APIKey(t *testing.T) {
	srv := newTestServer(t, testServerOptions{apiKey: "s3cret"})

	w := do(t, srv, http.MethodPost, "/message", `{"content":"hello"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/message", bytes.NewBufferString(`{"content":"hello"}`))
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/message", bytes.NewBufferString(`{"content":"hello"}`))
	req.Header.Set("X-API-Key", "s3cret")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	w := do(t, srv, http.MethodPost, "/sessions/m/messages", `{"text":"hello there"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `farum_turns_total{outcome="accepted"} 1`)
	assert.Contains(t, w.Body.String(), "farum_sessions_active 1")
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})

	w := do(t, srv, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = do(t, srv, http.MethodOptions, "/sessions", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}

type wsFrame struct {
	Type     string         `json:"type"`
	Typing   bool           `json:"typing"`
	Content  string         `json:"content"`
	Sender   domain.Sender  `json:"sender"`
	Metadata map[string]any `json:"metadata"`
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocketConversation(t *testing.T) {
	handler := newTestServer(t, testServerOptions{})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/client-7"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	welcome := readFrame(t, conn)
	assert.Equal(t, conversation.WelcomeText, welcome.Content)
	assert.Equal(t, "welcome", welcome.Metadata[domain.MetaMessageType])

	require.NoError(t, conn.WriteJSON(map[string]any{"content": "I feel a bit anxious today"}))

	typing := readFrame(t, conn)
	assert.Equal(t, "typing_indicator", typing.Type)
	assert.True(t, typing.Typing)

	typing = readFrame(t, conn)
	assert.Equal(t, "typing_indicator", typing.Type)
	assert.False(t, typing.Typing)

	reply := readFrame(t, conn)
	assert.Equal(t, domain.SenderBot, reply.Sender)
	assert.Contains(t, reply.Content, "I feel a bit anxious today")

	// The session is visible over HTTP while the socket is open.
	w := do(t, handler, http.MethodGet, "/sessions/client-7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[sessionBody](t, w).Session.Messages, 2)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	bad := readFrame(t, conn)
	assert.Equal(t, true, bad.Metadata[domain.MetaError])
	assert.Equal(t, "invalid_message", bad.Metadata[domain.MetaErrorType])

	require.NoError(t, conn.WriteJSON(map[string]any{"content": "   "}))
	assert.True(t, readFrame(t, conn).Typing)
	assert.False(t, readFrame(t, conn).Typing)
	empty := readFrame(t, conn)
	assert.Equal(t, "empty_message", empty.Metadata[domain.MetaErrorType])

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_ = conn.Close()

	// Disconnecting ends the session.
	assert.Eventually(t, func() bool {
		return do(t, handler, http.MethodGet, "/sessions/client-7", "").Code == http.StatusNotFound
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWebSocket_ReconnectKeepsHistory(t *testing.T) {
	handler := newTestServer(t, testServerOptions{})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	// A session opened over HTTP is picked up by a socket with the same id.
	w := do(t, handler, http.MethodPost, "/sessions/resume/messages", `{"text":"hello there"}`)
	require.Equal(t, http.StatusOK, w.Code)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/resume"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	assert.Equal(t, conversation.WelcomeText, readFrame(t, conn).Content)

	w = do(t, handler, http.MethodGet, "/sessions/resume", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[sessionBody](t, w).Session.Messages, 2)
}
