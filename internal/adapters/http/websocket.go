package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/farum-therapy/internal/app/conversation"
	"github.com/PabloGalante/farum-therapy/internal/domain"
	"github.com/PabloGalante/farum-therapy/internal/observability"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsInboundQueue = 8
)

// inboundFrame is what clients send: {"content": "...", "metadata": {...}}.
type inboundFrame struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type typingFrame struct {
	Type   string `json:"type"`
	Typing bool   `json:"typing"`
}

// wsInbound carries either a decoded frame or the reason it could not be decoded.
type wsInbound struct {
	frame inboundFrame
	err   error
}

// handleWebSocket serves GET /ws/{client_id}. The client id doubles as the session id and the
// session is ended when the socket closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := domain.SessionID(strings.TrimPrefix(r.URL.Path, "/ws/"))
	if id == "" || strings.Contains(string(id), "/") {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		observability.LoggerFromContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxBodyBytes)

	ctx, cancel := context.WithCancel(observability.WithSessionID(r.Context(), string(id)))
	log := observability.LoggerFromContext(ctx)

	defer func() {
		cancel()
		_ = conn.Close()
		if err := s.svc.EndSession(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			log.Error("failed to end session on disconnect", "error", err)
		}
		log.Info("websocket closed")
	}()

	welcome, err := s.openSession(ctx, id)
	if err != nil {
		log.Error("failed to open websocket session", "error", err)
		_ = sendJSON(conn, errorFrame("session_unavailable", "Could not start a session. Please reconnect."))
		return
	}
	if err := sendJSON(conn, welcome); err != nil {
		return
	}
	log.Info("websocket connected")

	inbound := make(chan wsInbound, wsInboundQueue)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer close(inbound)
		readFrames(ctx, cancel, conn, inbound, log)
	}()
	defer func() {
		cancel()
		_ = conn.Close()
		<-readerDone
	}()

	for in := range inbound {
		if in.err != nil {
			if err := sendJSON(conn, errorFrame("invalid_message", "Messages must be JSON with a content field.")); err != nil {
				return
			}
			continue
		}
		if err := s.runSocketTurn(ctx, conn, id, in.frame); err != nil {
			log.Debug("websocket write failed", "error", err)
			return
		}
	}
}

// openSession starts the session or picks up the one a previous connection left behind.
func (s *Server) openSession(ctx context.Context, id domain.SessionID) (domain.Message, error) {
	out, err := s.svc.StartSession(ctx, conversation.StartSessionInput{SessionID: id})
	switch {
	case err == nil:
		return out.Welcome, nil
	case errors.Is(err, domain.ErrSessionExists):
		return s.svc.Welcome(), nil
	default:
		return domain.Message{}, err
	}
}

// runSocketTurn brackets one turn with typing indicators. Only write errors are returned.
func (s *Server) runSocketTurn(ctx context.Context, conn *websocket.Conn, id domain.SessionID, frame inboundFrame) error {
	if err := sendJSON(conn, typingFrame{Type: "typing_indicator", Typing: true}); err != nil {
		return err
	}

	out, turnErr := s.svc.SendMessage(ctx, conversation.SendMessageInput{
		SessionID: id,
		Text:      frame.Content,
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := sendJSON(conn, typingFrame{Type: "typing_indicator", Typing: false}); err != nil {
		return err
	}

	switch {
	case turnErr == nil:
		return sendJSON(conn, out.Reply)
	case errors.Is(turnErr, domain.ErrEmptyMessage):
		return sendJSON(conn, errorFrame("empty_message", "I didn't catch that. Could you type your message again?"))
	case errors.Is(turnErr, domain.ErrRateLimited):
		return sendJSON(conn, errorFrame("rate_limited", "You're sending messages quickly. Please give me a moment."))
	default:
		observability.LoggerFromContext(ctx).Error("websocket turn failed", "error", turnErr)
		return sendJSON(conn, errorFrame("processing_error", "Something went wrong on my side. Please try again."))
	}
}

// readFrames pumps client frames into out until the socket fails or ctx ends.
// A read failure cancels ctx so an in-flight turn is discarded.
func readFrames(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- wsInbound, log *slog.Logger) {
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}

		var in wsInbound
		in.err = json.Unmarshal(data, &in.frame)

		select {
		case out <- in:
		case <-ctx.Done():
			return
		}
	}
}

func sendJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}

func errorFrame(errorType, text string) domain.Message {
	return domain.NewMessage(domain.SenderBot, text, time.Now(), map[string]any{
		domain.MetaError:     true,
		domain.MetaErrorType: errorType,
	})
}
