package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/chat-playground/internal/models"
	"github.com/MegaGrindStone/chat-playground/internal/stream"
)

type pendingTurnData struct {
	SessionID string
	TurnID    string
}

// SSE event types pushed to the browser while a turn streams.
const (
	turnEventType      = "turn"
	turnErrorEventType = "turnError"
	closeTurnEventType = "closeTurn"
)

// HandleChats accepts a chat turn through HTTP POST requests. It expects the "session_id", "model" and
// "message" form fields.
//
// The user's message is appended to the session transcript right away, and the handler renders it
// together with a pending turn placeholder that connects to HandleTurn, where the answer is streamed.
// A session streams one turn at a time; a send while a turn is streaming is rejected with 409. A turn
// whose stream never connected is replaced by the next send.
// Without a selected model nothing is sent.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := strings.TrimSpace(r.FormValue("message"))
	if msg == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	model := r.FormValue("model")
	if model == "" {
		m.logger.Error("Model is required")
		http.Error(w, "Select a model before sending", http.StatusBadRequest)
		return
	}

	sessionID := r.FormValue("session_id")
	sess, ok := m.sessions.get(sessionID)
	if !ok {
		m.logger.Error("Session not found", slog.String("sessionID", sessionID))
		http.Error(w, "Session expired, reload the page", http.StatusNotFound)
		return
	}

	um, t, err := sess.beginTurn(model, msg)
	if err != nil {
		m.logger.Error("Failed to begin turn",
			slog.String("sessionID", sessionID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	if err := m.templates.ExecuteTemplate(w, "user_message", messageView(um)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = m.templates.ExecuteTemplate(w, "pending_turn", pendingTurnData{
		SessionID: sessionID,
		TurnID:    t.ID,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleTurn streams the answer of a pending turn as server-sent events. The turn runs inside this
// request: the Consumer is driven here, every delta re-renders the assistant message as a "turn"
// event, a failure is rendered as a "turnError" event, and "closeTurn" ends the stream. The browser
// going away cancels the turn.
//
// A turn is streamed at most once. Unknown or already claimed turns answer 204, which stops the
// browser from reconnecting.
func (m Main) HandleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	sess, ok := m.sessions.get(sessionID)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	t, ok := sess.claimTurn(r.URL.Query().Get("turn_id"))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	defer sess.endTurn(t.ID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stopShutdown := context.AfterFunc(m.ctx, cancel)
	defer stopShutdown()

	logger := m.logger.With(
		slog.String("sessionID", sessionID),
		slog.String("turnID", t.ID),
		slog.String("model", t.Model))

	onUpdate := func(msg models.Message) {
		if msg.Role != models.RoleAssistant {
			return
		}

		var sb strings.Builder
		if err := m.templates.ExecuteTemplate(&sb, "ai_message", messageView(msg)); err != nil {
			logger.Error("Failed to execute ai_message template", slog.String(errLoggerKey, err.Error()))
			return
		}
		if err := stream.WriteEvent(w, turnEventType, sb.String()); err != nil {
			logger.Debug("Failed to push turn event", slog.String(errLoggerKey, err.Error()))
			return
		}
		flusher.Flush()
	}

	err := m.consumer.Stream(ctx, t.Model, &sess.transcript, onUpdate)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Turn failed", slog.String(errLoggerKey, err.Error()))

		var sb strings.Builder
		if err := m.templates.ExecuteTemplate(&sb, "turn_error", nil); err != nil {
			logger.Error("Failed to execute turn_error template", slog.String(errLoggerKey, err.Error()))
		} else if err := stream.WriteEvent(w, turnErrorEventType, sb.String()); err != nil {
			logger.Debug("Failed to push turn error", slog.String(errLoggerKey, err.Error()))
		}
	}

	// The browser re-enables sending on closeTurn, so the session is released first
	sess.endTurn(t.ID)

	// Every SSE event needs a data field, so the close event carries a dummy one
	if err := stream.WriteEvent(w, closeTurnEventType, "bye"); err != nil {
		logger.Debug("Failed to push close event", slog.String(errLoggerKey, err.Error()))
		return
	}
	flusher.Flush()
}
