package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/chat-playground/internal/metrics"
	"github.com/MegaGrindStone/chat-playground/internal/models"
	"github.com/MegaGrindStone/chat-playground/internal/stream"
)

// Proxy forwards chat requests to an Upstream and re-emits its streaming response as server-sent
// events, one `data:` event per upstream chunk followed by a single `data: [DONE]` event.
type Proxy struct {
	upstream Upstream

	logger *slog.Logger
}

// NewProxy creates a new Proxy streaming from upstream.
func NewProxy(upstream Upstream, logger *slog.Logger) Proxy {
	return Proxy{
		upstream: upstream,
		logger:   logger.With(slog.String("module", "proxy")),
	}
}

// ServeHTTP handles a POST with a models.ChatRequest body.
//
// A configuration error answers 500 with the error as plain text, before the body is looked at and
// without contacting the upstream. A stream that cannot be opened answers 502. Once streaming has
// started, an upstream error aborts the response so the client sees it end abnormally instead of
// being silently truncated.
func (p Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		p.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := p.upstream.Validate(); err != nil {
		p.logger.Error("Upstream not configured", slog.String(errLoggerKey, err.Error()))
		metrics.UpstreamErrors.WithLabelValues("config").Inc()
		plainError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		p.logger.Error("Failed to decode request", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	messages, err := chatHistory(req)
	if err != nil {
		p.logger.Error("Invalid chat request", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	next, stop := iter.Pull2(p.upstream.Stream(r.Context(), req.Model, messages))
	defer stop()

	// We pull the first chunk before writing headers, so a stream that fails to open still gets a
	// proper status code
	chunk, err, ok := next()
	if ok && err != nil {
		p.logger.Error("Failed to open upstream stream",
			slog.String("model", req.Model),
			slog.String(errLoggerKey, err.Error()))
		metrics.UpstreamErrors.WithLabelValues("open").Inc()
		plainError(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ; ok; chunk, err, ok = next() {
		if err != nil {
			if errors.Is(err, context.Canceled) || r.Context().Err() != nil {
				p.logger.Debug("Client went away during stream")
				return
			}
			p.logger.Error("Upstream stream failed",
				slog.String("model", req.Model),
				slog.String(errLoggerKey, err.Error()))
			metrics.UpstreamErrors.WithLabelValues("stream").Inc()
			panic(http.ErrAbortHandler)
		}

		if err := stream.WriteData(w, chunk); err != nil {
			p.logger.Debug("Failed to write chunk", slog.String(errLoggerKey, err.Error()))
			return
		}
		flusher.Flush()
		metrics.ProxiedChunks.Inc()
	}

	if err := stream.WriteDone(w); err != nil {
		p.logger.Debug("Failed to write done sentinel", slog.String(errLoggerKey, err.Error()))
		return
	}
	flusher.Flush()
}

// chatHistory returns the messages to send upstream: the request's history, or its prompt wrapped as
// a single user message.
func chatHistory(req models.ChatRequest) ([]models.ChatMessage, error) {
	if req.Model == "" {
		return nil, errors.New("model is required")
	}

	if len(req.Messages) == 0 {
		if req.Prompt == "" {
			return nil, errors.New("messages or prompt is required")
		}
		return []models.ChatMessage{
			{Role: string(models.RoleUser), Content: req.Prompt},
		}, nil
	}

	for _, msg := range req.Messages {
		switch models.Role(msg.Role) {
		case models.RoleUser, models.RoleAssistant:
		default:
			return nil, errors.New("unsupported role: " + msg.Role)
		}
	}
	return req.Messages, nil
}

// plainError is http.Error without the trailing newline, for bodies clients match exactly.
func plainError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, msg)
}
