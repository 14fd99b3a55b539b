// Package consumer implements the client side of the chat proxy: it sends a chat turn, reads the
// streamed response incrementally and folds every delta into the caller's transcript.
package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/chat-playground/internal/metrics"
	"github.com/MegaGrindStone/chat-playground/internal/models"
	"github.com/MegaGrindStone/chat-playground/internal/stream"
)

// Client sends chat turns to a proxy endpoint. A Client holds no conversation state; the transcript is
// owned by the caller and passed into every call.
type Client struct {
	endpoint string

	client *http.Client

	logger *slog.Logger
}

// StatusError is returned when the proxy answers with a non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

// ErrNoModel is returned when a turn is attempted without a selected model.
var ErrNoModel = errors.New("model is required")

const errLoggerKey = "err"

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

// NewClient creates a new Client posting to endpoint. A nil httpClient selects a client without
// timeout, since a turn lasts as long as its stream.
func NewClient(endpoint string, httpClient *http.Client, logger *slog.Logger) Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return Client{
		endpoint: endpoint,
		client:   httpClient,
		logger:   logger.With(slog.String("module", "consumer")),
	}
}

// Send appends prompt to t as a user message and streams the assistant's answer into t. See Stream.
func (c Client) Send(ctx context.Context, model string, t *models.Transcript, prompt string, onUpdate func(models.Message)) error {
	if model == "" {
		return ErrNoModel
	}
	um := t.AppendUser(prompt)
	notify(onUpdate, um)

	return c.Stream(ctx, model, t, onUpdate)
}

// Stream sends the history of t to the proxy and folds the streamed answer into t. A non-nil onUpdate
// is called with a copy of the affected message after every change to t.
//
// On a non-success status the error body is logged and a *StatusError is returned without touching t.
// On success an empty assistant message is appended right away, then every delta is appended to it in
// arrival order and onUpdate is called after each one. Payloads that fail to parse are logged and
// skipped. When the stream ends, by the done sentinel, by exhaustion or by an error, the assistant
// message is finalized. Read errors are returned to the caller; nothing is retried.
func (c Client) Stream(ctx context.Context, model string, t *models.Transcript, onUpdate func(models.Message)) error {
	if model == "" {
		return ErrNoModel
	}

	resp, err := c.doRequest(ctx, models.ChatRequest{
		Model:    model,
		Messages: t.ChatMessages(),
	})
	if err != nil {
		metrics.Turns.WithLabelValues("error").Inc()
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("Chat request failed",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)))
		metrics.Turns.WithLabelValues("status_error").Inc()
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	notify(onUpdate, t.AppendAssistant())

	outcome, err := c.fold(resp.Body, t, onUpdate)

	if t.Finish() {
		if last, ok := t.Last(); ok {
			notify(onUpdate, last)
		}
	}
	metrics.Turns.WithLabelValues(outcome).Inc()

	return err
}

func (c Client) fold(body io.Reader, t *models.Transcript, onUpdate func(models.Message)) (string, error) {
	for ev, err := range stream.Read(body) {
		if err != nil {
			return "error", err
		}

		switch ev.Kind {
		case stream.KindDone:
			return "done", nil
		case stream.KindMalformed:
			c.logger.Warn("Skipping malformed stream payload",
				slog.String("payload", ev.Raw),
				slog.String(errLoggerKey, ev.Err.Error()))
			metrics.MalformedFrames.Inc()
		case stream.KindText:
			notify(onUpdate, t.AppendText(ev.Text))
		case stream.KindReasoning:
			notify(onUpdate, t.AppendReasoning(ev.Text, ev.Redacted))
		}
	}
	return "exhausted", nil
}

func (c Client) doRequest(ctx context.Context, body models.ChatRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	return c.client.Do(req)
}

func notify(onUpdate func(models.Message), m models.Message) {
	if onUpdate != nil {
		onUpdate(m)
	}
}
