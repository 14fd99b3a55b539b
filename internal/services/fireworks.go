package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/chat-playground/internal/models"
	"github.com/MegaGrindStone/chat-playground/internal/stream"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/tmaxmax/go-sse"
)

// Fireworks streams chat completions from the Fireworks inference API, which speaks the OpenAI chat
// completion protocol. Chunks are forwarded as the upstream sent them, so provider specific fields such
// as reasoning content are preserved.
type Fireworks struct {
	apiKey  string
	baseURL string

	client *http.Client

	logger *slog.Logger
}

// FireworksAPIEndpoint is the default base URL of the Fireworks inference API.
const FireworksAPIEndpoint = "https://api.fireworks.ai/inference/v1"

// ErrCredentialMissing is returned by Validate when no API key is configured.
var ErrCredentialMissing = errors.New("FIREWORKS_API_KEY not set")

// NewFireworks creates a new Fireworks instance. An empty baseURL selects FireworksAPIEndpoint. An
// empty apiKey is accepted here and reported by Validate, so a missing credential fails requests
// rather than startup.
func NewFireworks(apiKey, baseURL string, logger *slog.Logger) Fireworks {
	if baseURL == "" {
		baseURL = FireworksAPIEndpoint
	}
	return Fireworks{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "fireworks")),
	}
}

// Validate reports whether the upstream credential is configured.
func (f Fireworks) Validate() error {
	if f.apiKey == "" {
		return ErrCredentialMissing
	}
	return nil
}

// Stream opens a streaming chat completion for model and messages and returns an iterator over the
// JSON encoding of every chunk. Opening failures, including non-200 answers, are yielded as the first
// and only error. The context can be used to cancel the underlying request; a canceled stream ends
// without an error.
func (f Fireworks) Stream(
	ctx context.Context,
	model string,
	messages []models.ChatMessage,
) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		resp, err := f.doRequest(ctx, model, messages)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield(nil, fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		for ev, err := range sse.Read(resp.Body, &sse.ReadConfig{MaxEventSize: stream.MaxEventSize}) {
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				yield(nil, fmt.Errorf("error reading response: %w", err))
				return
			}

			if ev.Data == "" {
				continue
			}
			if strings.TrimSpace(ev.Data) == "[DONE]" {
				return
			}

			var chunk bytes.Buffer
			if err := json.Compact(&chunk, []byte(ev.Data)); err != nil {
				yield(nil, fmt.Errorf("error decoding chunk: %w", err))
				return
			}

			if !yield(json.RawMessage(chunk.Bytes()), nil) {
				return
			}
		}
	}
}

func (f Fireworks) chatRequest(model string, messages []models.ChatMessage) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	return goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stream:   true,
	}
}

func (f Fireworks) doRequest(
	ctx context.Context,
	model string,
	messages []models.ChatMessage,
) (*http.Response, error) {
	jsonBody, err := json.Marshal(f.chatRequest(model, messages))
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	f.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}
