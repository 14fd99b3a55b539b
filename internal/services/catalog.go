package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/chat-playground/internal/models"
)

// ModelCatalog fetches the static list of selectable models from a listing endpoint.
type ModelCatalog struct {
	url string

	client *http.Client

	logger *slog.Logger
}

// ModelsEndpoint is the default Fireworks model listing endpoint.
const ModelsEndpoint = "https://app.fireworks.ai/api/models/mini-playground"

// NewModelCatalog creates a new ModelCatalog reading from url. An empty url selects ModelsEndpoint.
func NewModelCatalog(url string, logger *slog.Logger) ModelCatalog {
	if url == "" {
		url = ModelsEndpoint
	}
	return ModelCatalog{
		url:    url,
		client: &http.Client{},
		logger: logger.With(slog.String("module", "catalog")),
	}
}

// Models returns the listed models in listing order. Results are not cached; callers fetch once per
// session.
func (c ModelCatalog) Models(ctx context.Context) ([]models.Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if msg == "" {
			msg = resp.Status
		}
		return nil, errors.New(msg)
	}

	var ms []models.Model
	if err := json.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("error decoding models: %w", err)
	}

	c.logger.Debug("Fetched models", slog.Int("count", len(ms)))

	return ms, nil
}
