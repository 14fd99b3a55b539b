package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"iter"
	"log/slog"
	"time"

	chatplayground "github.com/MegaGrindStone/chat-playground"
	"github.com/MegaGrindStone/chat-playground/internal/models"
)

// Upstream represents the hosted inference capability behind the proxy. Validate reports configuration
// errors before any request is made. Stream opens one streaming chat completion and returns an iterator
// that yields the JSON encoding of every chunk and potential errors; an error yielded before any chunk
// means the stream could not be opened.
type Upstream interface {
	Validate() error
	Stream(ctx context.Context, model string, messages []models.ChatMessage) iter.Seq2[json.RawMessage, error]
}

// Consumer streams one chat turn into a transcript, calling onUpdate after every change.
type Consumer interface {
	Stream(ctx context.Context, model string, t *models.Transcript, onUpdate func(models.Message)) error
}

// ModelCatalog lists the selectable models.
type ModelCatalog interface {
	Models(ctx context.Context) ([]models.Model, error)
}

// Main handles the browser facing side of the playground: it renders pages and partials, keeps one
// in-memory session per page load, and drives the Consumer for every chat turn, pushing each re-render
// to the browser over server-sent events.
type Main struct {
	templates *template.Template

	consumer Consumer
	catalog  ModelCatalog
	sessions *sessionStore

	// ctx is canceled by Shutdown to end every turn still streaming.
	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger
}

const (
	errLoggerKey = "err"

	sessionIdleTTL = time.Hour
)

// NewMain creates a new Main instance with the provided Consumer and ModelCatalog implementations. It
// parses the required HTML templates from the embedded filesystem, with Markdown rendering available
// to them.
func NewMain(consumer Consumer, catalog ModelCatalog, logger *slog.Logger) (Main, error) {
	md := newMarkdown()

	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"markdown": md.render,
	}).ParseFS(
		chatplayground.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return Main{
		templates: tmpl,
		consumer:  consumer,
		catalog:   catalog,
		sessions:  newSessionStore(sessionIdleTTL),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("module", "main")),
	}, nil
}

// Shutdown cancels every turn still streaming so their connections can terminate. It returns once all
// turns have ended or ctx is done.
func (m Main) Shutdown(ctx context.Context) error {
	m.cancel()

	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()

	for m.sessions.streaming() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
