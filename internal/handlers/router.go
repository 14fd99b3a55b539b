package handlers

import (
	"io/fs"
	"log/slog"
	"net/http"

	chatplayground "github.com/MegaGrindStone/chat-playground"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the playground pages, the proxy API and the metrics endpoint. Cross-origin calls are
// only answered on the /api routes, for allowedOrigins.
func NewRouter(m Main, p Proxy, allowedOrigins []string, logger *slog.Logger) (http.Handler, error) {
	staticFS, err := fs.Sub(chatplayground.StaticFS, "static")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(RecordMetrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(LogRequests(logger))
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	r.Get("/", m.HandleHome)
	r.Get("/models", m.HandleModels)
	r.Post("/chats", m.HandleChats)
	r.Get("/sse/turns", m.HandleTurn)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Handle("/chat", p)
	})

	return r, nil
}
