package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MegaGrindStone/chat-playground/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LogRequests returns a request logging middleware. The wrapped writer keeps http.Flusher available to
// streaming handlers.
func LogRequests(logger *slog.Logger) func(next http.Handler) http.Handler {
	logger = logger.With(slog.String("module", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("Request completed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Duration("latency", time.Since(start)),
					slog.String("requestID", middleware.GetReqID(r.Context())),
					slog.String("remoteAddr", r.RemoteAddr))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// RecordMetrics returns middleware that records Prometheus metrics, labelled by route pattern to keep
// cardinality bounded.
func RecordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(ww, r)
	})
}
