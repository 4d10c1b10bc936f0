// Package ops is the thin, read-only HTTP surface a running simulation
// exposes for health checks and dashboards — never order submission or
// book/portfolio serialization.
package ops

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/efreitasn/marketsim/internal/simulation"
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router exposing /healthz and /status for sim.
func NewRouter(sim *simulation.Simulation, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogging(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{
			Step:        uint32(sim.CurrentStep()),
			HasNextStep: sim.HasNextStep(),
			AssetCount:  sim.AssetCount(),
			UserCount:   sim.UserCount(),
		})
	})

	return r
}

type statusResponse struct {
	Step        uint32 `json:"step"`
	HasNextStep bool   `json:"has_next_step"`
	AssetCount  int    `json:"asset_count"`
	UserCount   int    `json:"user_count"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// requestLogging logs each request's method, path, status, and duration.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}
