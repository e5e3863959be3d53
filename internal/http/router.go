package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"interview-assist-service/internal/app"
	"interview-assist-service/internal/observability/reporting"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(reporting.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if err := application.Ready(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/session/start", func(w http.ResponseWriter, r *http.Request) {
			if err := application.Session.Start(r.Context()); err != nil {
				log.Error().Err(err).Msg("Failed to start session")
				reporting.CaptureRequest(r, err, "session start")
				writeError(w, http.StatusBadGateway, err)
				return
			}
			writeSnapshot(w, r, application)
		})

		r.Post("/session/stop", func(w http.ResponseWriter, r *http.Request) {
			application.Session.Stop()
			writeSnapshot(w, r, application)
		})

		r.Get("/session", func(w http.ResponseWriter, r *http.Request) {
			writeSnapshot(w, r, application)
		})

		r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"turns": application.Session.History()})
		})

		r.Delete("/history", func(w http.ResponseWriter, r *http.Request) {
			if err := application.Session.ClearHistory(r.Context()); err != nil {
				reporting.CaptureRequest(r, err, "clear history")
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		// Websockets
		r.Get("/events", application.Hub.ServeHTTP)
		r.Get("/audio", application.Audio.ServeHTTP)
	})

	return r
}

func writeSnapshot(w http.ResponseWriter, r *http.Request, application *app.Application) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	snap, err := application.Session.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
