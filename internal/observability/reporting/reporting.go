// Package reporting forwards errors to Sentry when a DSN is configured.
// Without Init every call is a no-op.
package reporting

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

var enabled atomic.Bool

// Config holds error reporting configuration.
type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
}

// Init configures the Sentry client. An empty DSN leaves reporting off.
func Init(cfg Config) error {
	if cfg.DSN == "" {
		log.Info().Msg("Sentry disabled, no DSN configured")
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
	})
	if err != nil {
		return err
	}
	enabled.Store(true)
	log.Info().Str("environment", cfg.Environment).Msg("Sentry initialized")
	return nil
}

// Enabled reports whether errors are forwarded.
func Enabled() bool {
	return enabled.Load()
}

// Capture sends err tagged with the given key/value pairs.
func Capture(err error, tags map[string]string) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CaptureRequest sends err with the HTTP request attached.
func CaptureRequest(req *http.Request, err error, msg string) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}

// Recoverer reports panics in next and answers 500.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", req.URL.Path).Msg("Recovered from panic")
				if enabled.Load() {
					hub := sentry.CurrentHub().Clone()
					hub.Scope().SetRequest(req)
					hub.RecoverWithContext(req.Context(), rec)
					hub.Flush(2 * time.Second)
				}
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

// Flush waits for buffered events to be sent.
func Flush(timeout time.Duration) {
	if enabled.Load() {
		sentry.Flush(timeout)
	}
}
