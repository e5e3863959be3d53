package reporting

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestInit_EmptyDSN(t *testing.T) {
	if err := Init(Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Enabled() {
		t.Error("expected reporting to stay disabled")
	}

	// No-ops without a client
	Capture(errors.New("boom"), map[string]string{"component": "test"})
	Flush(10 * time.Millisecond)
}

func TestInit_InvalidDSN(t *testing.T) {
	if err := Init(Config{DSN: "not a dsn"}); err == nil {
		t.Error("expected error for invalid DSN")
	}
	if Enabled() {
		t.Error("expected reporting disabled after failed init")
	}
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRecoverer_PassThrough(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
