package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestWithComponent_Fields(t *testing.T) {
	buf := captureGlobal(t)

	l := WithComponent("session").With().Str("sessionId", "sess-1").Logger()
	l.Info().Msg("started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}
	if entry["component"] != "session" || entry["sessionId"] != "sess-1" {
		t.Errorf("unexpected fields: %v", entry)
	}
}

func TestInit_InvalidLevelFallsBackToInfo(t *testing.T) {
	prev := zerolog.GlobalLevel()
	prevLogger := log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prev)
		log.Logger = prevLogger
	})

	cfg := DefaultConfig()
	cfg.Level = "loud"
	Init(cfg)

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %v", zerolog.GlobalLevel())
	}
}
