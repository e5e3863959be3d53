package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"interview-assist-service/internal/config"
	"interview-assist-service/internal/observability/metrics"
	"interview-assist-service/internal/service/conversation"
	"interview-assist-service/internal/service/stt/mock"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.STT.Provider = "mock"
	cfg.STT.MockFrameInterval = 0
	cfg.Answer.Backend = "mock"
	cfg.Answer.MockDelay = 0
	cfg.Conversation.Store = "file"
	cfg.Conversation.FilePath = filepath.Join(t.TempDir(), "history.jsonl")
	cfg.Kafka.Enabled = false
	cfg.Segmenter.RulesFile = ""
	return cfg
}

func TestApplication_EndToEndWithMocks(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, metrics.New(prometheus.NewRegistry()))

	if err := a.Ready(); err == nil {
		t.Error("expected not ready before Start")
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.Ready(); err != nil {
		t.Errorf("expected ready after Start, got %v", err)
	}

	if err := a.Session.Start(context.Background()); err != nil {
		t.Fatalf("session start: %v", err)
	}

	// Each frame advances the scripted interview by one event; the first
	// utterance is a complete interviewer question.
	for i := 0; i < 4; i++ {
		if err := a.Session.SendAudio(context.Background(), make([]byte, 320)); err != nil {
			t.Fatalf("send audio: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(a.Session.History()) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected one answered exchange, got %+v", a.Session.History())
		}
		time.Sleep(10 * time.Millisecond)
	}

	history := a.Session.History()
	if history[0].Content != mock.DefaultScript[0].Final {
		t.Errorf("expected first question in history, got %q", history[0].Content)
	}

	a.Shutdown(context.Background())
	if a.Session.Running() {
		t.Error("expected session stopped after shutdown")
	}

	// History survives the process
	turns, err := conversation.NewFileStore(cfg.Conversation.FilePath).Load(context.Background())
	if err != nil {
		t.Fatalf("load saved history: %v", err)
	}
	if len(turns) != 2 {
		t.Errorf("expected 2 persisted turns, got %d", len(turns))
	}
}

func TestApplication_StartErrors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(c *config.Config)
	}{
		{"unknown store", func(c *config.Config) { c.Conversation.Store = "s3" }},
		{"openai without key", func(c *config.Config) { c.Answer.Backend = "openai"; c.Answer.APIKey = "" }},
		{"unknown backend", func(c *config.Config) { c.Answer.Backend = "llama" }},
		{"missing rules file", func(c *config.Config) { c.Segmenter.RulesFile = "/nonexistent/rules.yaml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mod(cfg)
			a := New(cfg, metrics.New(prometheus.NewRegistry()))
			if err := a.Start(context.Background()); err == nil {
				t.Error("expected start error")
				a.Shutdown(context.Background())
			}
		})
	}
}

func TestApplication_RulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("min_complete_length: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := newClassifier(path)
	if err != nil {
		t.Fatalf("newClassifier: %v", err)
	}
	if !c.IsComplete("can you do it for us") {
		t.Error("expected lowered completion floor from rules file")
	}
}

func TestNewSTTFactory_Mock(t *testing.T) {
	factory := newSTTFactory(config.STTConfig{Provider: "mock"})

	a, err := factory(context.Background())
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, ok := a.(*mock.Adapter); !ok {
		t.Errorf("expected mock adapter, got %T", a)
	}
}

func TestNewSTTFactory_DeepgramRequiresKey(t *testing.T) {
	factory := newSTTFactory(config.STTConfig{Provider: "deepgram"})

	if _, err := factory(context.Background()); err == nil {
		t.Error("expected error without API key")
	}
}
