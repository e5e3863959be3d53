package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"interview-assist-service/internal/models"
)

// testCallback implements stt.Callback for testing
type testCallback struct {
	mu     sync.Mutex
	events []models.TranscriptEvent
	errors []error
}

func (c *testCallback) OnTranscript(ev models.TranscriptEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testCallback) getEvents() []models.TranscriptEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.TranscriptEvent{}, c.events...)
}

var shortScript = []SimulatedUtterance{
	{Speaker: 1, Partials: []string{"What is", "What is a"}, Final: "What is a mutex?"},
	{Speaker: 2, Final: "A lock."},
}

func TestAdapter_New(t *testing.T) {
	adapter := New(Config{})
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if adapter.closed {
		t.Error("expected adapter to not be closed initially")
	}
	if len(adapter.steps) == 0 {
		t.Error("expected default script to be used")
	}
}

func TestAdapter_SendAudioWithoutStart(t *testing.T) {
	adapter := New(Config{Script: shortScript})

	if err := adapter.SendAudio(context.Background(), []byte{1}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if adapter.AudioFrames() != 0 {
		t.Error("audio before Start must be ignored")
	}
}

func TestAdapter_OneStepPerFrame(t *testing.T) {
	adapter := New(Config{Script: shortScript})
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	for i := 0; i < 10; i++ {
		adapter.SendAudio(context.Background(), []byte{0})
	}

	events := cb.getEvents()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}

	expected := []struct {
		text    string
		final   bool
		speaker int
	}{
		{"What is", false, 1},
		{"What is a", false, 1},
		{"What is a mutex?", true, 1},
		{"A lock.", true, 2},
	}
	for i, e := range expected {
		ev := events[i]
		if ev.Text != e.text || ev.IsFinal != e.final || *ev.RawSpeakerID != e.speaker {
			t.Errorf("event %d: got %+v, want %+v", i, ev, e)
		}
		if ev.ArrivalTime.IsZero() {
			t.Errorf("event %d: missing arrival time", i)
		}
	}

	if adapter.AudioFrames() != 10 {
		t.Errorf("expected 10 frames counted, got %d", adapter.AudioFrames())
	}
}

func TestAdapter_WordsCarrySpeaker(t *testing.T) {
	adapter := New(Config{Script: shortScript})
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)
	adapter.SendAudio(context.Background(), []byte{0})

	ev := cb.getEvents()[0]
	if len(ev.Words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(ev.Words))
	}
	for _, w := range ev.Words {
		if w.SpeakerID == nil || *w.SpeakerID != 1 {
			t.Errorf("expected speaker 1 on %q", w.Text)
		}
	}
}

func TestAdapter_Loop(t *testing.T) {
	adapter := New(Config{Script: shortScript, Loop: true})
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	for i := 0; i < 6; i++ {
		adapter.SendAudio(context.Background(), []byte{0})
	}

	events := cb.getEvents()
	if len(events) != 6 || events[4].Text != "What is" {
		t.Errorf("expected script to restart, got %d events", len(events))
	}
}

func TestAdapter_CloseStopsDelivery(t *testing.T) {
	adapter := New(Config{Script: shortScript})
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	adapter.SendAudio(context.Background(), []byte{0})
	if err := adapter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	adapter.SendAudio(context.Background(), []byte{0})

	if len(cb.getEvents()) != 1 {
		t.Errorf("expected no events after close, got %d", len(cb.getEvents()))
	}

	// Close is idempotent
	if err := adapter.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestAdapter_Autoplay(t *testing.T) {
	adapter := New(Config{Script: shortScript, FrameInterval: 5 * time.Millisecond})
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)
	defer adapter.Close()

	deadline := time.Now().Add(2 * time.Second)
	for len(cb.getEvents()) < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	events := cb.getEvents()
	if len(events) != 4 {
		t.Fatalf("expected full script, got %d events", len(events))
	}

	// Audio does not advance the script in autoplay mode
	adapter.SendAudio(context.Background(), []byte{0})
	time.Sleep(20 * time.Millisecond)
	if len(cb.getEvents()) != 4 {
		t.Error("expected no extra events")
	}
}

func TestAdapter_AutoplayStopsOnCancel(t *testing.T) {
	adapter := New(Config{Script: shortScript, FrameInterval: 20 * time.Millisecond, Loop: true})
	cb := &testCallback{}
	ctx, cancel := context.WithCancel(context.Background())
	adapter.Start(ctx, cb)

	cancel()
	time.Sleep(60 * time.Millisecond)
	n := len(cb.getEvents())
	time.Sleep(60 * time.Millisecond)

	if len(cb.getEvents()) != n {
		t.Error("expected playback to stop after cancel")
	}
}

func TestExpand(t *testing.T) {
	steps := expand(DefaultScript)

	finals := 0
	for _, s := range steps {
		if s.IsFinal {
			finals++
		}
	}
	if finals != len(DefaultScript) {
		t.Errorf("expected one final per utterance, got %d", finals)
	}
}
