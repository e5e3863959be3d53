// Package mock provides a mock STT adapter for testing without cloud credentials.
// It replays a scripted two-speaker interview: progressive partial transcripts
// followed by exactly one final transcript per utterance, each word tagged
// with the utterance's speaker.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"interview-assist-service/internal/models"
	"interview-assist-service/internal/service/stt"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Speaker  int
	Partials []string // Progressive partial transcripts
	Final    string   // Final transcript text
}

// DefaultScript is an interviewer (speaker 1) and candidate (speaker 2) exchange.
var DefaultScript = []SimulatedUtterance{
	{
		Speaker:  1,
		Partials: []string{"Can you", "Can you tell me", "Can you tell me about"},
		Final:    "Can you tell me about a project you are proud of?",
	},
	{
		Speaker:  2,
		Partials: []string{"Sure", "Sure I built", "Sure I built a streaming"},
		Final:    "Sure, I built a streaming ingestion pipeline in Go.",
	},
	{
		Speaker:  1,
		Partials: []string{"How did you", "How did you handle", "How did you handle back pressure"},
		Final:    "How did you handle back pressure in that pipeline?",
	},
	{
		Speaker:  2,
		Partials: []string{"We used", "We used bounded channels"},
		Final:    "We used bounded channels and dropped stale frames.",
	},
	{
		Speaker:  1,
		Partials: []string{"What is", "What is the time complexity", "What is the time complexity of a heap insert"},
		Final:    "What is the time complexity of a heap insert?",
	},
}

// Config controls how the script is played.
type Config struct {
	Script []SimulatedUtterance
	// FrameInterval advances the script on a ticker instead of per audio
	// frame. Zero means one step per SendAudio call.
	FrameInterval time.Duration
	// Loop restarts the script when it ends.
	Loop bool
}

// DefaultConfig plays DefaultScript once, one step per audio frame.
func DefaultConfig() Config {
	return Config{Script: DefaultScript}
}

// Adapter implements stt.Adapter with scripted responses.
type Adapter struct {
	cfg   Config
	steps []models.TranscriptEvent

	mu            sync.Mutex
	cb            stt.Callback
	next          int
	audioReceived int
	closed        bool
	stop          chan struct{}
	now           func() time.Time
}

// New creates a new mock STT adapter.
func New(cfg Config) *Adapter {
	if len(cfg.Script) == 0 {
		cfg.Script = DefaultScript
	}
	return &Adapter{
		cfg:   cfg,
		steps: expand(cfg.Script),
		stop:  make(chan struct{}),
		now:   time.Now,
	}
}

// expand flattens the script into the transcript events it produces.
func expand(script []SimulatedUtterance) []models.TranscriptEvent {
	var out []models.TranscriptEvent
	for _, u := range script {
		for _, p := range u.Partials {
			out = append(out, event(u.Speaker, p, false))
		}
		out = append(out, event(u.Speaker, u.Final, true))
	}
	return out
}

func event(speaker int, text string, final bool) models.TranscriptEvent {
	fields := strings.Fields(text)
	words := make([]models.Word, len(fields))
	for i, f := range fields {
		words[i] = models.Word{Text: f, SpeakerID: models.SpeakerID(speaker)}
	}
	return models.TranscriptEvent{
		RawSpeakerID: models.SpeakerID(speaker),
		Text:         text,
		IsFinal:      final,
		Words:        words,
	}
}

// Start begins a mock transcription session.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	a.cb = cb
	a.mu.Unlock()

	if a.cfg.FrameInterval > 0 {
		go a.autoplay(ctx)
	}
	return nil
}

// SendAudio advances the script by one event unless autoplay is on.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if a.closed || a.cb == nil {
		a.mu.Unlock()
		return nil
	}
	a.audioReceived++
	a.mu.Unlock()

	if a.cfg.FrameInterval == 0 {
		a.step()
	}
	return nil
}

// AudioFrames returns how many audio frames were received.
func (a *Adapter) AudioFrames() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.audioReceived
}

// Close ends the mock session. Pending script steps are dropped.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	close(a.stop)
	return nil
}

// step delivers the next scripted event. Returns false once the script ended.
func (a *Adapter) step() bool {
	a.mu.Lock()
	if a.closed || a.cb == nil {
		a.mu.Unlock()
		return false
	}
	if a.next >= len(a.steps) {
		if !a.cfg.Loop {
			a.mu.Unlock()
			return false
		}
		a.next = 0
	}
	ev := a.steps[a.next]
	a.next++
	cb := a.cb
	ev.ArrivalTime = a.now()
	a.mu.Unlock()

	cb.OnTranscript(ev)
	return true
}

func (a *Adapter) autoplay(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case <-ticker.C:
			if !a.step() {
				return
			}
		}
	}
}
