// Package segment turns a stream of role-attributed transcript text into
// discrete candidate questions.
package segment

import (
	"fmt"
	"strings"
	"time"

	"interview-assist-service/internal/service/speaker"
)

// State represents the state of the question segmenter.
type State int

const (
	// StateIdle - No candidate question is buffered.
	StateIdle State = iota
	// StateBuffering - A candidate question is accumulating text.
	StateBuffering
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBuffering:
		return "BUFFERING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// FlushReason records which condition finalized a buffer.
type FlushReason int

const (
	FlushPause FlushReason = iota
	FlushComplete
	FlushMaxDuration
	FlushSpeakerSwitch
	FlushFinal
)

// String returns the metric/log label of the reason.
func (r FlushReason) String() string {
	switch r {
	case FlushPause:
		return "pause"
	case FlushComplete:
		return "complete"
	case FlushMaxDuration:
		return "max_duration"
	case FlushSpeakerSwitch:
		return "speaker_switch"
	case FlushFinal:
		return "final"
	default:
		return fmt.Sprintf("unknown(%d)", r)
	}
}

// Limits defines the timing thresholds of the segmenter.
type Limits struct {
	CompletionPause   time.Duration // Silence after which a likely question flushes
	MaxBufferDuration time.Duration // Forced flush regardless of completeness
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		CompletionPause:   2 * time.Second,
		MaxBufferDuration: 12 * time.Second,
	}
}

// Buffer is the candidate question being accumulated.
type Buffer struct {
	Text          string
	Role          speaker.Role
	StartedAt     time.Time
	LastUpdatedAt time.Time
	// Owner is the first known role to update a buffer created without one.
	Owner speaker.Role
}

// Speaker returns the role the buffer is attributed to: its creation role
// when known, otherwise its owner.
func (b Buffer) Speaker() speaker.Role {
	if b.Role.Known() {
		return b.Role
	}
	return b.Owner
}

// Flush is a finalized buffer handed to the emission gate. Role is the
// buffer's attributed speaker.
type Flush struct {
	Text      string
	Role      speaker.Role
	Reason    FlushReason
	StartedAt time.Time
}

// Input is one transcript event after speaker normalization.
type Input struct {
	Role    speaker.Role
	Text    string
	IsFinal bool
	At      time.Time
}

// Result describes the effect of a single Observe call.
type Result struct {
	Flushes           []Flush
	Started           bool // a new buffer was created
	Updated           bool // the buffer took the event's text
	RecheckAfterFinal bool // a final event landed in a live buffer
}

// Segmenter is the per-session question buffering state machine.
//
// State transitions:
//
//	IDLE ──likely question──→ BUFFERING
//	  ↑                          │
//	  └──── flush ───────────────┘
//
// Flush triggers, first match wins:
//   - pause since last update ≥ CompletionPause while still a likely question
//   - text is complete (terminal punctuation or long subject/modal question)
//   - buffer age ≥ MaxBufferDuration
//   - an event from a different known role arrives; a buffer created by an
//     untagged event belongs to the first known role that updates it
//
// Not safe for concurrent use; owned by the session reactor.
type Segmenter struct {
	classifier *Classifier
	limits     Limits
	buf        *Buffer
}

// NewSegmenter creates a segmenter in IDLE state.
func NewSegmenter(classifier *Classifier, limits Limits) *Segmenter {
	return &Segmenter{
		classifier: classifier,
		limits:     limits,
	}
}

// State returns the current state.
func (s *Segmenter) State() State {
	if s.buf == nil {
		return StateIdle
	}
	return StateBuffering
}

// Current returns a copy of the live buffer.
func (s *Segmenter) Current() (Buffer, bool) {
	if s.buf == nil {
		return Buffer{}, false
	}
	return *s.buf, true
}

// Observe feeds one transcript event into the state machine.
func (s *Segmenter) Observe(in Input) Result {
	var res Result

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return res
	}

	// Speaker switch: finalize what the previous speaker said before
	// looking at the new text.
	if s.buf != nil && in.Role.Known() {
		if owner := s.buf.Speaker(); owner.Known() && in.Role != owner {
			res.Flushes = append(res.Flushes, s.flush(FlushSpeakerSwitch))
		}
	}

	if s.buf == nil {
		if !s.classifier.IsLikelyQuestion(text) {
			return res
		}
		s.buf = &Buffer{
			Text:          text,
			Role:          in.Role,
			StartedAt:     in.At,
			LastUpdatedAt: in.At,
		}
		res.Started = true
	} else {
		// Events carry the cumulative utterance, so text replaces.
		s.buf.Text = text
		s.buf.LastUpdatedAt = in.At
		if !s.buf.Speaker().Known() {
			s.buf.Owner = in.Role
		}
	}
	res.Updated = true

	if s.classifier.IsComplete(text) {
		res.Flushes = append(res.Flushes, s.flush(FlushComplete))
		return res
	}
	if in.At.Sub(s.buf.StartedAt) >= s.limits.MaxBufferDuration {
		res.Flushes = append(res.Flushes, s.flush(FlushMaxDuration))
		return res
	}

	res.RecheckAfterFinal = in.IsFinal
	return res
}

// Evaluate checks the time-based flush conditions at now.
func (s *Segmenter) Evaluate(now time.Time) (Flush, bool) {
	if s.buf == nil {
		return Flush{}, false
	}
	if now.Sub(s.buf.StartedAt) >= s.limits.MaxBufferDuration {
		return s.flush(FlushMaxDuration), true
	}
	if now.Sub(s.buf.LastUpdatedAt) >= s.limits.CompletionPause && s.classifier.IsLikelyQuestion(s.buf.Text) {
		return s.flush(FlushPause), true
	}
	if s.classifier.IsComplete(s.buf.Text) {
		return s.flush(FlushComplete), true
	}
	return Flush{}, false
}

// EvaluateFinal re-checks the buffer shortly after a final event received at
// finalAt. Trailing words that arrived since then defer to Evaluate.
func (s *Segmenter) EvaluateFinal(now, finalAt time.Time) (Flush, bool) {
	if s.buf == nil {
		return Flush{}, false
	}
	if !s.buf.LastUpdatedAt.After(finalAt) && s.classifier.IsLikelyQuestion(s.buf.Text) {
		return s.flush(FlushFinal), true
	}
	return s.Evaluate(now)
}

// NextDeadline returns when Evaluate can next produce a flush.
func (s *Segmenter) NextDeadline() (time.Time, bool) {
	if s.buf == nil {
		return time.Time{}, false
	}
	deadline := s.buf.StartedAt.Add(s.limits.MaxBufferDuration)
	if s.classifier.IsLikelyQuestion(s.buf.Text) {
		if pauseAt := s.buf.LastUpdatedAt.Add(s.limits.CompletionPause); pauseAt.Before(deadline) {
			deadline = pauseAt
		}
	}
	return deadline, true
}

// Reset drops any live buffer. Called on session start and stop.
func (s *Segmenter) Reset() {
	s.buf = nil
}

func (s *Segmenter) flush(reason FlushReason) Flush {
	f := Flush{
		Text:      s.buf.Text,
		Role:      s.buf.Speaker(),
		Reason:    reason,
		StartedAt: s.buf.StartedAt,
	}
	s.buf = nil
	return f
}
