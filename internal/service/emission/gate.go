// Package emission suppresses duplicate question emissions.
package emission

import (
	"strings"
	"time"
)

// Classifier is the sanity check applied before anything is emitted.
type Classifier interface {
	IsLikelyQuestion(text string) bool
}

// Outcome describes why TryEmit accepted or rejected a text.
type Outcome int

const (
	Emitted Outcome = iota
	SuppressedDuplicate
	SuppressedNotQuestion
)

// String returns the metric label of the outcome.
func (o Outcome) String() string {
	switch o {
	case Emitted:
		return "emitted"
	case SuppressedDuplicate:
		return "duplicate"
	case SuppressedNotQuestion:
		return "not_question"
	default:
		return "unknown"
	}
}

// Record is the single most recent emission of a session.
type Record struct {
	Text      string
	EmittedAt time.Time
}

// Gate debounces flushed questions against the last emitted text.
// Not safe for concurrent use; owned by the session reactor.
type Gate struct {
	classifier Classifier
	window     time.Duration
	last       *Record
}

// NewGate creates a gate with the given debounce window.
func NewGate(classifier Classifier, window time.Duration) *Gate {
	return &Gate{
		classifier: classifier,
		window:     window,
	}
}

// TryEmit reports whether text may be dispatched at now, recording it if so.
func (g *Gate) TryEmit(text string, now time.Time) bool {
	return g.Evaluate(text, now) == Emitted
}

// Evaluate is TryEmit with the reason for the decision.
func (g *Gate) Evaluate(text string, now time.Time) Outcome {
	outcome := g.Check(text, now)
	if outcome == Emitted {
		g.last = &Record{Text: text, EmittedAt: now}
	}
	return outcome
}

// Check applies the same rules as Evaluate without recording the text.
func (g *Gate) Check(text string, now time.Time) Outcome {
	if !g.classifier.IsLikelyQuestion(text) {
		return SuppressedNotQuestion
	}
	if g.last != nil && sameText(g.last.Text, text) && now.Sub(g.last.EmittedAt) < g.window {
		return SuppressedDuplicate
	}
	return Emitted
}

// Last returns the most recent emission record.
func (g *Gate) Last() (Record, bool) {
	if g.last == nil {
		return Record{}, false
	}
	return *g.last, true
}

// Reset forgets the last emission. Called on session start and stop.
func (g *Gate) Reset() {
	g.last = nil
}

// sameText compares ignoring case, spacing and trailing punctuation, so a
// pause flush and the provider's punctuated final count as one question.
func sameText(a, b string) bool {
	return normalize(a) == normalize(b)
}

func normalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, ".?!,;: ")
}
