package schema

import (
	"errors"
	"testing"

	"interview-assist-service/internal/models"
)

func TestValidator_Validate(t *testing.T) {
	v := New()
	base := models.Event{SessionID: "sess-1", Timestamp: 1700000000000}

	with := func(mod func(e *models.Event)) models.Event {
		e := base
		mod(&e)
		return e
	}

	tests := []struct {
		name  string
		event models.Event
		valid bool
	}{
		{"transcript", with(func(e *models.Event) { e.EventType = models.EventTranscript; e.Text = "hi" }), true},
		{"transcript without text", with(func(e *models.Event) { e.EventType = models.EventTranscript }), false},
		{"current question cleared", with(func(e *models.Event) { e.EventType = models.EventCurrentQuestion }), true},
		{"question", with(func(e *models.Event) {
			e.EventType = models.EventQuestion
			e.QuestionID = "sess-1-q-1"
			e.Text = "Why?"
		}), true},
		{"question without id", with(func(e *models.Event) { e.EventType = models.EventQuestion; e.Text = "Why?" }), false},
		{"answer", with(func(e *models.Event) {
			e.EventType = models.EventAnswer
			e.QuestionID = "sess-1-q-1"
			e.Answer = "Because."
		}), true},
		{"answer without text", with(func(e *models.Event) { e.EventType = models.EventAnswer; e.QuestionID = "q" }), false},
		{"error", with(func(e *models.Event) {
			e.EventType = models.EventError
			e.Error = "stream reset"
			e.ErrorKind = models.ErrorKindProviderConnection
		}), true},
		{"error with unknown kind", with(func(e *models.Event) {
			e.EventType = models.EventError
			e.Error = "x"
			e.ErrorKind = "other"
		}), false},
		{"status", with(func(e *models.Event) { e.EventType = models.EventStatus; e.Status = models.StatusStarted }), true},
		{"status unknown", with(func(e *models.Event) { e.EventType = models.EventStatus; e.Status = "paused" }), false},
		{"unknown type", with(func(e *models.Event) { e.EventType = "session.other" }), false},
		{"missing session", models.Event{EventType: models.EventStatus, Status: models.StatusStopped, Timestamp: 1}, false},
		{"missing timestamp", models.Event{EventType: models.EventStatus, Status: models.StatusStopped, SessionID: "s"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Error("expected validation error")
				} else if !errors.Is(err, ErrInvalidEvent) {
					t.Errorf("expected ErrInvalidEvent, got %v", err)
				}
			}
		})
	}
}
