// Package schema validates outbound session events before they leave the
// process.
package schema

import (
	"errors"
	"fmt"

	"interview-assist-service/internal/models"
)

// ErrInvalidEvent wraps every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks the fields each event type requires.
func (v *Validator) Validate(ev models.Event) error {
	if ev.SessionID == "" {
		return invalid(ev, "missing sessionId")
	}
	if ev.Timestamp <= 0 {
		return invalid(ev, "missing timestamp")
	}

	switch ev.EventType {
	case models.EventTranscript:
		if ev.Text == "" {
			return invalid(ev, "missing text")
		}
	case models.EventCurrentQuestion:
		// Empty text clears the current question
	case models.EventQuestion:
		if ev.QuestionID == "" || ev.Text == "" {
			return invalid(ev, "missing questionId or text")
		}
	case models.EventAnswer:
		if ev.QuestionID == "" || ev.Answer == "" {
			return invalid(ev, "missing questionId or answer")
		}
	case models.EventError:
		if ev.Error == "" {
			return invalid(ev, "missing error")
		}
		switch ev.ErrorKind {
		case models.ErrorKindProviderConnection, models.ErrorKindBackendCall, models.ErrorKindDispatchTimeout:
		default:
			return invalid(ev, fmt.Sprintf("unknown errorKind %q", ev.ErrorKind))
		}
	case models.EventStatus:
		if ev.Status != models.StatusStarted && ev.Status != models.StatusStopped {
			return invalid(ev, fmt.Sprintf("unknown status %q", ev.Status))
		}
	default:
		return invalid(ev, "unknown eventType")
	}
	return nil
}

func invalid(ev models.Event, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidEvent, ev.EventType, reason)
}
