// Package ui delivers session events to the presentation layer: websocket
// clients, Kafka topics and the log.
package ui

import (
	"github.com/rs/zerolog"

	"interview-assist-service/internal/models"
)

// Sink receives session events. Notify must not block the caller.
type Sink interface {
	Notify(ev models.Event)
}

// Fanout delivers each event to every sink in order.
type Fanout []Sink

func (f Fanout) Notify(ev models.Event) {
	for _, s := range f {
		if s != nil {
			s.Notify(ev)
		}
	}
}

// LogSink writes events to a zerolog logger. Transcript events go to debug.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ev models.Event) {
	e := s.logger.Info()
	switch ev.EventType {
	case models.EventTranscript, models.EventCurrentQuestion:
		e = s.logger.Debug()
	case models.EventError:
		e = s.logger.Warn().Str("errorKind", ev.ErrorKind).Str("error", ev.Error)
	}
	e.Str("eventType", string(ev.EventType)).
		Str("sessionId", ev.SessionID).
		Str("questionId", ev.QuestionID).
		Str("speaker", ev.Speaker).
		Str("text", ev.Text).
		Str("status", ev.Status).
		Int("answerLen", len(ev.Answer)).
		Msg("Session event")
}
