package ui

import (
	"context"

	"github.com/rs/zerolog"

	"interview-assist-service/internal/models"
)

// Publisher is the subset of events.Publisher the Kafka sink needs.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// Validator checks events before they are published.
type Validator interface {
	Validate(ev models.Event) error
}

// KafkaSink publishes question, answer and error events. Notify only
// enqueues; Run does the publishing.
type KafkaSink struct {
	publisher Publisher
	validator Validator
	events    chan models.Event
	logger    zerolog.Logger
	onDrop    func()
}

// NewKafkaSink creates a sink with a buffer of size events.
func NewKafkaSink(publisher Publisher, validator Validator, size int, logger zerolog.Logger) *KafkaSink {
	if size <= 0 {
		size = 256
	}
	return &KafkaSink{
		publisher: publisher,
		validator: validator,
		events:    make(chan models.Event, size),
		logger:    logger,
	}
}

// OnDrop registers a callback for events dropped on a full buffer.
func (s *KafkaSink) OnDrop(f func()) {
	s.onDrop = f
}

func (s *KafkaSink) Notify(ev models.Event) {
	switch ev.EventType {
	case models.EventQuestion, models.EventAnswer, models.EventError:
	default:
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn().Str("eventType", string(ev.EventType)).Msg("Kafka sink buffer full, dropping event")
		if s.onDrop != nil {
			s.onDrop()
		}
	}
}

// Run publishes queued events until ctx is done, then drains the buffer.
func (s *KafkaSink) Run(ctx context.Context) {
	for {
		select {
		case ev := <-s.events:
			s.publish(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-s.events:
					s.publish(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

func (s *KafkaSink) publish(ctx context.Context, ev models.Event) {
	if s.validator != nil {
		if err := s.validator.Validate(ev); err != nil {
			s.logger.Error().Err(err).Msg("Dropping invalid event")
			return
		}
	}

	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("eventType", string(ev.EventType)).
			Str("questionId", ev.QuestionID).
			Msg("Failed to publish event")
	}
}
