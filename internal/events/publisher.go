// Package events publishes session events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"interview-assist-service/internal/models"
	"interview-assist-service/internal/observability/metrics"
)

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicQuestion string
	TopicAnswer   string
	Principal     string
	Enabled       bool
}

// Publisher routes session events to Kafka topics: detected questions to the
// question topic, answers and errors to the answer topic. A disabled
// publisher only logs.
type Publisher struct {
	writer  messageWriter
	cfg     Config
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a publisher. A nil cfg, Enabled=false or an empty broker list
// yields a log-only publisher. A nil m uses the default metrics.
func New(cfg *Config, m *metrics.Metrics, logger zerolog.Logger) *Publisher {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	p := &Publisher{metrics: m, logger: logger}
	if cfg == nil {
		logger.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return p
	}
	p.cfg = *cfg

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	// Topic is set per message so one writer serves both topics.
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicQuestion", cfg.TopicQuestion).
		Str("topicAnswer", cfg.TopicAnswer).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")
	return p
}

// Enabled reports whether messages reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// Publish writes ev to the topic for its type. Messages are keyed by question
// id so a question and its answer land on the same partition; events without
// one fall back to the session id.
func (p *Publisher) Publish(ctx context.Context, ev models.Event) error {
	start := time.Now()
	topic := p.topicFor(ev.EventType)
	eventType := string(ev.EventType)

	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	msg := p.message(topic, ev, payload)
	p.logger.Debug().
		Str("topic", topic).
		Str("key", string(msg.Key)).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if p.writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().
			Err(err).
			Str("topic", topic).
			Str("key", string(msg.Key)).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

func (p *Publisher) topicFor(t models.EventType) string {
	if t == models.EventQuestion {
		return p.cfg.TopicQuestion
	}
	return p.cfg.TopicAnswer
}

func (p *Publisher) message(topic string, ev models.Event, payload []byte) kafka.Message {
	key := ev.QuestionID
	if key == "" {
		key = ev.SessionID
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(ev.EventType)},
			{Key: "sessionId", Value: []byte(ev.SessionID)},
			{Key: "principal", Value: []byte(p.cfg.Principal)},
		},
	}
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error().Err(err).Msg("Error closing Kafka writer")
		return err
	}
	return nil
}
