package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"interview-assist-service/internal/config"
	"interview-assist-service/internal/events"
	"interview-assist-service/internal/observability/logging"
	"interview-assist-service/internal/observability/metrics"
	"interview-assist-service/internal/observability/reporting"
	"interview-assist-service/internal/schema"
	"interview-assist-service/internal/service/answer"
	"interview-assist-service/internal/service/audio"
	"interview-assist-service/internal/service/conversation"
	"interview-assist-service/internal/service/segment"
	"interview-assist-service/internal/service/session"
	"interview-assist-service/internal/service/stt"
	"interview-assist-service/internal/service/stt/deepgram"
	"interview-assist-service/internal/service/stt/google"
	"interview-assist-service/internal/service/stt/mock"
	"interview-assist-service/internal/ui"
)

var errNotStarted = errors.New("application not started")

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Metrics     *metrics.Metrics

	Session *session.Session
	History *conversation.Context
	Hub     *ui.Hub
	Audio   *audio.Handler

	publisher *events.Publisher
	cancel    context.CancelFunc
}

// New constructs a new Application from the provided configuration.
// A nil m uses the default metrics registry.
func New(cfg *config.Config, m *metrics.Metrics) *Application {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	a := &Application{
		Cfg:     cfg,
		Metrics: m,
		Logger:  logging.WithComponent("application"),
	}

	a.Logger.Info().
		Str("principal", cfg.Service.Principal).
		Str("environment", cfg.Service.Environment).
		Msg("Interview assist application created")
	return a
}

// Start builds the pipeline and its collaborators. Background workers run
// until Shutdown.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().Str("method", "Start").Logger()
	cfg := a.Cfg

	classifier, err := newClassifier(cfg.Segmenter.RulesFile)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg.Conversation)
	if err != nil {
		return err
	}
	a.History = conversation.New(cfg.Conversation.MaxExchanges, store, logging.WithComponent("conversation"))
	if err := a.History.Load(ctx); err != nil {
		// Already logged; start empty
		a.Metrics.RecordHistoryPersistError()
	}
	a.Metrics.SetHistoryTurns(a.History.Len())

	backend, err := newBackend(cfg.Answer)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Hub = ui.NewHub(a.Metrics, logging.WithComponent("ui-hub"))
	go a.Hub.Run(runCtx)

	sinks := ui.Fanout{a.Hub, ui.NewLogSink(logging.WithComponent("events"))}
	a.publisher = events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicQuestion: cfg.Kafka.TopicQuestion,
		TopicAnswer:   cfg.Kafka.TopicAnswer,
		Principal:     cfg.Kafka.Principal,
	}, a.Metrics, logging.WithComponent("kafka"))
	if a.publisher.Enabled() {
		kafkaSink := ui.NewKafkaSink(a.publisher, schema.New(), 256, logging.WithComponent("kafka-sink"))
		kafkaSink.OnDrop(a.Metrics.RecordUIEventDropped)
		go kafkaSink.Run(runCtx)
		sinks = append(sinks, kafkaSink)
	}

	a.Session = session.New(session.Config{
		Limits: segment.Limits{
			CompletionPause:   cfg.Segmenter.CompletionPause,
			MaxBufferDuration: cfg.Segmenter.MaxBufferDuration,
		},
		FinalRecheckDelay:    cfg.Segmenter.FinalRecheckDelay,
		DebounceWindow:       cfg.Emission.DebounceWindow,
		StuckTimeout:         cfg.Dispatch.StuckTimeout,
		Provider:             cfg.STT.Provider,
		DispatchOtherSpeaker: cfg.Dispatch.OtherSpeaker,
	}, session.Deps{
		Classifier: classifier,
		STT:        newSTTFactory(cfg.STT),
		Backend:    backend,
		History:    a.History,
		Sink:       sinks,
		Metrics:    a.Metrics,
		Logger:     logging.WithComponent("session"),
	})

	a.Audio = audio.NewHandler(a.Session, audio.Limits{
		MaxFrameBytes:  cfg.AudioLimits.MaxFrameBytes,
		MaxStreamBytes: cfg.AudioLimits.MaxStreamBytes,
	}, a.Metrics, logging.WithComponent("audio"))

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("sttProvider", cfg.STT.Provider).
		Str("answerBackend", cfg.Answer.Backend).
		Str("historyStore", cfg.Conversation.Store).
		Bool("kafka", a.publisher.Enabled()).
		Bool("sentry", reporting.Enabled()).
		Msg("Interview assist service starting")

	return nil
}

// Ready reports whether Start completed.
func (a *Application) Ready() error {
	if a.Session == nil {
		return errNotStarted
	}
	return nil
}

// Shutdown stops the session, saves the history and releases resources.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().Str("method", "Shutdown").Logger()
	shutdownLogger.Info().Msg("Interview assist service shutting down")

	if a.Session != nil {
		a.Session.Stop()
	}
	if a.History != nil {
		if err := a.History.Save(ctx); err != nil {
			shutdownLogger.Error().Err(err).Msg("Failed to save conversation history")
		}
		if err := a.History.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Error closing history store")
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
}

func newClassifier(rulesFile string) (*segment.Classifier, error) {
	rules := segment.DefaultRules()
	if rulesFile != "" {
		var err error
		if rules, err = segment.LoadRules(rulesFile); err != nil {
			return nil, err
		}
	}
	return segment.NewClassifier(rules)
}

func newStore(ctx context.Context, cfg config.ConversationConfig) (conversation.Store, error) {
	switch cfg.Store {
	case "memory":
		return conversation.NewMemoryStore(), nil
	case "postgres":
		store, err := conversation.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.HistoryKey)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case "file", "":
		return conversation.NewFileStore(cfg.FilePath), nil
	default:
		return nil, fmt.Errorf("unknown conversation store %q", cfg.Store)
	}
}

func newBackend(cfg config.AnswerConfig) (answer.Backend, error) {
	switch cfg.Backend {
	case "openai":
		oc := answer.DefaultOpenAIConfig()
		oc.APIKey = cfg.APIKey
		oc.BaseURL = cfg.BaseURL
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.SystemPrompt != "" {
			oc.SystemPrompt = cfg.SystemPrompt
		}
		oc.MaxTokens = cfg.MaxTokens
		oc.Temperature = float32(cfg.Temperature)
		b, err := answer.NewOpenAIBackend(oc, logging.WithComponent("openai"))
		if err != nil {
			return nil, err
		}
		return b, nil
	case "mock", "":
		return answer.NewMockBackend(cfg.MockDelay), nil
	default:
		return nil, fmt.Errorf("unknown answer backend %q", cfg.Backend)
	}
}

// newSTTFactory returns a factory creating one provider stream per session run.
func newSTTFactory(cfg config.STTConfig) stt.Factory {
	switch cfg.Provider {
	case "google":
		gc := google.DefaultConfig()
		gc.LanguageCode = cfg.LanguageCode
		gc.SampleRateHz = int32(cfg.SampleRateHz)
		gc.InterimResults = cfg.InterimResults
		gc.AudioEncoding = cfg.AudioEncoding
		gc.Model = cfg.GoogleModel
		gc.MinSpeakers = int32(cfg.MinSpeakers)
		gc.MaxSpeakers = int32(cfg.MaxSpeakers)
		gc.SpeechEndTimeout = cfg.SpeechEndTimeout
		return func(ctx context.Context) (stt.Adapter, error) {
			a, err := google.New(ctx, gc, logging.WithComponent("stt-google"))
			if err != nil {
				return nil, err
			}
			return a, nil
		}
	case "deepgram":
		dc := deepgram.DefaultConfig()
		dc.APIKey = cfg.DeepgramAPIKey
		if cfg.DeepgramURL != "" {
			dc.URL = cfg.DeepgramURL
		}
		dc.Model = cfg.DeepgramModel
		dc.Language = cfg.LanguageCode
		dc.SampleRate = cfg.SampleRateHz
		return func(ctx context.Context) (stt.Adapter, error) {
			a, err := deepgram.New(dc, logging.WithComponent("stt-deepgram"))
			if err != nil {
				return nil, err
			}
			return a, nil
		}
	default:
		mc := mock.DefaultConfig()
		mc.FrameInterval = cfg.MockFrameInterval
		mc.Loop = cfg.MockLoop
		return func(ctx context.Context) (stt.Adapter, error) {
			return mock.New(mc), nil
		}
	}
}
