package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full service configuration, loaded from the environment.
type Config struct {
	Service       ServiceConfig
	STT           STTConfig
	Segmenter     SegmenterConfig
	Emission      EmissionConfig
	Dispatch      DispatchConfig
	Conversation  ConversationConfig
	Answer        AnswerConfig
	AudioLimits   AudioLimitsConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Principal   string
	Environment string
	HTTPPort    string
	GRPCPort    string
	MetricsPort string
}

type STTConfig struct {
	Provider       string // mock, google, deepgram
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
	MinSpeakers    int
	MaxSpeakers    int

	GoogleModel      string
	SpeechEndTimeout time.Duration

	DeepgramAPIKey string
	DeepgramModel  string
	DeepgramURL    string

	MockFrameInterval time.Duration
	MockLoop          bool
}

type SegmenterConfig struct {
	CompletionPause   time.Duration
	MaxBufferDuration time.Duration
	FinalRecheckDelay time.Duration
	RulesFile         string // optional YAML override of the classifier tables
}

type EmissionConfig struct {
	DebounceWindow time.Duration
}

type DispatchConfig struct {
	StuckTimeout time.Duration
	OtherSpeaker bool
}

type ConversationConfig struct {
	MaxExchanges int
	Store        string // file, postgres, memory
	FilePath     string
	DatabaseURL  string
	HistoryKey   string
}

type AnswerConfig struct {
	Backend      string // mock, openai
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	MockDelay    time.Duration
}

// AudioLimitsConfig bounds audio pushed over the ingest websocket.
type AudioLimitsConfig struct {
	MaxFrameBytes  int
	MaxStreamBytes int64
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicQuestion string
	TopicAnswer   string
	Principal     string
}

type ObservabilityConfig struct {
	LogLevel         string
	LogFormat        string
	SentryDSN        string
	SentrySampleRate float64
}

// Load reads the configuration. Unparseable values fall back to defaults.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-interview-assist")

	return &Config{
		Service: ServiceConfig{
			Principal:   principal,
			Environment: envOrDefault("ENVIRONMENT", "development"),
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
		STT: STTConfig{
			Provider:          envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:      envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:      envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			InterimResults:    envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:     envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			MinSpeakers:       envOrDefaultInt("STT_MIN_SPEAKERS", 2),
			MaxSpeakers:       envOrDefaultInt("STT_MAX_SPEAKERS", 2),
			GoogleModel:       envOrDefault("STT_GOOGLE_MODEL", ""),
			SpeechEndTimeout:  envOrDefaultDuration("STT_SPEECH_END_TIMEOUT", 0),
			DeepgramAPIKey:    envOrDefault("DEEPGRAM_API_KEY", ""),
			DeepgramModel:     envOrDefault("DEEPGRAM_MODEL", "nova-3"),
			DeepgramURL:       envOrDefault("DEEPGRAM_URL", ""),
			MockFrameInterval: envOrDefaultDuration("STT_MOCK_FRAME_INTERVAL", 0),
			MockLoop:          envOrDefaultBool("STT_MOCK_LOOP", false),
		},
		Segmenter: SegmenterConfig{
			CompletionPause:   envOrDefaultDuration("SEGMENT_COMPLETION_PAUSE", 2*time.Second),
			MaxBufferDuration: envOrDefaultDuration("SEGMENT_MAX_BUFFER_DURATION", 12*time.Second),
			FinalRecheckDelay: envOrDefaultDuration("SEGMENT_FINAL_RECHECK_DELAY", 300*time.Millisecond),
			RulesFile:         envOrDefault("SEGMENT_RULES_FILE", ""),
		},
		Emission: EmissionConfig{
			DebounceWindow: envOrDefaultDuration("EMISSION_DEBOUNCE_WINDOW", 3*time.Second),
		},
		Dispatch: DispatchConfig{
			StuckTimeout: envOrDefaultDuration("DISPATCH_STUCK_TIMEOUT", 30*time.Second),
			OtherSpeaker: envOrDefaultBool("DISPATCH_OTHER_SPEAKER", false),
		},
		Conversation: ConversationConfig{
			MaxExchanges: envOrDefaultInt("CONVERSATION_MAX_EXCHANGES", 5),
			Store:        envOrDefault("CONVERSATION_STORE", "file"),
			FilePath:     envOrDefault("CONVERSATION_FILE", "data/history.jsonl"),
			DatabaseURL:  envOrDefault("DATABASE_URL", ""),
			HistoryKey:   envOrDefault("CONVERSATION_HISTORY_KEY", principal),
		},
		Answer: AnswerConfig{
			Backend:      envOrDefault("ANSWER_BACKEND", "mock"),
			APIKey:       envOrDefault("OPENAI_API_KEY", ""),
			BaseURL:      envOrDefault("OPENAI_BASE_URL", ""),
			Model:        envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			SystemPrompt: envOrDefault("ANSWER_SYSTEM_PROMPT", ""),
			MaxTokens:    envOrDefaultInt("ANSWER_MAX_TOKENS", 600),
			Temperature:  envOrDefaultFloat("ANSWER_TEMPERATURE", 0.3),
			MockDelay:    envOrDefaultDuration("ANSWER_MOCK_DELAY", 500*time.Millisecond),
		},
		AudioLimits: AudioLimitsConfig{
			MaxFrameBytes:  envOrDefaultInt("AUDIO_MAX_FRAME_BYTES", 64*1024),
			MaxStreamBytes: envOrDefaultInt64("AUDIO_MAX_STREAM_BYTES", 512*1024*1024),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", nil),
			TopicQuestion: envOrDefault("KAFKA_TOPIC_QUESTION", "interview.question.detected"),
			TopicAnswer:   envOrDefault("KAFKA_TOPIC_ANSWER", "interview.answer.generated"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:         envOrDefault("LOG_LEVEL", "info"),
			LogFormat:        envOrDefault("LOG_FORMAT", "json"),
			SentryDSN:        envOrDefault("SENTRY_DSN", ""),
			SentrySampleRate: envOrDefaultFloat("SENTRY_TRACES_SAMPLE_RATE", 0),
		},
	}
}

// Validate checks provider choices and the credentials they require.
func (c *Config) Validate() error {
	var errs []error

	switch c.STT.Provider {
	case "mock", "google":
	case "deepgram":
		if c.STT.DeepgramAPIKey == "" {
			errs = append(errs, errors.New("DEEPGRAM_API_KEY is required for the deepgram provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STT_PROVIDER %q", c.STT.Provider))
	}

	switch c.Answer.Backend {
	case "mock":
	case "openai":
		if c.Answer.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ANSWER_BACKEND %q", c.Answer.Backend))
	}

	switch c.Conversation.Store {
	case "file", "memory":
	case "postgres":
		if c.Conversation.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CONVERSATION_STORE %q", c.Conversation.Store))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when Kafka is enabled"))
	}

	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultList splits a comma-separated value, dropping empty items.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
