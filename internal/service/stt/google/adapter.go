// Package google provides a Google Cloud Speech-to-Text adapter with
// speaker diarization.
package google

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"interview-assist-service/internal/models"
	"interview-assist-service/internal/service/stt"
)

// Config holds Google STT configuration.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string // LINEAR16, MULAW, FLAC, ...
	Model          string // optional, e.g. "latest_long"

	MinSpeakers int32
	MaxSpeakers int32

	// Voice activity timeouts; zero leaves the provider defaults.
	SpeechStartTimeout time.Duration
	SpeechEndTimeout   time.Duration
}

// DefaultConfig returns the defaults for an interview call.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   8000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
		MinSpeakers:    2,
		MaxSpeakers:    2,
	}
}

func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// streamingConfig builds the first request of a stream.
func streamingConfig(cfg Config) *speechpb.StreamingRecognitionConfig {
	rc := &speechpb.RecognitionConfig{
		Encoding:                   parseAudioEncoding(cfg.AudioEncoding),
		SampleRateHertz:            cfg.SampleRateHz,
		LanguageCode:               cfg.LanguageCode,
		Model:                      cfg.Model,
		EnableAutomaticPunctuation: true,
		DiarizationConfig: &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          cfg.MinSpeakers,
			MaxSpeakerCount:          cfg.MaxSpeakers,
		},
	}

	sc := &speechpb.StreamingRecognitionConfig{
		Config:         rc,
		InterimResults: cfg.InterimResults,
	}
	if cfg.SpeechStartTimeout > 0 || cfg.SpeechEndTimeout > 0 {
		vat := &speechpb.StreamingRecognitionConfig_VoiceActivityTimeout{}
		if cfg.SpeechStartTimeout > 0 {
			vat.SpeechStartTimeout = durationpb.New(cfg.SpeechStartTimeout)
		}
		if cfg.SpeechEndTimeout > 0 {
			vat.SpeechEndTimeout = durationpb.New(cfg.SpeechEndTimeout)
		}
		sc.EnableVoiceActivityEvents = true
		sc.VoiceActivityTimeout = vat
	}
	return sc
}

// toEvent converts one streaming result. ok is false for empty results.
func toEvent(r *speechpb.StreamingRecognitionResult, at time.Time) (models.TranscriptEvent, bool) {
	if len(r.Alternatives) == 0 {
		return models.TranscriptEvent{}, false
	}
	alt := r.Alternatives[0]
	text := strings.TrimSpace(alt.Transcript)
	if text == "" {
		return models.TranscriptEvent{}, false
	}

	var words []models.Word
	for _, w := range alt.Words {
		word := models.Word{Text: w.Word}
		if w.SpeakerTag > 0 {
			word.SpeakerID = models.SpeakerID(int(w.SpeakerTag))
		}
		words = append(words, word)
	}

	return models.TranscriptEvent{
		RawSpeakerID: stt.DominantSpeaker(words),
		Text:         text,
		IsFinal:      r.IsFinal,
		ArrivalTime:  at,
		Words:        words,
	}, true
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
	closed bool
}

// New creates a new Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: c, cfg: cfg, logger: logger}, nil
}

// Start begins a streaming recognition session, sends the initial config and
// starts receiving results.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.stream = stream
	a.cb = cb
	a.mu.Unlock()

	// Send streaming config as the first message
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig(a.cfg),
		},
	})
	if err != nil {
		return err
	}

	go a.listen(stream, cb)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.stream == nil {
		return errors.New("stream not started")
	}
	return a.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close ends the streaming session and the client.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var err error
	if a.stream != nil {
		err = a.stream.CloseSend()
	}
	if cerr := a.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// listen receives transcript responses from Google and invokes callbacks.
func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			if a.expectedEnd(err) {
				return
			}
			cb.OnError(err)
			return
		}
		if resp.Error != nil {
			cb.OnError(status.ErrorProto(resp.Error))
			return
		}

		now := time.Now()
		for _, r := range resp.Results {
			if ev, ok := toEvent(r, now); ok {
				cb.OnTranscript(ev)
			}
		}
	}
}

func (a *Adapter) expectedEnd(err error) bool {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()

	if errors.Is(err, io.EOF) && closed {
		return true
	}
	if status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) {
		a.logger.Debug().Msg("Google stream cancelled")
		return true
	}
	return false
}
