// Package deepgram provides a Deepgram streaming STT adapter over websocket
// with speaker diarization.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"interview-assist-service/internal/models"
	"interview-assist-service/internal/service/stt"
)

const defaultURL = "wss://api.deepgram.com/v1/listen"

// Config holds configuration for the Deepgram adapter.
type Config struct {
	APIKey         string
	URL            string // defaults to the public endpoint
	Language       string // e.g., "en-US"
	Model          string // e.g., "nova-3"
	SampleRate     int
	Encoding       string // e.g., "linear16"
	Channels       int
	Punctuate      bool
	Endpointing    int // milliseconds of silence for endpointing, 0 for default
	UtteranceEndMs int // 0 for default
}

// DefaultConfig returns the defaults for a mono 16 kHz PCM stream.
func DefaultConfig() Config {
	return Config{
		URL:        defaultURL,
		Language:   "en-US",
		Model:      "nova-3",
		SampleRate: 16000,
		Encoding:   "linear16",
		Channels:   1,
		Punctuate:  true,
	}
}

// listenURL builds the websocket URL with diarization enabled.
func listenURL(cfg Config) (string, error) {
	base := cfg.URL
	if base == "" {
		base = defaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse deepgram url: %w", err)
	}

	q := u.Query()
	q.Set("model", cfg.Model)
	q.Set("language", cfg.Language)
	q.Set("encoding", cfg.Encoding)
	q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	q.Set("channels", strconv.Itoa(cfg.Channels))
	q.Set("punctuate", strconv.FormatBool(cfg.Punctuate))
	q.Set("interim_results", "true")
	q.Set("diarize", "true")
	if cfg.Endpointing > 0 {
		q.Set("endpointing", strconv.Itoa(cfg.Endpointing))
	}
	if cfg.UtteranceEndMs > 0 {
		q.Set("utterance_end_ms", strconv.Itoa(cfg.UtteranceEndMs))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// response represents a Deepgram websocket message.
type response struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word           string `json:"word"`
				PunctuatedWord string `json:"punctuated_word"`
				Speaker        *int   `json:"speaker"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal     bool `json:"is_final"`
	SpeechFinal bool `json:"speech_final"`
}

// parseMessage converts a Results message. ok is false for other message
// types and empty transcripts.
func parseMessage(msg []byte, at time.Time) (models.TranscriptEvent, bool, error) {
	var resp response
	if err := json.Unmarshal(msg, &resp); err != nil {
		return models.TranscriptEvent{}, false, err
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return models.TranscriptEvent{}, false, nil
	}

	alt := resp.Channel.Alternatives[0]
	text := strings.TrimSpace(alt.Transcript)
	if text == "" {
		return models.TranscriptEvent{}, false, nil
	}

	words := make([]models.Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		word := models.Word{Text: w.PunctuatedWord, SpeakerID: w.Speaker}
		if word.Text == "" {
			word.Text = w.Word
		}
		words = append(words, word)
	}

	return models.TranscriptEvent{
		RawSpeakerID: stt.DominantSpeaker(words),
		Text:         text,
		IsFinal:      resp.IsFinal || resp.SpeechFinal,
		ArrivalTime:  at,
		Words:        words,
	}, true, nil
}

// Adapter implements stt.Adapter using Deepgram's streaming API.
type Adapter struct {
	cfg    Config
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a Deepgram adapter. The connection is opened by Start.
func New(cfg Config, logger zerolog.Logger) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("deepgram api key is required")
	}
	return &Adapter{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Start connects to Deepgram and begins reading results.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	u, err := listenURL(a.cfg)
	if err != nil {
		return err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+a.cfg.APIKey)

	conn, _, err := a.dialer.DialContext(ctx, u, headers)
	if err != nil {
		return fmt.Errorf("failed to connect to Deepgram: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	a.wg.Add(1)
	go a.readLoop(conn, cb)
	return nil
}

// SendAudio sends audio data to Deepgram.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	select {
	case <-a.done:
		return errors.New("adapter is closed")
	default:
	}
	if a.conn == nil {
		return errors.New("stream not started")
	}
	return a.conn.WriteMessage(websocket.BinaryMessage, audio)
}

// Close closes the Deepgram connection and waits for the reader to exit.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.done)

		a.mu.Lock()
		conn := a.conn
		if conn != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "CloseStream"}`))
			err = conn.Close()
		}
		a.mu.Unlock()

		a.wg.Wait()
	})
	return err
}

func (a *Adapter) readLoop(conn *websocket.Conn, cb stt.Callback) {
	defer a.wg.Done()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-a.done:
			default:
				cb.OnError(fmt.Errorf("read error: %w", err))
			}
			return
		}

		ev, ok, err := parseMessage(msg, time.Now())
		if err != nil {
			a.logger.Warn().Err(err).Msg("Failed to parse Deepgram response")
			continue
		}
		if !ok {
			continue
		}

		select {
		case <-a.done:
			return
		default:
			cb.OnTranscript(ev)
		}
	}
}
