// Package audio accepts raw audio frames over a websocket and forwards them
// to the live session's speech provider.
package audio

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"interview-assist-service/internal/observability/metrics"
	"interview-assist-service/internal/service/session"
)

// Limits defines safety guardrails for an audio stream.
// These prevent unbounded resource usage from a single client.
type Limits struct {
	MaxFrameBytes  int   // Max size of one binary frame
	MaxStreamBytes int64 // Max audio accepted over one connection
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes:  64 * 1024,         // 2s of 16kHz 16-bit mono
		MaxStreamBytes: 512 * 1024 * 1024, // ~4.6 hours at 16kHz 16-bit mono
	}
}

// Sender receives audio frames. *session.Session implements it.
type Sender interface {
	SendAudio(ctx context.Context, audio []byte) error
}

// Handler upgrades GET /v1/audio and streams binary frames to the sender.
// Text frames are ignored.
type Handler struct {
	sender   Sender
	limits   Limits
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates an audio ingest handler.
func NewHandler(sender Sender, limits Limits, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	return &Handler{
		sender:  sender,
		limits:  limits,
		metrics: m,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize: 16 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	// Hard cap; frames between MaxFrameBytes and this are rejected below
	// with a proper close code.
	if h.limits.MaxFrameBytes > 0 {
		conn.SetReadLimit(int64(h.limits.MaxFrameBytes) * 2)
	}

	ctx := r.Context()
	var total int64
	var frames int

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug().Err(err).Msg("Audio stream read ended")
			}
			break
		}
		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		if err := h.check(len(data), total); err != nil {
			h.logger.Warn().Err(err).Int64("bytes", total).Int("frames", frames).Msg("Audio stream rejected")
			closeWith(conn, websocket.CloseMessageTooBig, err.Error())
			return
		}
		total += int64(len(data))
		frames++
		h.metrics.RecordAudioReceived(len(data))

		if err := h.sender.SendAudio(ctx, data); err != nil {
			if errors.Is(err, session.ErrNotRunning) {
				closeWith(conn, websocket.ClosePolicyViolation, "session not running")
				return
			}
			h.logger.Error().Err(err).Msg("Failed to forward audio")
			closeWith(conn, websocket.CloseInternalServerErr, "speech provider error")
			return
		}
	}

	h.logger.Info().Int64("bytes", total).Int("frames", frames).Msg("Audio stream ended")
}

// check enforces the frame and stream limits for a frame of n bytes after
// total bytes were already accepted.
func (h *Handler) check(n int, total int64) error {
	if h.limits.MaxFrameBytes > 0 && n > h.limits.MaxFrameBytes {
		h.metrics.RecordLimitExceeded("frame_bytes")
		return fmt.Errorf("max frame bytes exceeded: %d > %d", n, h.limits.MaxFrameBytes)
	}
	if h.limits.MaxStreamBytes > 0 && total+int64(n) > h.limits.MaxStreamBytes {
		h.metrics.RecordLimitExceeded("stream_bytes")
		return fmt.Errorf("max stream bytes exceeded: %d > %d", total+int64(n), h.limits.MaxStreamBytes)
	}
	return nil
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
}
