// Package stt defines the interface for Speech-to-Text adapters.
package stt

import (
	"context"

	"interview-assist-service/internal/models"
)

// Callback receives transcript results from the STT provider.
// Calls may arrive on any goroutine.
type Callback interface {
	// OnTranscript is called for every interim or final result.
	OnTranscript(ev models.TranscriptEvent)

	// OnError is called when the provider stream fails. No further
	// transcripts follow.
	OnError(err error)
}

// Adapter defines the interface for diarizing STT providers (Google, Deepgram, mock).
type Adapter interface {
	// Start begins a streaming transcription session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the STT provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources.
	Close() error
}

// Factory creates a fresh adapter for each listening interval.
type Factory func(ctx context.Context) (Adapter, error)

// DominantSpeaker reduces per-word speaker tags to the speaker with the most
// words. Ties go to the speaker seen first; nil when no word is tagged.
func DominantSpeaker(words []models.Word) *int {
	counts := make(map[int]int)
	var order []int
	for _, w := range words {
		if w.SpeakerID == nil {
			continue
		}
		id := *w.SpeakerID
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}
	if len(order) == 0 {
		return nil
	}
	best := order[0]
	for _, id := range order[1:] {
		if counts[id] > counts[best] {
			best = id
		}
	}
	return models.SpeakerID(best)
}
