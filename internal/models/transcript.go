// Package models defines the data structures shared across the question pipeline.
package models

import "time"

// Word is a single recognized word with an optional diarization tag.
type Word struct {
	Text      string `json:"text"`
	SpeakerID *int   `json:"speakerId,omitempty"`
}

// TranscriptEvent is one recognition result delivered by the speech provider.
// Providers resend the cumulative utterance-so-far until the result is final.
type TranscriptEvent struct {
	RawSpeakerID *int      `json:"rawSpeakerId,omitempty"`
	Text         string    `json:"text"`
	IsFinal      bool      `json:"isFinal"`
	ArrivalTime  time.Time `json:"arrivalTime"`
	Words        []Word    `json:"words,omitempty"`
}

// SpeakerID returns a pointer to a copy of id, for building events inline.
func SpeakerID(id int) *int {
	return &id
}
