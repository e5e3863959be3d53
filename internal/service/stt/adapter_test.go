package stt

import (
	"testing"

	"interview-assist-service/internal/models"
)

func words(ids ...int) []models.Word {
	out := make([]models.Word, len(ids))
	for i, id := range ids {
		if id >= 0 {
			out[i].SpeakerID = models.SpeakerID(id)
		}
		out[i].Text = "w"
	}
	return out
}

func TestDominantSpeaker(t *testing.T) {
	tests := []struct {
		name     string
		words    []models.Word
		expected int // -1 for nil
	}{
		{"no words", nil, -1},
		{"untagged", words(-1, -1), -1},
		{"single speaker", words(2, 2, 2), 2},
		{"majority", words(1, 2, 2, 1, 2), 2},
		{"tie goes to first seen", words(3, 1, 1, 3), 3},
		{"untagged ignored", words(-1, -1, -1, 4), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DominantSpeaker(tt.words)
			if tt.expected < 0 {
				if got != nil {
					t.Errorf("expected nil, got %d", *got)
				}
				return
			}
			if got == nil || *got != tt.expected {
				t.Errorf("expected %d, got %v", tt.expected, got)
			}
		})
	}
}
