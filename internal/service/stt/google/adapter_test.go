package google

import (
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 8000 {
		t.Errorf("expected default sample rate 8000, got %d", cfg.SampleRateHz)
	}
	if cfg.InterimResults != true {
		t.Errorf("expected default interim results true, got %v", cfg.InterimResults)
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
	if cfg.MinSpeakers != 2 || cfg.MaxSpeakers != 2 {
		t.Errorf("expected two speakers, got %d..%d", cfg.MinSpeakers, cfg.MaxSpeakers)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"AMR", speechpb.RecognitionConfig_AMR},
		{"AMR_WB", speechpb.RecognitionConfig_AMR_WB},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"SPEEX_WITH_HEADER_BYTE", speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"UNKNOWN", speechpb.RecognitionConfig_LINEAR16}, // fallback
		{"invalid", speechpb.RecognitionConfig_LINEAR16}, // fallback
		{"", speechpb.RecognitionConfig_LINEAR16},        // fallback
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseAudioEncoding_CaseSensitive(t *testing.T) {
	// Encoding strings should be uppercase
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"linear16", speechpb.RecognitionConfig_LINEAR16}, // lowercase -> fallback
		{"Linear16", speechpb.RecognitionConfig_LINEAR16}, // mixed case -> fallback
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16}, // uppercase -> match
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStreamingConfig_Diarization(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AudioEncoding = "MULAW"

	sc := streamingConfig(cfg)

	if !sc.InterimResults {
		t.Error("expected interim results")
	}
	rc := sc.Config
	if rc.Encoding != speechpb.RecognitionConfig_MULAW {
		t.Errorf("expected MULAW, got %v", rc.Encoding)
	}
	if rc.DiarizationConfig == nil || !rc.DiarizationConfig.EnableSpeakerDiarization {
		t.Fatal("expected diarization enabled")
	}
	if rc.DiarizationConfig.MaxSpeakerCount != 2 {
		t.Errorf("expected max 2 speakers, got %d", rc.DiarizationConfig.MaxSpeakerCount)
	}
	if sc.VoiceActivityTimeout != nil {
		t.Error("expected no voice activity timeout by default")
	}
}

func TestStreamingConfig_VoiceActivityTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpeechEndTimeout = 1500 * time.Millisecond

	sc := streamingConfig(cfg)

	if !sc.EnableVoiceActivityEvents || sc.VoiceActivityTimeout == nil {
		t.Fatal("expected voice activity timeout")
	}
	if got := sc.VoiceActivityTimeout.SpeechEndTimeout.AsDuration(); got != 1500*time.Millisecond {
		t.Errorf("expected 1.5s end timeout, got %v", got)
	}
	if sc.VoiceActivityTimeout.SpeechStartTimeout != nil {
		t.Error("expected start timeout unset")
	}
}

func TestToEvent(t *testing.T) {
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	r := &speechpb.StreamingRecognitionResult{
		IsFinal: true,
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{
			Transcript: " What is a goroutine? ",
			Words: []*speechpb.WordInfo{
				{Word: "What", SpeakerTag: 1},
				{Word: "is", SpeakerTag: 1},
				{Word: "a", SpeakerTag: 2},
				{Word: "goroutine?", SpeakerTag: 1},
			},
		}},
	}

	ev, ok := toEvent(r, at)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.Text != "What is a goroutine?" || !ev.IsFinal || !ev.ArrivalTime.Equal(at) {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.RawSpeakerID == nil || *ev.RawSpeakerID != 1 {
		t.Errorf("expected dominant speaker 1, got %v", ev.RawSpeakerID)
	}
	if len(ev.Words) != 4 || *ev.Words[2].SpeakerID != 2 {
		t.Errorf("unexpected words %+v", ev.Words)
	}
}

func TestToEvent_InterimWithoutTags(t *testing.T) {
	r := &speechpb.StreamingRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "what is"}},
	}

	ev, ok := toEvent(r, time.Now())
	if !ok {
		t.Fatal("expected event")
	}
	if ev.IsFinal || ev.RawSpeakerID != nil {
		t.Errorf("expected untagged interim, got %+v", ev)
	}
}

func TestToEvent_Empty(t *testing.T) {
	if _, ok := toEvent(&speechpb.StreamingRecognitionResult{}, time.Now()); ok {
		t.Error("expected no event without alternatives")
	}
	r := &speechpb.StreamingRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "  "}},
	}
	if _, ok := toEvent(r, time.Now()); ok {
		t.Error("expected no event for blank transcript")
	}
}
