package models

// EventType names an outbound session event.
type EventType string

const (
	EventTranscript      EventType = "session.transcript"
	EventCurrentQuestion EventType = "session.question.current"
	EventQuestion        EventType = "session.question"
	EventAnswer          EventType = "session.answer"
	EventError           EventType = "session.error"
	EventStatus          EventType = "session.status"
)

// Error kinds carried by EventError.
const (
	ErrorKindProviderConnection = "provider_connection"
	ErrorKindBackendCall        = "backend_call"
	ErrorKindDispatchTimeout    = "dispatch_timeout"
)

// Session status values carried by EventStatus.
const (
	StatusStarted = "started"
	StatusStopped = "stopped"
)

// Event is the envelope pushed to UI sinks and published to Kafka.
type Event struct {
	EventType  EventType `json:"eventType"`
	SessionID  string    `json:"sessionId"`
	Timestamp  int64     `json:"timestamp"`
	Speaker    string    `json:"speaker,omitempty"`
	Text       string    `json:"text,omitempty"`
	IsFinal    bool      `json:"isFinal,omitempty"`
	QuestionID string    `json:"questionId,omitempty"`
	Answer     string    `json:"answer,omitempty"`
	Status     string    `json:"status,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"errorKind,omitempty"`
}
