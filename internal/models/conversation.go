package models

// TurnRole identifies who produced a conversation turn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one message of the conversation history handed to the answering backend.
type Turn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}
