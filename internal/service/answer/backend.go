// Package answer generates answers for detected interview questions.
package answer

import (
	"context"

	"interview-assist-service/internal/models"
)

// Backend produces an answer for prompt given the prior conversation.
// Implementations must honour ctx cancellation.
type Backend interface {
	Generate(ctx context.Context, prompt string, history []models.Turn) (string, error)
}

// DefaultSystemPrompt frames the answers for a candidate in a live interview.
const DefaultSystemPrompt = "You are assisting a candidate during a live technical interview. " +
	"Answer the interviewer's question concisely and accurately, in a form the candidate can say out loud. " +
	"Prefer short paragraphs or bullet points, and include code only when the question asks for it."
