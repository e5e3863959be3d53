package answer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"interview-assist-service/internal/models"
)

// OpenAIConfig configures the chat completion backend.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // optional, for compatible endpoints
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
}

// DefaultOpenAIConfig returns sensible defaults; APIKey must still be set.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:        openai.GPT4oMini,
		SystemPrompt: DefaultSystemPrompt,
		MaxTokens:    600,
		Temperature:  0.3,
	}
}

// OpenAIBackend streams a chat completion and returns the joined answer.
type OpenAIBackend struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger zerolog.Logger
}

// NewOpenAIBackend creates a backend for cfg.
func NewOpenAIBackend(cfg OpenAIConfig, logger zerolog.Logger) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Generate sends the system prompt, the history and prompt, in that order.
func (b *OpenAIBackend) Generate(ctx context.Context, prompt string, history []models.Turn) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       b.cfg.Model,
		Messages:    b.messages(prompt, history),
		MaxTokens:   b.cfg.MaxTokens,
		Temperature: b.cfg.Temperature,
		Stream:      true,
	}

	stream, err := b.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create completion stream: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("receive completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		sb.WriteString(resp.Choices[0].Delta.Content)
	}

	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", errors.New("empty completion")
	}

	b.logger.Debug().
		Str("model", b.cfg.Model).
		Int("historyTurns", len(history)).
		Int("answerLen", len(answer)).
		Msg("Completion received")

	return answer, nil
}

func (b *OpenAIBackend) messages(prompt string, history []models.Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: b.cfg.SystemPrompt,
	})
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
	return msgs
}
