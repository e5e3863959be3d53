package answer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"interview-assist-service/internal/models"
)

// MockBackend returns canned answers after an optional delay.
type MockBackend struct {
	Delay time.Duration

	mu      sync.Mutex
	answers map[string]string
	prompts []string
	err     error
}

// NewMockBackend creates a backend that echoes unknown prompts.
func NewMockBackend(delay time.Duration) *MockBackend {
	return &MockBackend{
		Delay:   delay,
		answers: make(map[string]string),
	}
}

// SetAnswer registers a canned answer for prompt.
func (m *MockBackend) SetAnswer(prompt, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[prompt] = answer
}

// SetError makes every subsequent call fail with err.
func (m *MockBackend) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Prompts returns every prompt received, in call order.
func (m *MockBackend) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

func (m *MockBackend) Generate(ctx context.Context, prompt string, history []models.Turn) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	answer, ok := m.answers[prompt]
	err := m.err
	m.mu.Unlock()

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if err != nil {
		return "", err
	}
	if !ok {
		answer = fmt.Sprintf("Mock answer to %q (%d prior turns)", prompt, len(history))
	}
	return answer, nil
}
