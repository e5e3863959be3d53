// Package conversation maintains the bounded question/answer history sent
// to the answering backend as context.
package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"interview-assist-service/internal/models"
)

// DefaultMaxExchanges is the number of recent exchanges kept besides the first.
const DefaultMaxExchanges = 5

// Context is the ordered turn history. The first exchange is pinned and the
// most recent MaxExchanges exchanges are kept, so the history never exceeds
// 2*MaxExchanges+2 turns. Every mutation is persisted through the Store.
type Context struct {
	mu           sync.Mutex
	maxExchanges int
	turns        []models.Turn
	store        Store
	logger       zerolog.Logger
}

// New creates an empty history. maxExchanges below 1 is treated as 1.
func New(maxExchanges int, store Store, logger zerolog.Logger) *Context {
	if maxExchanges < 1 {
		maxExchanges = 1
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Context{
		maxExchanges: maxExchanges,
		store:        store,
		logger:       logger,
	}
}

// Load replaces the history with the persisted one. On failure the history
// is left empty and the error is returned for reporting.
func (c *Context) Load(ctx context.Context) error {
	turns, err := c.store.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.turns = nil
		c.logger.Warn().Err(err).Msg("Failed to load conversation history, starting empty")
		return fmt.Errorf("load history: %w", err)
	}
	c.turns = c.trim(turns)
	c.logger.Info().Int("turns", len(c.turns)).Msg("Conversation history loaded")
	return nil
}

// AppendTurn adds a single turn and persists the history.
func (c *Context) AppendTurn(ctx context.Context, role models.TurnRole, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = c.trim(append(c.turns, models.Turn{Role: role, Content: content}))
	return c.persist(ctx)
}

// AppendExchange adds a question and its answer as one unit.
func (c *Context) AppendExchange(ctx context.Context, question, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = c.trim(append(c.turns,
		models.Turn{Role: models.RoleUser, Content: question},
		models.Turn{Role: models.RoleAssistant, Content: answer},
	))
	return c.persist(ctx)
}

// History returns a copy of the turns, oldest first.
func (c *Context) History() []models.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns held.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Clear drops every turn and persists the empty history.
func (c *Context) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = nil
	return c.persist(ctx)
}

// Save writes the current history. Used on shutdown.
func (c *Context) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persist(ctx)
}

// Close releases the underlying store.
func (c *Context) Close() error {
	return c.store.Close()
}

// trim keeps the first exchange and the newest maxExchanges exchanges.
func (c *Context) trim(turns []models.Turn) []models.Turn {
	limit := 2*c.maxExchanges + 2
	if len(turns) <= limit {
		return turns
	}
	out := make([]models.Turn, 0, limit)
	out = append(out, turns[:2]...)
	out = append(out, turns[len(turns)-2*c.maxExchanges:]...)
	return out
}

// persist must be called with mu held.
func (c *Context) persist(ctx context.Context) error {
	snapshot := make([]models.Turn, len(c.turns))
	copy(snapshot, c.turns)

	if err := c.store.Save(ctx, snapshot); err != nil {
		c.logger.Error().Err(err).Int("turns", len(snapshot)).Msg("Failed to persist conversation history")
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
