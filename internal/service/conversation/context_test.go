package conversation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"interview-assist-service/internal/models"
)

func newTestContext(n int, store Store) *Context {
	return New(n, store, zerolog.Nop())
}

// 8 exchanges with MaxExchanges=5 leaves exchange 1 plus exchanges 4..8
func TestContext_TrimKeepsFirstAndRecent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := newTestContext(5, store)

	for i := 1; i <= 8; i++ {
		if err := c.AppendExchange(ctx, fmt.Sprintf("Q%d", i), fmt.Sprintf("A%d", i)); err != nil {
			t.Fatalf("AppendExchange failed: %v", err)
		}
	}

	history := c.History()
	if len(history) != 12 {
		t.Fatalf("expected 12 turns, got %d", len(history))
	}

	expected := []int{1, 4, 5, 6, 7, 8}
	for i, n := range expected {
		q, a := history[2*i], history[2*i+1]
		if q.Role != models.RoleUser || q.Content != fmt.Sprintf("Q%d", n) {
			t.Errorf("turn %d: expected user Q%d, got %+v", 2*i, n, q)
		}
		if a.Role != models.RoleAssistant || a.Content != fmt.Sprintf("A%d", n) {
			t.Errorf("turn %d: expected assistant A%d, got %+v", 2*i+1, n, a)
		}
	}

	if store.Saves() != 8 {
		t.Errorf("expected a save after every append, got %d", store.Saves())
	}
}

func TestContext_NeverExceedsCap(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{1, 2, 5} {
		c := newTestContext(n, nil)
		for i := 0; i < 20; i++ {
			c.AppendExchange(ctx, "q", "a")
			if c.Len() > 2*n+2 {
				t.Fatalf("n=%d: history grew to %d", n, c.Len())
			}
		}
	}
}

func TestContext_MinimumOneExchange(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(0, nil)

	for i := 1; i <= 3; i++ {
		c.AppendExchange(ctx, fmt.Sprintf("Q%d", i), fmt.Sprintf("A%d", i))
	}

	history := c.History()
	if len(history) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(history))
	}
	if history[0].Content != "Q1" || history[2].Content != "Q3" {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestContext_AppendTurn(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(5, nil)

	c.AppendTurn(ctx, models.RoleUser, "Tell me about yourself")

	history := c.History()
	if len(history) != 1 || history[0].Role != models.RoleUser {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestContext_HistoryIsCopy(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(5, nil)
	c.AppendExchange(ctx, "Q", "A")

	h := c.History()
	h[0].Content = "changed"

	if c.History()[0].Content != "Q" {
		t.Error("History must return a copy")
	}
}

func TestContext_Clear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := newTestContext(5, store)
	c.AppendExchange(ctx, "Q", "A")

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty history, got %d", c.Len())
	}

	persisted, _ := store.Load(ctx)
	if len(persisted) != 0 {
		t.Errorf("expected empty persisted history, got %d", len(persisted))
	}
}

func TestContext_LoadFailureYieldsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(models.Turn{Role: models.RoleUser, Content: "old"})
	c := newTestContext(5, store)
	c.AppendExchange(ctx, "Q", "A")

	store.LoadErr = errors.New("disk on fire")
	if err := c.Load(ctx); err == nil {
		t.Fatal("expected load error")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty history after failed load, got %d", c.Len())
	}
}

func TestContext_LoadTrims(t *testing.T) {
	ctx := context.Background()
	var turns []models.Turn
	for i := 1; i <= 10; i++ {
		turns = append(turns,
			models.Turn{Role: models.RoleUser, Content: fmt.Sprintf("Q%d", i)},
			models.Turn{Role: models.RoleAssistant, Content: fmt.Sprintf("A%d", i)},
		)
	}
	c := newTestContext(2, NewMemoryStore(turns...))

	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	history := c.History()
	if len(history) != 6 {
		t.Fatalf("expected 6 turns, got %d", len(history))
	}
	if history[0].Content != "Q1" || history[2].Content != "Q9" || history[4].Content != "Q10" {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestContext_SaveErrorKeepsMemory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.SaveErr = errors.New("read-only")
	c := newTestContext(5, store)

	if err := c.AppendExchange(ctx, "Q", "A"); err == nil {
		t.Fatal("expected save error")
	}
	if c.Len() != 2 {
		t.Errorf("expected in-memory history to keep the exchange, got %d", c.Len())
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.jsonl")
	store := NewFileStore(path)

	c := newTestContext(5, store)
	c.AppendExchange(ctx, "What is a channel?", "A typed conduit.\nIt can be buffered.")
	c.AppendExchange(ctx, "Why \"select\"?", "To wait on many channels.")

	reloaded := newTestContext(5, NewFileStore(path))
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got, want := reloaded.History(), c.History()
	if len(got) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("turn %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	// No temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the history file, got %d entries", len(entries))
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none.jsonl"))

	turns, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected empty history, got %d", len(turns))
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", "{\"role\":\"user\",\"content\":\"ok\"}\nnot json\n"},
		{"unknown role", "{\"role\":\"system\",\"content\":\"x\"}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "history.jsonl")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}

			c := newTestContext(5, NewFileStore(path))
			if err := c.Load(context.Background()); err == nil {
				t.Error("expected load error")
			}
			if c.Len() != 0 {
				t.Errorf("expected empty history, got %d", c.Len())
			}
		})
	}
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, dsn, fmt.Sprintf("test-%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	turns := []models.Turn{
		{Role: models.RoleUser, Content: "Q1"},
		{Role: models.RoleAssistant, Content: "A1"},
	}
	if err := store.Save(ctx, turns); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 2 || got[0] != turns[0] || got[1] != turns[1] {
		t.Errorf("unexpected turns: %+v", got)
	}

	if err := store.Save(ctx, nil); err != nil {
		t.Fatalf("Save empty failed: %v", err)
	}
	got, _ = store.Load(ctx)
	if len(got) != 0 {
		t.Errorf("expected empty history, got %d", len(got))
	}
}
