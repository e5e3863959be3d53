package conversation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"interview-assist-service/internal/models"
)

// Store persists the history blob.
type Store interface {
	Load(ctx context.Context) ([]models.Turn, error)
	Save(ctx context.Context, turns []models.Turn) error
	Close() error
}

// FileStore keeps the history as JSON Lines, one {role, content} per line.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the file. A missing file is an empty history.
func (s *FileStore) Load(ctx context.Context) ([]models.Turn, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var turns []models.Turn
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var t models.Turn
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", s.path, line, err)
		}
		if t.Role != models.RoleUser && t.Role != models.RoleAssistant {
			return nil, fmt.Errorf("parse %s line %d: unknown role %q", s.path, line, t.Role)
		}
		turns = append(turns, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.path, err)
	}
	return turns, nil
}

// Save replaces the file atomically via a temp file and rename.
func (s *FileStore) Save(ctx context.Context, turns []models.Turn) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, t := range turns {
		if err := enc.Encode(t); err != nil {
			f.Close()
			return fmt.Errorf("encode turn: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename to %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op for files.
func (s *FileStore) Close() error {
	return nil
}

// MemoryStore keeps the history in process. Used when persistence is off.
type MemoryStore struct {
	mu      sync.Mutex
	turns   []models.Turn
	saves   int
	LoadErr error
	SaveErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(turns ...models.Turn) *MemoryStore {
	return &MemoryStore{turns: turns}
}

func (s *MemoryStore) Load(ctx context.Context) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	out := make([]models.Turn, len(s.turns))
	copy(out, s.turns)
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, turns []models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.turns = make([]models.Turn, len(turns))
	copy(s.turns, turns)
	s.saves++
	return nil
}

// Saves returns how many successful saves happened.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Close() error {
	return nil
}
