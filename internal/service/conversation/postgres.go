package conversation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"interview-assist-service/internal/models"
)

// PostgresStore keeps the history in a conversation_turns table, keyed so
// several deployments can share one database.
type PostgresStore struct {
	db  *pgxpool.Pool
	key string
}

// NewPostgresStore connects to dsn and stores the history under key.
func NewPostgresStore(ctx context.Context, dsn, key string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &PostgresStore{db: db, key: key}, nil
}

// EnsureSchema creates the table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversation_turns (
			history_key TEXT NOT NULL,
			position    INT NOT NULL,
			role        TEXT NOT NULL,
			content     TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (history_key, position)
		)
	`)
	return err
}

func (s *PostgresStore) Load(ctx context.Context) ([]models.Turn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT role, content
		FROM conversation_turns
		WHERE history_key = $1
		ORDER BY position
	`, s.key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}
		turns = append(turns, models.Turn{Role: models.TurnRole(role), Content: content})
	}
	return turns, rows.Err()
}

// Save replaces the stored history in a single transaction.
func (s *PostgresStore) Save(ctx context.Context, turns []models.Turn) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM conversation_turns WHERE history_key = $1`, s.key); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, t := range turns {
		batch.Queue(`
			INSERT INTO conversation_turns (history_key, position, role, content)
			VALUES ($1, $2, $3, $4)
		`, s.key, i, string(t.Role), t.Content)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
