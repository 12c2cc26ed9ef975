package testbench

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Message is one line of a test conversation as the client recorded it.
type Message struct {
	Role      string    `json:"role"` // "caller" or "agent"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Conversation is a finished test harness session.
type Conversation struct {
	ID              int64     `json:"id"`
	ClientKey       string    `json:"client_key"`
	SessionID       string    `json:"session_id"`
	Transcript      []Message `json:"transcript"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at,omitzero"`
}

// Store persists test conversations. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save inserts the conversation. The generated ID and creation time are
	// written back into c.
	Save(ctx context.Context, c *Conversation) error

	// List returns all conversations for clientKey, newest first.
	List(ctx context.Context, clientKey string) ([]Conversation, error)
}

// Schema creates the test_conversations table.
const Schema = `
CREATE TABLE IF NOT EXISTS test_conversations (
	id               BIGSERIAL PRIMARY KEY,
	client_key       TEXT NOT NULL,
	session_id       TEXT NOT NULL,
	transcript       JSONB NOT NULL DEFAULT '[]',
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS test_conversations_client_key_idx
	ON test_conversations (client_key, created_at DESC);
`

// DB is the subset of pgx used by [PostgresStore]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements [Store] on PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store on the given connection.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies [Schema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("testbench: migrate: %w", err)
	}
	return nil
}

// Save implements [Store].
func (s *PostgresStore) Save(ctx context.Context, c *Conversation) error {
	transcript, err := json.Marshal(c.Transcript)
	if err != nil {
		return fmt.Errorf("testbench: marshal transcript: %w", err)
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO test_conversations (client_key, session_id, transcript, duration_seconds)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		c.ClientKey, c.SessionID, transcript, c.DurationSeconds)
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("testbench: save conversation: %w", err)
	}
	return nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context, clientKey string) ([]Conversation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, client_key, session_id, transcript, duration_seconds, created_at
		FROM test_conversations
		WHERE client_key = $1
		ORDER BY created_at DESC`,
		clientKey)
	if err != nil {
		return nil, fmt.Errorf("testbench: list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var (
			c          Conversation
			transcript []byte
		)
		if err := rows.Scan(&c.ID, &c.ClientKey, &c.SessionID, &transcript, &c.DurationSeconds, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("testbench: scan conversation: %w", err)
		}
		if err := json.Unmarshal(transcript, &c.Transcript); err != nil {
			return nil, fmt.Errorf("testbench: decode transcript: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
