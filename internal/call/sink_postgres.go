package call

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SinkSchema is the SQL DDL for the call_transcripts table.
const SinkSchema = `
CREATE TABLE IF NOT EXISTS call_transcripts (
    call_id            TEXT PRIMARY KEY,
    client_key         TEXT NOT NULL,
    transcript         JSONB NOT NULL DEFAULT '[]',
    captured_data      JSONB NOT NULL DEFAULT '{}',
    voicemail_detected BOOLEAN NOT NULL DEFAULT false,
    human_detected     BOOLEAN NOT NULL DEFAULT false,
    ivr_detected       BOOLEAN NOT NULL DEFAULT false,
    dtmf_sent          JSONB NOT NULL DEFAULT '[]',
    status             TEXT NOT NULL,
    duration_seconds   INTEGER NOT NULL DEFAULT 0,
    started_at         TIMESTAMPTZ NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_call_transcripts_client ON call_transcripts(client_key);
`

// DB is the database interface used by [PostgresSink]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink persists call records to the call_transcripts table. The
// write is an upsert keyed by call_id, so a repeated save for the same call
// replaces rather than duplicates.
type PostgresSink struct {
	db DB
}

// Compile-time interface check.
var _ Sink = (*PostgresSink)(nil)

// NewPostgresSink creates a [PostgresSink] over the given connection or pool.
func NewPostgresSink(db DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Migrate executes the [SinkSchema] DDL.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, SinkSchema); err != nil {
		return fmt.Errorf("call: migrate sink: %w", err)
	}
	return nil
}

// Save implements [Sink].
func (s *PostgresSink) Save(ctx context.Context, rec *Record) error {
	transcriptJSON, err := json.Marshal(rec.Transcript)
	if err != nil {
		return fmt.Errorf("call: marshal transcript: %w", err)
	}
	capturedJSON, err := json.Marshal(rec.CapturedData)
	if err != nil {
		return fmt.Errorf("call: marshal captured data: %w", err)
	}
	dtmfJSON, err := json.Marshal(rec.DTMFSent)
	if err != nil {
		return fmt.Errorf("call: marshal dtmf: %w", err)
	}

	const query = `
		INSERT INTO call_transcripts (
			call_id, client_key, transcript, captured_data,
			voicemail_detected, human_detected, ivr_detected,
			dtmf_sent, status, duration_seconds, started_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (call_id) DO UPDATE SET
			transcript = $3, captured_data = $4,
			voicemail_detected = $5, human_detected = $6, ivr_detected = $7,
			dtmf_sent = $8, status = $9, duration_seconds = $10`

	_, err = s.db.Exec(ctx, query,
		rec.CallID, rec.ClientKey, transcriptJSON, capturedJSON,
		rec.Flags.VoicemailDetected, rec.Flags.HumanDetected, rec.Flags.IVRDetected,
		dtmfJSON, rec.Outcome, rec.DurationSeconds, rec.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("call: save %q: %w", rec.CallID, err)
	}
	return nil
}
