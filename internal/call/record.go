package call

import (
	"context"
	"time"
)

// Record is the persisted snapshot of a finished call.
type Record struct {
	CallID          string            `json:"call_id"`
	ClientKey       string            `json:"client_key"`
	Transcript      []TranscriptEntry `json:"transcript"`
	CapturedData    map[string]string `json:"captured_data"`
	Flags           Flags             `json:"flags"`
	DTMFSent        []string          `json:"dtmf_sent"`
	Outcome         string            `json:"status"`
	DurationSeconds int               `json:"duration_seconds"`
	StartedAt       time.Time         `json:"started_at"`
}

// Sink persists finished call records. Save must behave as an idempotent
// upsert keyed by CallID: finalizing is guarded so each session reaches the
// sink once, but a retried write after a partial failure must not duplicate.
type Sink interface {
	Save(ctx context.Context, rec *Record) error
}
