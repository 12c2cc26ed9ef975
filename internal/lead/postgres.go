package lead

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the leads table.
const Schema = `
CREATE TABLE IF NOT EXISTS leads (
    id             BIGSERIAL PRIMARY KEY,
    client_key     TEXT NOT NULL,
    name           TEXT NOT NULL DEFAULT '',
    company        TEXT NOT NULL DEFAULT '',
    email          TEXT NOT NULL DEFAULT '',
    phone          TEXT NOT NULL DEFAULT '',
    interest_level TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'new',
    source         TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_leads_client_key ON leads(client_key);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] over the given connection or
// pool. Call [PostgresStore.Migrate] once before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("lead: migrate: %w", err)
	}
	return nil
}

// Create inserts a lead and writes the generated ID and timestamps back.
func (s *PostgresStore) Create(ctx context.Context, l *Lead) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if l.Status == "" {
		l.Status = StatusNew
	}

	const query = `
		INSERT INTO leads (client_key, name, company, email, phone, interest_level, status, source)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		l.ClientKey, l.Name, l.Company, l.Email, l.Phone, l.Interest, l.Status, l.Source,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("lead: create: %w", err)
	}
	return nil
}

// List returns all leads for clientKey, newest first.
func (s *PostgresStore) List(ctx context.Context, clientKey string) ([]Lead, error) {
	const query = `
		SELECT id, client_key, name, company, email, phone, interest_level,
		       status, source, created_at, updated_at
		FROM leads
		WHERE client_key = $1
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, clientKey)
	if err != nil {
		return nil, fmt.Errorf("lead: list: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(
			&l.ID, &l.ClientKey, &l.Name, &l.Company, &l.Email, &l.Phone,
			&l.Interest, &l.Status, &l.Source, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("lead: list scan: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lead: list rows: %w", err)
	}
	return out, nil
}

// Stats returns the funnel counters for clientKey in a single query.
func (s *PostgresStore) Stats(ctx context.Context, clientKey string) (Stats, error) {
	const query = `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'new'),
		       count(*) FILTER (WHERE phone <> ''),
		       count(*) FILTER (WHERE email <> ''),
		       count(*) FILTER (WHERE status IN ('calling', 'contacted'))
		FROM leads
		WHERE client_key = $1`

	var st Stats
	err := s.db.QueryRow(ctx, query, clientKey).Scan(
		&st.Total, &st.New, &st.WithPhone, &st.WithEmail, &st.Called,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("lead: stats: %w", err)
	}
	return st, nil
}
