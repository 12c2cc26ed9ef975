package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the client_profiles table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS client_profiles (
    client_key         TEXT PRIMARY KEY,
    agent_name         TEXT NOT NULL DEFAULT '',
    company_name       TEXT NOT NULL,
    industry           TEXT NOT NULL DEFAULT '',
    products           JSONB NOT NULL DEFAULT '[]',
    conditions         JSONB NOT NULL DEFAULT '{}',
    tone               TEXT NOT NULL DEFAULT '',
    goal               TEXT NOT NULL DEFAULT '',
    extra_instructions TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Structured
// sub-fields (products, conditions) are serialised as JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] that uses the given connection
// or pool. Call [PostgresStore.Migrate] once before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the client_profiles table if it
// does not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("profile: migrate: %w", err)
	}
	return nil
}

// Get retrieves a profile by client key. Returns [ErrNotFound] when no row
// exists.
func (s *PostgresStore) Get(ctx context.Context, clientKey string) (*Profile, error) {
	const query = `
		SELECT client_key, agent_name, company_name, industry,
		       products, conditions, tone, goal, extra_instructions,
		       created_at, updated_at
		FROM client_profiles
		WHERE client_key = $1`

	var p Profile
	var productsJSON, conditionsJSON []byte

	err := s.db.QueryRow(ctx, query, clientKey).Scan(
		&p.ClientKey, &p.AgentName, &p.CompanyName, &p.Industry,
		&productsJSON, &conditionsJSON, &p.Tone, &p.Goal, &p.Extra,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile: get %q: %w", clientKey, ErrNotFound)
		}
		return nil, fmt.Errorf("profile: get %q: %w", clientKey, err)
	}

	if err := unmarshalFields(&p, productsJSON, conditionsJSON); err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert creates or replaces a profile keyed by ClientKey.
func (s *PostgresStore) Upsert(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	productsJSON, err := json.Marshal(emptySlice(p.Products))
	if err != nil {
		return fmt.Errorf("profile: marshal products: %w", err)
	}
	conditionsJSON, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("profile: marshal conditions: %w", err)
	}

	const query = `
		INSERT INTO client_profiles (
			client_key, agent_name, company_name, industry,
			products, conditions, tone, goal, extra_instructions
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (client_key) DO UPDATE SET
			agent_name = $2, company_name = $3, industry = $4,
			products = $5, conditions = $6, tone = $7, goal = $8,
			extra_instructions = $9, updated_at = now()
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		p.ClientKey, p.AgentName, p.CompanyName, p.Industry,
		productsJSON, conditionsJSON, p.Tone, p.Goal, p.Extra,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("profile: upsert %q: %w", p.ClientKey, err)
	}
	return nil
}

// List returns all profiles, newest first.
func (s *PostgresStore) List(ctx context.Context) ([]Profile, error) {
	const query = `
		SELECT client_key, agent_name, company_name, industry,
		       products, conditions, tone, goal, extra_instructions,
		       created_at, updated_at
		FROM client_profiles
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("profile: list: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		var productsJSON, conditionsJSON []byte
		if err := rows.Scan(
			&p.ClientKey, &p.AgentName, &p.CompanyName, &p.Industry,
			&productsJSON, &conditionsJSON, &p.Tone, &p.Goal, &p.Extra,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("profile: list scan: %w", err)
		}
		if err := unmarshalFields(&p, productsJSON, conditionsJSON); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profile: list rows: %w", err)
	}
	return out, nil
}

func unmarshalFields(p *Profile, productsJSON, conditionsJSON []byte) error {
	if err := json.Unmarshal(productsJSON, &p.Products); err != nil {
		return fmt.Errorf("profile: unmarshal products: %w", err)
	}
	if err := json.Unmarshal(conditionsJSON, &p.Conditions); err != nil {
		return fmt.Errorf("profile: unmarshal conditions: %w", err)
	}
	return nil
}

// emptySlice replaces a nil slice with an empty one so JSONB columns always
// hold a JSON array.
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
