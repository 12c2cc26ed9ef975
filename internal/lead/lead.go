// Package lead stores sales leads harvested from calls and exposes the
// funnel counters shown on the client dashboard.
package lead

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Status tracks a lead through the outreach funnel.
type Status string

const (
	StatusNew       Status = "new"
	StatusCalling   Status = "calling"
	StatusContacted Status = "contacted"
)

// Lead is one prospective buyer attached to a client.
type Lead struct {
	ID        int64     `json:"id"`
	ClientKey string    `json:"client_key"`
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Interest  string    `json:"interest_level"`
	Status    Status    `json:"status"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Validate checks the minimum for persisting a lead.
func (l *Lead) Validate() error {
	if strings.TrimSpace(l.ClientKey) == "" {
		return fmt.Errorf("lead: client_key is required")
	}
	if l.Name == "" && l.Company == "" && l.Email == "" && l.Phone == "" {
		return fmt.Errorf("lead: at least one contact field is required")
	}
	return nil
}

// Stats are the per-client funnel counters.
type Stats struct {
	Total     int `json:"total_leads"`
	New       int `json:"new_leads"`
	WithPhone int `json:"with_phone"`
	WithEmail int `json:"with_email"`
	Called    int `json:"called"`
}

// Store provides lead persistence and funnel statistics.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a lead with status [StatusNew] unless a status is set.
	// The generated ID and timestamps are written back into l.
	Create(ctx context.Context, l *Lead) error

	// List returns all leads for clientKey, newest first.
	List(ctx context.Context, clientKey string) ([]Lead, error)

	// Stats returns the funnel counters for clientKey.
	Stats(ctx context.Context, clientKey string) (Stats, error)
}
