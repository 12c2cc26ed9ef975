package profile

import "context"

// Store provides access to client profiles.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the profile for clientKey. Returns [ErrNotFound] when no
	// profile exists for the key.
	Get(ctx context.Context, clientKey string) (*Profile, error)

	// Upsert creates or replaces the profile identified by its ClientKey.
	// The profile is validated before persistence.
	Upsert(ctx context.Context, p *Profile) error

	// List returns all profiles, newest first.
	List(ctx context.Context) ([]Profile, error)
}
