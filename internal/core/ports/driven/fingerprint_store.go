package driven

import (
	"context"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

// FingerprintStore persists source file fingerprints between refresh runs.
// Read-modify-write by a single scheduler instance; not concurrent-safe
// by design.
type FingerprintStore interface {
	// Load returns the persisted fingerprints.
	// Returns domain.ErrNotFound when no prior store exists.
	Load(ctx context.Context) ([]domain.Fingerprint, error)

	// Save replaces the persisted fingerprints
	Save(ctx context.Context, fingerprints []domain.Fingerprint) error
}
