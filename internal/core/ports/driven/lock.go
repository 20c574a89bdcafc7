package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates work across multiple instances.
// The freshness scheduler uses it to avoid duplicate refresh runs when
// more than one instance is deployed.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with a TTL.
	// Returns true if acquired, false if held by another instance.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release releases a named lock if held by this instance
	Release(ctx context.Context, name string) error
}
