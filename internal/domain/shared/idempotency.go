package shared

import (
	"context"
	"time"
)

// IdempotencyStore claims client-supplied idempotency keys so a resubmitted
// payment request is rejected instead of charged twice.
type IdempotencyStore interface {
	// Claim marks a key as used with a TTL.
	// Returns true if the key was newly claimed, false if already used.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees a key, allowing it to be claimed again. Called when the
	// operation behind the key failed and the client may retry it verbatim.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// DefaultIdempotencyTTL is how long a claimed key stays reserved.
const DefaultIdempotencyTTL = 24 * time.Hour
