package cache

import (
	"context"
	"time"
)

// Store is a JSON blob cache keyed by string. Both backends marshal
// values to JSON so cached entries survive process restarts.
type Store interface {
	// Get loads the entry for key into dest. It reports whether the key
	// was present; a miss is not an error.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set stores value under key. A ttl of zero means the entry never
	// expires.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	Close() error
}
