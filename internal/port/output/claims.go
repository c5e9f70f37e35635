package output

import (
	"context"
	"time"
)

// ClaimStore hands out exclusive, expiring claims. The billing scheduler
// claims each due profile before charging it so a concurrent run of the same
// cycle cannot double-claim; the TTL releases claims abandoned by a crashed
// run.
type ClaimStore interface {
	// Acquire returns true when the claim was obtained, false when another
	// holder already has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a held claim. Releasing an expired claim is a no-op.
	Release(ctx context.Context, key string) error
}
