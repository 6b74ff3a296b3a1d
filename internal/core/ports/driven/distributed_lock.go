package driven

import (
	"context"
	"time"
)

// DistributedLock provides named mutual exclusion across goroutines and instances.
// Index mutations take "index:{name}"; the scheduler takes "scheduler".
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL without blocking.
	// Returns true if the lock was acquired, false if it is held elsewhere.
	// The lock expires after TTL where the backend supports it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Extend extends the TTL of a currently held lock.
	// Returns error if the lock is not held by this instance.
	// Backends without TTL (PostgreSQL advisory locks) treat this as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
