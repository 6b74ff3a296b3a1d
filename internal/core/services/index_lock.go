package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// IndexLocker serialises mutations of a single index across replicas.
// Lock names are "index:{name}".
type IndexLocker struct {
	lock   driven.DistributedLock
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	logger *slog.Logger
}

// IndexLockerConfig configures an IndexLocker
type IndexLockerConfig struct {
	Lock   driven.DistributedLock
	TTL    time.Duration // Lock lease, renewed while held (default: 60s)
	Wait   time.Duration // How long to wait for a busy index (default: 10s)
	Logger *slog.Logger
}

// NewIndexLocker creates an IndexLocker
func NewIndexLocker(cfg IndexLockerConfig) *IndexLocker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	wait := cfg.Wait
	if wait < 0 {
		wait = 0
	} else if wait == 0 {
		wait = 10 * time.Second
	}

	return &IndexLocker{
		lock:   cfg.Lock,
		ttl:    ttl,
		wait:   wait,
		poll:   50 * time.Millisecond,
		logger: logger,
	}
}

// LockName returns the lock guarding an index
func LockName(indexName string) string {
	return "index:" + indexName
}

// WithIndex runs fn while holding the index lock.
// It returns ErrIndexBusy when the lock cannot be taken within the wait budget.
func (l *IndexLocker) WithIndex(ctx context.Context, indexName string, fn func(ctx context.Context) error) error {
	name := LockName(indexName)
	if err := l.acquire(ctx, name); err != nil {
		return err
	}

	renewCtx, stopRenew := context.WithCancel(ctx)
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		l.renew(renewCtx, name)
	}()

	defer func() {
		stopRenew()
		<-renewDone
		// Release even when the caller's context is already cancelled
		if err := l.lock.Release(context.WithoutCancel(ctx), name); err != nil {
			l.logger.Warn("failed to release index lock", "lock", name, "error", err)
		}
	}()

	return fn(ctx)
}

func (l *IndexLocker) acquire(ctx context.Context, name string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.lock.Acquire(ctx, name, l.ttl)
		if err != nil {
			return fmt.Errorf("acquire %s: %w", name, err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s is locked by another operation", domain.ErrIndexBusy, name)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

// renew extends the lease at half its length until ctx is cancelled
func (l *IndexLocker) renew(ctx context.Context, name string) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.lock.Extend(ctx, name, l.ttl); err != nil && ctx.Err() == nil {
				l.logger.Warn("failed to extend index lock", "lock", name, "error", err)
			}
		}
	}
}
