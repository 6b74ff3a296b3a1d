package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// vectorStores resolves per-request connections against the configured default
type vectorStores struct {
	dialer   driven.VectorStoreDialer
	fallback domain.Connection
}

// resolve picks the request connection or the default and validates it
func (v vectorStores) resolve(conn domain.Connection) (domain.Connection, error) {
	resolved := conn.Or(v.fallback)
	return resolved, resolved.Validate()
}

// dial resolves and probes a connection. Failures are ErrValidation or ErrConnection.
func (v vectorStores) dial(ctx context.Context, conn domain.Connection) (driven.VectorStore, error) {
	resolved, err := v.resolve(conn)
	if err != nil {
		return nil, err
	}

	store, err := v.dialer.Dial(ctx, resolved)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrConnection) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	return store, nil
}

// asCategory wraps err in sentinel unless it already carries a domain category
func asCategory(sentinel, err error) error {
	if err == nil {
		return nil
	}
	if domain.Category(err) != domain.CategoryInternal {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
