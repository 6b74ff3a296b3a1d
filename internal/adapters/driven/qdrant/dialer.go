package qdrant

import (
	"context"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStoreDialer = (*Dialer)(nil)

// Dialer builds probed clients for caller-supplied connections.
// All clients share one http.Client so connections to the same host are pooled.
type Dialer struct {
	httpClient *http.Client
}

// NewDialer creates a dialer whose requests time out after timeout
func NewDialer(timeout time.Duration) *Dialer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dialer{httpClient: &http.Client{Timeout: timeout}}
}

// Dial validates the connection and probes it before returning a client
func (d *Dialer) Dial(ctx context.Context, conn domain.Connection) (driven.VectorStore, error) {
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	client := newClient(Config{URL: conn.URL, APIKey: conn.APIKey}, d.httpClient)
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
