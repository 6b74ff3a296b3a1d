package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Connection identifies a vector store endpoint
type Connection struct {
	URL    string `json:"url" example:"http://localhost:6333"`
	APIKey string `json:"api_key,omitempty"`
}

// IsZero reports whether no endpoint was supplied
func (c Connection) IsZero() bool {
	return strings.TrimSpace(c.URL) == ""
}

// Or returns c when it names an endpoint, otherwise fallback
func (c Connection) Or(fallback Connection) Connection {
	if c.IsZero() {
		return fallback
	}
	return c
}

// Validate checks the endpoint is an absolute http(s) URL
func (c Connection) Validate() error {
	if c.IsZero() {
		return fmt.Errorf("%w: qdrant_url is required", ErrValidation)
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: invalid qdrant_url %q", ErrValidation, c.URL)
	}
	return nil
}

// Key identifies the endpoint for client caching. The API key is not part of it.
func (c Connection) Key() string {
	return strings.TrimRight(c.URL, "/")
}
