// Package qdrant implements the vector store port against the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*Client)(nil)

const (
	scrollPageSize  = 256
	upsertBatchSize = 256
	deleteBatchSize = 1000
	maxErrorBody    = 4096
)

// errStatusNotFound marks a 404 response so callers can decide whether it matters
var errStatusNotFound = errors.New("qdrant: 404")

// Config holds Qdrant connection configuration
type Config struct {
	// URL is the REST endpoint (e.g., http://localhost:6333)
	URL string

	// APIKey is sent as the api-key header when set
	APIKey string

	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(url, apiKey string) Config {
	return Config{
		URL:     url,
		APIKey:  apiKey,
		Timeout: 30 * time.Second,
	}
}

// Client implements driven.VectorStore for one Qdrant endpoint
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Qdrant client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return newClient(cfg, &http.Client{Timeout: timeout})
}

func newClient(cfg Config, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// EnsureCollection creates the collection if it does not exist.
// An existing collection with a different vector size is an embedding mismatch.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize int, distance domain.Distance) error {
	var info envelope[collectionInfo]
	err := c.do(ctx, http.MethodGet, collectionPath(name), nil, &info)
	switch {
	case err == nil:
		if existing := info.Result.vectorSize(); existing != 0 && existing != vectorSize {
			return fmt.Errorf("%w: collection %s has vector size %d, embeddings have %d",
				domain.ErrEmbeddingMismatch, name, existing, vectorSize)
		}
		return nil
	case !errors.Is(err, errStatusNotFound):
		return fmt.Errorf("get collection %s: %w", name, err)
	}

	if distance == "" {
		distance = domain.DistanceCosine
	}
	req := createCollectionRequest{Vectors: vectorParams{Size: vectorSize, Distance: string(distance)}}
	if err := c.do(ctx, http.MethodPut, collectionPath(name), req, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes points in batches under Qdrant's default 32 MiB request limit
// and waits for each batch to be applied. If a batch fails, the batches already
// written are deleted again so the call stores every point or none.
func (c *Client) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		batch := points[start:end]

		req := upsertRequest{Points: make([]wirePoint, len(batch))}
		for i, p := range batch {
			req.Points[i] = wirePoint{ID: pointID(p.ID), Vector: p.Vector, Payload: p.Payload}
		}

		err := c.do(ctx, http.MethodPut, collectionPath(collection)+"/points?wait=true", req, nil)
		if err == nil {
			continue
		}

		err = fmt.Errorf("upsert points %d-%d of %d into %s: %w", start, end-1, len(points), collection, err)
		if start == 0 {
			return err
		}
		written := make([]string, start)
		for i, p := range points[:start] {
			written[i] = p.ID
		}
		if undoErr := c.DeletePoints(context.WithoutCancel(ctx), collection, written); undoErr != nil {
			return fmt.Errorf("%w (and %d already written points could not be removed: %v)", err, start, undoErr)
		}
		return err
	}
	return nil
}

// Search returns the nearest points with payloads, highest score first
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int) ([]domain.ScoredPoint, error) {
	req := searchRequest{Vector: vector, Limit: limit, WithPayload: true}

	var resp envelope[[]scoredPoint]
	if err := c.do(ctx, http.MethodPost, collectionPath(collection)+"/points/search", req, &resp); err != nil {
		if errors.Is(err, errStatusNotFound) {
			return nil, fmt.Errorf("collection %s: %w", collection, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	results := make([]domain.ScoredPoint, len(resp.Result))
	for i, p := range resp.Result {
		results[i] = domain.ScoredPoint{ID: string(p.ID), Score: p.Score, Payload: p.Payload}
	}
	return results, nil
}

// DeleteByFilter resolves matching ids with a filtered scroll, then deletes them by id
func (c *Client) DeleteByFilter(ctx context.Context, collection, field, value string) (int, error) {
	f := &filter{Must: []fieldCondition{{Key: field, Match: matchValue{Value: value}}}}

	var ids []string
	err := c.scroll(ctx, collection, f, func(p domain.ScoredPoint) error {
		ids = append(ids, p.ID)
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if err := c.DeletePoints(ctx, collection, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DeletePoints deletes points by id in batches
func (c *Client) DeletePoints(ctx context.Context, collection string, ids []string) error {
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		req := deletePointsRequest{Points: toPointIDs(ids[start:end])}
		err := c.do(ctx, http.MethodPost, collectionPath(collection)+"/points/delete?wait=true", req, nil)
		if errors.Is(err, errStatusNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("delete %d points from %s: %w", end-start, collection, err)
		}
	}
	return nil
}

// DeleteCollection drops a collection; a missing collection counts as deleted
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, collectionPath(name), nil, nil)
	if err != nil && !errors.Is(err, errStatusNotFound) {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

// ListCollections returns all collection names
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var resp envelope[collectionsResult]
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	names := make([]string, len(resp.Result.Collections))
	for i, col := range resp.Result.Collections {
		names[i] = col.Name
	}
	return names, nil
}

// ScrollPoints visits every point's payload, page by page
func (c *Client) ScrollPoints(ctx context.Context, collection string, fn func(domain.ScoredPoint) error) error {
	return c.scroll(ctx, collection, nil, fn)
}

// SampleEmbeddingModel reads embedding_model from the first point of a collection
func (c *Client) SampleEmbeddingModel(ctx context.Context, collection string) (string, error) {
	req := scrollRequest{Limit: 1, WithPayload: true}

	var resp envelope[scrollResult]
	err := c.do(ctx, http.MethodPost, collectionPath(collection)+"/points/scroll", req, &resp)
	if errors.Is(err, errStatusNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sample %s: %w", collection, err)
	}
	if len(resp.Result.Points) == 0 {
		return "", nil
	}
	model, _ := resp.Result.Points[0].Payload[domain.PayloadEmbeddingModel].(string)
	return model, nil
}

// Ping probes the endpoint by listing collections, which also validates the API key
func (c *Client) Ping(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/collections", nil, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	return nil
}

func (c *Client) scroll(ctx context.Context, collection string, f *filter, fn func(domain.ScoredPoint) error) error {
	req := scrollRequest{Filter: f, Limit: scrollPageSize, WithPayload: true, WithVector: false}

	for {
		var resp envelope[scrollResult]
		err := c.do(ctx, http.MethodPost, collectionPath(collection)+"/points/scroll", req, &resp)
		if errors.Is(err, errStatusNotFound) {
			return fmt.Errorf("collection %s: %w", collection, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("scroll %s: %w", collection, err)
		}

		for _, p := range resp.Result.Points {
			if err := fn(domain.ScoredPoint{ID: string(p.ID), Payload: p.Payload}); err != nil {
				return err
			}
		}

		if !resp.Result.hasNext() || len(resp.Result.Points) == 0 {
			return nil
		}
		req.Offset = resp.Result.NextPageOffset
	}
}

// do sends a JSON request and decodes the result into out when non-nil.
// Transport failures and non-2xx statuses wrap ErrVectorStore; a 404 also wraps errStatusNotFound.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrVectorStore, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %w: %s", domain.ErrVectorStore, errStatusNotFound, path)
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s: %s - %s", domain.ErrVectorStore, method, path, resp.Status, string(respBody))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", domain.ErrVectorStore, path, err)
	}
	return nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}
