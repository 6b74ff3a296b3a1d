package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IndexRegistry = (*Registry)(nil)

const (
	indexSetKey       = "sercha:indexes"
	indexKeyPrefix    = "sercha:index:"
	membersKeyPrefix  = "sercha:index-docs:"
	documentKeyPrefix = "sercha:document:"
)

func indexKey(name string) string { return indexKeyPrefix + name }
func membersKey(name string) string { return membersKeyPrefix + name }
func documentKey(id string) string { return documentKeyPrefix + id }

// Registry implements IndexRegistry on Redis.
//
// Layout:
//
//	sercha:indexes             set of index names
//	sercha:index:{name}        hash with name, description, embedding_model, created_at
//	sercha:index-docs:{name}   list of member document ids in upload order
//	sercha:document:{id}       JSON document record
//
// Each kind of key has its own prefix; index names may contain ':'.
//
// Every mutation that touches more than one key runs as a Lua script so readers
// never observe a half-applied change.
type Registry struct {
	client *redis.Client
}

// NewRegistry creates a Redis-backed index registry
func NewRegistry(client *redis.Client) *Registry {
	return &Registry{client: client}
}

var registerScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 1 then
		return 0
	end
	redis.call("hset", KEYS[1], "name", ARGV[1], "description", ARGV[2], "embedding_model", ARGV[3], "created_at", ARGV[4])
	redis.call("sadd", KEYS[2], ARGV[1])
	return 1
`)

func (r *Registry) RegisterIndex(ctx context.Context, index *domain.Index) (*domain.Index, bool, error) {
	keys := []string{indexKey(index.Name), indexSetKey}
	created, err := registerScript.Run(ctx, r.client, keys,
		index.Name, index.Description, index.EmbeddingModel, index.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return nil, false, fmt.Errorf("register index %s: %w", index.Name, err)
	}

	stored, err := r.GetIndex(ctx, index.Name)
	if err != nil {
		return nil, false, err
	}
	return stored, created == 1, nil
}

func (r *Registry) GetIndex(ctx context.Context, name string) (*domain.Index, error) {
	pipe := r.client.Pipeline()
	fields := pipe.HGetAll(ctx, indexKey(name))
	members := pipe.LRange(ctx, membersKey(name), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get index %s: %w", name, err)
	}

	values := fields.Val()
	if len(values) == 0 {
		return nil, fmt.Errorf("index %s: %w", name, domain.ErrNotFound)
	}

	idx := &domain.Index{
		Name:           values["name"],
		Description:    values["description"],
		EmbeddingModel: values["embedding_model"],
		DocumentIDs:    members.Val(),
	}
	if idx.DocumentIDs == nil {
		idx.DocumentIDs = []string{}
	}
	if createdAt, err := time.Parse(time.RFC3339Nano, values["created_at"]); err == nil {
		idx.CreatedAt = createdAt
	}
	return idx, nil
}

func (r *Registry) ListIndexes(ctx context.Context) ([]*domain.Index, error) {
	names, err := r.client.SMembers(ctx, indexSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	sort.Strings(names)

	result := make([]*domain.Index, 0, len(names))
	for _, name := range names {
		idx, err := r.GetIndex(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted between SMEMBERS and the read
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, idx)
	}
	return result, nil
}

// deleteIndexScript returns the removed member ids, or nil when the index is unknown
var deleteIndexScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 0 then
		return false
	end
	local ids = redis.call("lrange", KEYS[2], 0, -1)
	for _, id in ipairs(ids) do
		redis.call("del", ARGV[2] .. id)
	end
	redis.call("del", KEYS[1], KEYS[2])
	redis.call("srem", KEYS[3], ARGV[1])
	return ids
`)

func (r *Registry) DeleteIndex(ctx context.Context, name string) ([]string, error) {
	keys := []string{indexKey(name), membersKey(name), indexSetKey}
	ids, err := deleteIndexScript.Run(ctx, r.client, keys, name, documentKeyPrefix).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("index %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("delete index %s: %w", name, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

var addDocumentScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 0 then
		return 0
	end
	local known = redis.call("exists", KEYS[3])
	redis.call("set", KEYS[3], ARGV[2])
	if known == 0 then
		redis.call("rpush", KEYS[2], ARGV[1])
	end
	return 1
`)

func (r *Registry) AddDocument(ctx context.Context, doc *domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	keys := []string{indexKey(doc.IndexName), membersKey(doc.IndexName), documentKey(doc.ID)}
	ok, err := addDocumentScript.Run(ctx, r.client, keys, doc.ID, data).Int()
	if err != nil {
		return fmt.Errorf("add document %s: %w", doc.ID, err)
	}
	if ok == 0 {
		return fmt.Errorf("index %s: %w", doc.IndexName, domain.ErrNotFound)
	}
	return nil
}

func (r *Registry) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	data, err := r.client.Get(ctx, documentKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &doc, nil
}

func (r *Registry) ListDocuments(ctx context.Context, indexName string) ([]*domain.Document, error) {
	idx, err := r.GetIndex(ctx, indexName)
	if err != nil {
		return nil, err
	}
	if len(idx.DocumentIDs) == 0 {
		return []*domain.Document{}, nil
	}

	keys := make([]string, len(idx.DocumentIDs))
	for i, id := range idx.DocumentIDs {
		keys[i] = documentKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents for %s: %w", indexName, err)
	}

	result := make([]*domain.Document, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var doc domain.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", idx.DocumentIDs[i], err)
		}
		result = append(result, &doc)
	}
	return result, nil
}

// removeDocumentScript returns -1 for an unknown index, 0 for a non-member and 1 on removal
var removeDocumentScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 0 then
		return -1
	end
	if redis.call("lrem", KEYS[2], 0, ARGV[1]) == 0 then
		return 0
	end
	redis.call("del", KEYS[3])
	return 1
`)

func (r *Registry) RemoveDocument(ctx context.Context, indexName, documentID string) error {
	keys := []string{indexKey(indexName), membersKey(indexName), documentKey(documentID)}
	result, err := removeDocumentScript.Run(ctx, r.client, keys, documentID).Int()
	if err != nil {
		return fmt.Errorf("remove document %s: %w", documentID, err)
	}
	switch result {
	case -1:
		return fmt.Errorf("index %s: %w", indexName, domain.ErrNotFound)
	case 0:
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	return nil
}

func (r *Registry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
