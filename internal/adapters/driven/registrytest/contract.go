// Package registrytest holds behaviour checks shared by every IndexRegistry backend.
package registrytest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Run exercises an IndexRegistry implementation. newRegistry must return an empty store.
func Run(t *testing.T, newRegistry func(t *testing.T) driven.IndexRegistry) {
	t.Run("register is create-if-absent", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()

		first, created, err := r.RegisterIndex(ctx, domain.NewIndex("handbook", "Employee handbook", "model-a"))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "handbook", first.Name)

		again, created, err := r.RegisterIndex(ctx, domain.NewIndex("handbook", "other description", "model-b"))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "Employee handbook", again.Description)
		assert.Equal(t, "model-a", again.EmbeddingModel)
	})

	t.Run("get missing index", func(t *testing.T) {
		r := newRegistry(t)
		_, err := r.GetIndex(context.Background(), "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("documents keep membership order", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()
		_, _, err := r.RegisterIndex(ctx, domain.NewIndex("idx", "", "m"))
		require.NoError(t, err)

		for _, id := range []string{"doc-3", "doc-1", "doc-2"} {
			require.NoError(t, r.AddDocument(ctx, doc("idx", id)))
		}

		idx, err := r.GetIndex(ctx, "idx")
		require.NoError(t, err)
		assert.Equal(t, []string{"doc-3", "doc-1", "doc-2"}, idx.DocumentIDs)

		docs, err := r.ListDocuments(ctx, "idx")
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "doc-3", docs[0].ID)
		assert.Equal(t, "doc-3.txt", docs[0].Filename)
		assert.Equal(t, int64(42), docs[0].Size)
		assert.Equal(t, 2, docs[0].ChunkCount)

		got, err := r.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "idx", got.IndexName)
		assert.Equal(t, "txt", got.FileType)
	})

	t.Run("add document requires index", func(t *testing.T) {
		r := newRegistry(t)
		err := r.AddDocument(context.Background(), doc("missing", "doc-1"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("remove document", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()
		_, _, err := r.RegisterIndex(ctx, domain.NewIndex("idx", "", "m"))
		require.NoError(t, err)
		require.NoError(t, r.AddDocument(ctx, doc("idx", "doc-1")))
		require.NoError(t, r.AddDocument(ctx, doc("idx", "doc-2")))

		require.NoError(t, r.RemoveDocument(ctx, "idx", "doc-1"))

		idx, err := r.GetIndex(ctx, "idx")
		require.NoError(t, err)
		assert.Equal(t, []string{"doc-2"}, idx.DocumentIDs)
		_, err = r.GetDocument(ctx, "doc-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		assert.ErrorIs(t, r.RemoveDocument(ctx, "idx", "doc-1"), domain.ErrNotFound)
		assert.ErrorIs(t, r.RemoveDocument(ctx, "missing", "doc-2"), domain.ErrNotFound)
	})

	t.Run("delete index cascades", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()
		_, _, err := r.RegisterIndex(ctx, domain.NewIndex("a", "", "m"))
		require.NoError(t, err)
		_, _, err = r.RegisterIndex(ctx, domain.NewIndex("b", "", "m"))
		require.NoError(t, err)
		require.NoError(t, r.AddDocument(ctx, doc("a", "a-1")))
		require.NoError(t, r.AddDocument(ctx, doc("a", "a-2")))
		require.NoError(t, r.AddDocument(ctx, doc("b", "b-1")))

		removed, err := r.DeleteIndex(ctx, "a")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a-1", "a-2"}, removed)

		_, err = r.GetIndex(ctx, "a")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = r.GetDocument(ctx, "a-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = r.GetDocument(ctx, "b-1")
		assert.NoError(t, err)

		_, err = r.DeleteIndex(ctx, "a")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list indexes by name", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()
		for _, name := range []string{"zeta", "alpha", "mid"} {
			_, _, err := r.RegisterIndex(ctx, domain.NewIndex(name, "", "m"))
			require.NoError(t, err)
		}
		require.NoError(t, r.AddDocument(ctx, doc("mid", "m-1")))

		list, err := r.ListIndexes(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "alpha", list[0].Name)
		assert.Equal(t, "mid", list[1].Name)
		assert.Equal(t, 1, list[1].DocumentCount())
		assert.Equal(t, "zeta", list[2].Name)
	})

	t.Run("names containing separators stay independent", func(t *testing.T) {
		names := [][]string{
			{"a", "a:documents"},
			{"a:documents", "a"},
			{"b", "b:docs"},
		}
		for _, pair := range names {
			r := newRegistry(t)
			ctx := context.Background()

			for i, name := range pair {
				_, created, err := r.RegisterIndex(ctx, domain.NewIndex(name, "", "m"))
				require.NoError(t, err, "register %s", name)
				assert.True(t, created, "register %s", name)
				require.NoError(t, r.AddDocument(ctx, doc(name, fmt.Sprintf("%s-doc-%d", pair[0], i))), "add to %s", name)
			}

			for i, name := range pair {
				idx, err := r.GetIndex(ctx, name)
				require.NoError(t, err)
				assert.Equal(t, name, idx.Name)
				assert.Equal(t, []string{fmt.Sprintf("%s-doc-%d", pair[0], i)}, idx.DocumentIDs)
			}

			_, err := r.DeleteIndex(ctx, pair[0])
			require.NoError(t, err)
			other, err := r.GetIndex(ctx, pair[1])
			require.NoError(t, err)
			assert.Len(t, other.DocumentIDs, 1)
		}
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newRegistry(t).Ping(context.Background()))
	})
}

func doc(index, id string) *domain.Document {
	return &domain.Document{
		ID:         id,
		IndexName:  index,
		Filename:   id + ".txt",
		FileType:   "txt",
		Size:       42,
		ChunkCount: 2,
		UploadedAt: time.Now().UTC().Truncate(time.Second),
	}
}
