package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/embedding"
	"github.com/erazemk/najdeno/internal/fault"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

var finder = identity.MustParse("0xf000000000000000000000000000000000000001")

// keywordEmbedder maps texts to fixed vectors by exact match.
func keywordEmbedder(vectors map[string][]float32) embedding.Embedder {
	return embedding.Func(func(_ context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return nil, &embedding.ServiceError{Op: "embed", Err: errors.New("unknown text")}
	})
}

func TestSearcher(t *testing.T) {
	ctx := context.Background()
	database := db.NewTestDB(t)

	wallet, err := store.CreateItem(ctx, database, store.ItemParams{Name: "Wallet", Finder: finder})
	require.NoError(t, err)
	require.NoError(t, store.SetItemEmbedding(ctx, database, wallet.ID, vecWithScore(0.8)))

	s := &Searcher{
		DB:       database,
		Embedder: keywordEmbedder(map[string][]float32{"lost wallet": {1, 0}}),
	}

	res, err := s.Search(ctx, " lost wallet ")
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, wallet.ID, res.Matches[0].Item.ID)

	_, err = s.Search(ctx, "umbrella")
	var se *embedding.ServiceError
	assert.True(t, errors.As(err, &se))

	_, err = s.Search(ctx, "  ")
	assert.ErrorIs(t, err, fault.ErrBadRequest)
}

func TestIndexer(t *testing.T) {
	ctx := context.Background()
	database := db.NewTestDB(t)

	item, err := store.CreateItem(ctx, database, store.ItemParams{Name: "Umbrella", Description: "black", Finder: finder})
	require.NoError(t, err)
	broken, err := store.CreateItem(ctx, database, store.ItemParams{Name: "Scarf", Finder: finder})
	require.NoError(t, err)

	e := keywordEmbedder(map[string][]float32{"Umbrella. black": {0.5, 0.5}})
	ix := NewIndexer(database, e, IndexerConfig{Workers: 1, Queue: 4, Timeout: time.Second})
	assert.True(t, ix.Enqueue(item))
	assert.True(t, ix.Enqueue(broken))
	ix.Close()

	items, err := store.ListSearchable(ctx, database)
	require.NoError(t, err)
	require.Len(t, items, 1, "failed embeddings leave the item unindexed")
	assert.Equal(t, item.ID, items[0].ID)
	assert.Equal(t, []float32{0.5, 0.5}, items[0].Embedding)

	assert.False(t, ix.Enqueue(item), "closed indexer refuses work")
}

func TestIndexerEnqueueDoesNotBlock(t *testing.T) {
	block := make(chan struct{})
	e := embedding.Func(func(ctx context.Context, _ string) ([]float32, error) {
		<-block
		return nil, ctx.Err()
	})
	ix := NewIndexer(db.NewTestDB(t), e, IndexerConfig{Workers: 1, Queue: 1})
	defer func() {
		close(block)
		ix.Close()
	}()

	item := &model.Item{ID: "x", Name: "Phone"}
	accepted := 0
	for range 5 {
		if ix.Enqueue(item) {
			accepted++
		}
	}
	// One job in the worker and one in the queue at most.
	assert.LessOrEqual(t, accepted, 2)
}
