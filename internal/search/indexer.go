package search

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/najdeno/internal/embedding"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// Indexer computes item embeddings in the background. Enqueue never waits
// for the embedding service; failures are logged and leave the item
// without an embedding, which keeps it out of search results.
type Indexer struct {
	db       *sql.DB
	embedder embedding.Embedder
	timeout  time.Duration
	logger   *slog.Logger

	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type job struct {
	itemID string
	text   string
}

// IndexerConfig sizes the worker pool.
type IndexerConfig struct {
	Workers int
	Queue   int
	Timeout time.Duration
}

// NewIndexer starts cfg.Workers workers.
func NewIndexer(db *sql.DB, e embedding.Embedder, cfg IndexerConfig) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 128
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	ix := &Indexer{
		db:       db,
		embedder: e,
		timeout:  cfg.Timeout,
		logger:   slog.Default().With("component", "indexer"),
		jobs:     make(chan job, cfg.Queue),
	}
	for range cfg.Workers {
		ix.wg.Add(1)
		go ix.work()
	}
	return ix
}

// Enqueue schedules item for indexing. It reports false if the queue is
// full or the indexer is closed.
func (ix *Indexer) Enqueue(item *model.Item) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return false
	}

	j := job{itemID: item.ID, text: embedding.ItemText(item.Name, item.Description, item.Location, item.Tags)}
	select {
	case ix.jobs <- j:
		return true
	default:
		ix.logger.Warn("index queue full, skipping item", "item", item.ID)
		return false
	}
}

// Close stops accepting work and waits for queued jobs to finish.
func (ix *Indexer) Close() {
	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		return
	}
	ix.closed = true
	close(ix.jobs)
	ix.mu.Unlock()

	ix.wg.Wait()
}

func (ix *Indexer) work() {
	defer ix.wg.Done()
	for j := range ix.jobs {
		ix.index(j)
	}
}

func (ix *Indexer) index(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), ix.timeout)
	defer cancel()

	vec, err := ix.embedder.Embed(ctx, j.text)
	if err != nil {
		ix.logger.Error("embedding item", "item", j.itemID, "error", err)
		return
	}
	if err := store.SetItemEmbedding(ctx, ix.db, j.itemID, vec); err != nil {
		ix.logger.Error("storing embedding", "item", j.itemID, "error", err)
		return
	}
	ix.logger.Info("item indexed", "item", j.itemID, "dimensions", len(vec))
}
