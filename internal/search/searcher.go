package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/najdeno/internal/embedding"
	"github.com/erazemk/najdeno/internal/fault"
	"github.com/erazemk/najdeno/internal/store"
)

// Searcher answers free-text queries over the stored items.
type Searcher struct {
	DB         *sql.DB
	Embedder   embedding.Embedder
	Thresholds []float64
}

// Search embeds the query and ranks the searchable items against it.
func (s *Searcher) Search(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, fmt.Errorf("%w: empty query", fault.ErrBadRequest)
	}

	vec, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, err
	}

	items, err := store.ListSearchable(ctx, s.DB)
	if err != nil {
		return Result{}, err
	}

	res := Rank(vec, items, s.Thresholds)
	for i := range res.Matches {
		res.Matches[i].Item = *res.Matches[i].Item.Public()
	}
	return res, nil
}
