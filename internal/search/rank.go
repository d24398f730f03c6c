// Package search ranks available items by semantic similarity to a query.
package search

import (
	"math"
	"sort"

	"github.com/erazemk/najdeno/internal/model"
)

// DefaultThresholds are the similarity tiers tried from strictest to
// loosest.
var DefaultThresholds = []float64{0.30, 0.25, 0.20}

// Match is an item scored against a query.
type Match struct {
	Item  model.Item `json:"item"`
	Score float64    `json:"score"`
}

// Result is the outcome of a ranked search. Threshold is the tier that
// produced the matches, or nil when no tier matched anything.
type Result struct {
	Matches   []Match  `json:"matches"`
	Threshold *float64 `json:"threshold"`
}

// Rank scores every available item with an embedding of the query's
// dimension and returns the matches of the first threshold tier that has
// any, best first. Thresholds are tried in descending order whatever order
// they are given in.
func Rank(query []float32, items []model.Item, thresholds []float64) Result {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	tiers := append([]float64(nil), thresholds...)
	sort.Sort(sort.Reverse(sort.Float64Slice(tiers)))

	var scored []Match
	if norm(query) > 0 {
		for _, item := range items {
			if item.Status != model.ItemStatusAvailable || len(item.Embedding) == 0 || len(item.Embedding) != len(query) {
				continue
			}
			score, ok := Cosine(query, item.Embedding)
			if !ok {
				continue
			}
			scored = append(scored, Match{Item: item, Score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	for _, t := range tiers {
		n := sort.Search(len(scored), func(i int) bool { return scored[i].Score < t })
		if n > 0 {
			threshold := t
			return Result{Matches: scored[:n], Threshold: &threshold}
		}
	}
	return Result{Matches: []Match{}}
}

// Cosine returns the cosine similarity of a and b. It reports false when
// the lengths differ or either vector is zero.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

func norm(v []float32) float64 {
	var s float64
	for _, f := range v {
		s += float64(f) * float64(f)
	}
	return math.Sqrt(s)
}
