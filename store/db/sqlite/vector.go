package sqlite

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/usesemdex/semdex/store"
)

// SearchItems performs a brute-force similarity scan: every item in the
// collection is read in insertion order, scored with cosine similarity in
// Go, and the top results returned. A stable sort keeps insertion order
// for equal scores.
func (d *DB) SearchItems(ctx context.Context, opts *store.SearchItemsOptions) ([]*store.ItemWithScore, error) {
	items, err := d.ListItems(ctx, &store.FindItem{CollectionID: opts.CollectionID})
	if err != nil {
		return nil, err
	}

	results := make([]*store.ItemWithScore, 0, len(items))
	for _, item := range items {
		score, err := cosineSimilarity(opts.Vector, item.Embedding)
		if err != nil {
			return nil, errors.Wrapf(err, "item %s", item.ID)
		}
		results = append(results, &store.ItemWithScore{Item: item, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// cosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. A zero vector has no direction; its similarity to anything is 0.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
