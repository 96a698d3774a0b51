// Package search implements the read path: it embeds a query string and
// returns the top-k most similar items of a collection.
package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/usesemdex/semdex/server/ai"
	svcerrors "github.com/usesemdex/semdex/server/internal/errors"
	"github.com/usesemdex/semdex/server/internal/observability"
	"github.com/usesemdex/semdex/store"
)

// Store is the interface for store operations needed by the search service.
type Store interface {
	SearchItems(ctx context.Context, opts *store.SearchItemsOptions) ([]*store.ItemWithScore, error)
}

// Result is one search hit.
type Result struct {
	Item *store.Item
	// Score is the cosine similarity in [-1, 1]; higher is more similar.
	Score float64
}

// Service is the search service.
type Service struct {
	store    Store
	embedder ai.Embedder

	defaultTopK int
	maxTopK     int
}

// NewService creates a search service.
func NewService(store Store, embedder ai.Embedder, defaultTopK, maxTopK int) *Service {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if maxTopK <= 0 {
		maxTopK = 100
	}
	return &Service{
		store:       store,
		embedder:    embedder,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
}

// ClampTopK maps a requested top-k to the allowed range: non-positive
// values fall back to the default, and the configured maximum caps the
// rest. Requesting more results than exist is not an error; the store just
// returns fewer.
func (s *Service) ClampTopK(topK int) int {
	if topK <= 0 {
		return s.defaultTopK
	}
	if topK > s.maxTopK {
		return s.maxTopK
	}
	return topK
}

// Search embeds the query and returns up to topK items of the collection
// ordered by descending similarity. An empty collection yields an empty
// result, not an error.
func (s *Service) Search(ctx context.Context, collectionID int32, query string, topK int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, svcerrors.InvalidArgument("query is empty")
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	limit := s.ClampTopK(topK)
	if reqCtx, ok := observability.FromContext(ctx); ok {
		reqCtx.Debug("query embedded",
			slog.Int("top_k", limit),
			slog.Int("dimension", len(vector)))
	}

	hits, err := s.store.SearchItems(ctx, &store.SearchItemsOptions{
		CollectionID: collectionID,
		Vector:       vector,
		Limit:        limit,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr == context.DeadlineExceeded {
			return nil, svcerrors.Timeout("search exceeded deadline", err)
		}
		return nil, svcerrors.StoreUnavailable("failed to search items", err)
	}

	results := make([]Result, len(hits))
	for i, hit := range hits {
		results[i] = Result{Item: hit.Item, Score: hit.Score}
	}
	return results, nil
}
