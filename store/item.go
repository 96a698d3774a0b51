package store

import (
	"context"
	"encoding/json"
)

// Item is a stored text snippet with its embedding vector.
type Item struct {
	// Seq is the insertion sequence assigned by the store. It is stable
	// across upserts of the same (collection, id) pair and breaks score
	// ties in search results.
	Seq int64
	// ID is the caller-supplied or generated identifier, unique within
	// its collection.
	ID           string
	CollectionID int32
	Text         string
	// Metadata is an opaque JSON document the store returns unmodified.
	Metadata json.RawMessage
	// Embedding has exactly the configured dimension D.
	Embedding []float32
	CreatedTs int64
	UpdatedTs int64
}

// FindItem is the find condition for items.
type FindItem struct {
	CollectionID int32
	ID           *string
	Limit        *int
	Offset       *int
}

// ItemWithScore is a search hit with its cosine similarity in [-1, 1].
type ItemWithScore struct {
	Item  *Item
	Score float64
}

// SearchItemsOptions restricts a similarity search to one collection.
type SearchItemsOptions struct {
	CollectionID int32
	Vector       []float32
	Limit        int
}

// ItemResult reports the outcome of one item inside a batch upsert.
type ItemResult struct {
	ID   string
	Item *Item
	Err  error
}

// UpsertItem inserts the item or replaces the row with the same
// (collection_id, id), keeping the original insertion sequence.
func (s *Store) UpsertItem(ctx context.Context, upsert *Item) (*Item, error) {
	return s.driver.UpsertItem(ctx, upsert)
}

// UpsertItems upserts a batch item by item. The batch is not atomic: each
// element of the returned slice reports its own outcome, aligned with the
// input. The context is checked between items so cancellation stops
// un-attempted writes without touching committed rows.
func (s *Store) UpsertItems(ctx context.Context, items []*Item) []ItemResult {
	results := make([]ItemResult, len(items))
	for i, item := range items {
		results[i].ID = item.ID
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		stored, err := s.driver.UpsertItem(ctx, item)
		if err != nil {
			results[i].Err = err
			continue
		}
		results[i].Item = stored
	}
	return results
}

func (s *Store) ListItems(ctx context.Context, find *FindItem) ([]*Item, error) {
	return s.driver.ListItems(ctx, find)
}

func (s *Store) DeleteItem(ctx context.Context, collectionID int32, itemID string) error {
	return s.driver.DeleteItem(ctx, collectionID, itemID)
}

func (s *Store) CountItems(ctx context.Context, collectionID int32) (int64, error) {
	return s.driver.CountItems(ctx, collectionID)
}

// SearchItems returns up to opts.Limit items ordered by descending cosine
// similarity; equal scores keep insertion order.
func (s *Store) SearchItems(ctx context.Context, opts *SearchItemsOptions) ([]*ItemWithScore, error) {
	return s.driver.SearchItems(ctx, opts)
}
