// Package index implements the write path: it embeds item text and upserts
// the result through the store, one outcome per input item.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/usesemdex/semdex/server/ai"
	svcerrors "github.com/usesemdex/semdex/server/internal/errors"
	"github.com/usesemdex/semdex/server/internal/observability"
	"github.com/usesemdex/semdex/store"
)

// Store is the interface for store operations needed by the index service.
type Store interface {
	UpsertItems(ctx context.Context, items []*store.Item) []store.ItemResult
	DeleteItem(ctx context.Context, collectionID int32, itemID string) error
	ListItems(ctx context.Context, find *store.FindItem) ([]*store.Item, error)
}

// ItemInput is one item submitted for indexing.
type ItemInput struct {
	// ID is optional; a UUID is assigned when absent.
	ID       string
	Text     string
	Metadata json.RawMessage
}

// ItemOutcome reports the result of one input item, aligned by position.
type ItemOutcome struct {
	ID  string
	Err error
}

// OK reports whether the item was embedded and stored.
func (o ItemOutcome) OK() bool {
	return o.Err == nil
}

// Service is the indexing service.
type Service struct {
	store    Store
	embedder ai.Embedder

	// sem caps concurrent embedding calls inside one batch so a large
	// batch cannot overwhelm the model API.
	sem *semaphore.Weighted

	// maxTextLen bounds stored item text in runes.
	maxTextLen int
}

// NewService creates an indexing service. concurrency caps in-flight
// embedding calls per batch; maxTextLen bounds item text in runes.
func NewService(store Store, embedder ai.Embedder, concurrency, maxTextLen int) *Service {
	if concurrency <= 0 {
		concurrency = 3
	}
	if maxTextLen <= 0 {
		maxTextLen = 8192
	}
	return &Service{
		store:      store,
		embedder:   embedder,
		sem:        semaphore.NewWeighted(int64(concurrency)),
		maxTextLen: maxTextLen,
	}
}

// Index embeds and upserts a batch of items into the collection. The batch
// is not atomic: each outcome reports its own item independently, so one
// bad item never blocks its siblings. Item text is normalized before
// embedding and storage (trimmed, truncated to the configured rune limit)
// so the persisted text is exactly the string the vector was computed
// from. Re-indexing an existing (collection, id) pair replaces text,
// metadata, and embedding. Cancellation stops un-attempted items;
// already-upserted items stay.
func (s *Service) Index(ctx context.Context, collectionID int32, inputs []ItemInput) []ItemOutcome {
	outcomes := make([]ItemOutcome, len(inputs))
	vectors := make([][]float32, len(inputs))
	texts := make([]string, len(inputs))

	// Embed all valid items first, with bounded concurrency. Validation
	// failures are recorded without contacting the model.
	var wg sync.WaitGroup
	for i := range inputs {
		outcomes[i].ID = inputs[i].ID
		if outcomes[i].ID == "" {
			outcomes[i].ID = uuid.NewString()
		}
		text := strings.TrimSpace(inputs[i].Text)
		if runes := []rune(text); len(runes) > s.maxTextLen {
			text = string(runes[:s.maxTextLen])
		}
		if text == "" {
			outcomes[i].Err = svcerrors.InvalidArgument("item text is empty")
			continue
		}
		if len(inputs[i].Metadata) > 0 && !json.Valid(inputs[i].Metadata) {
			outcomes[i].Err = svcerrors.InvalidArgument("item metadata is not valid JSON")
			continue
		}
		texts[i] = text

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.sem.Acquire(ctx, 1); err != nil {
				outcomes[i].Err = svcerrors.ContextCanceled(err)
				return
			}
			defer s.sem.Release(1)
			vector, err := s.embedder.Embed(ctx, texts[i])
			if err != nil {
				outcomes[i].Err = err
				return
			}
			vectors[i] = vector
		}(i)
	}
	wg.Wait()

	// Upsert the successfully embedded items. The store checks the
	// context between items, so a cancelled batch stops cleanly.
	now := time.Now().Unix()
	writeIdx := []int{}
	writes := []*store.Item{}
	for i := range inputs {
		if outcomes[i].Err != nil {
			continue
		}
		writeIdx = append(writeIdx, i)
		writes = append(writes, &store.Item{
			ID:           outcomes[i].ID,
			CollectionID: collectionID,
			Text:         texts[i],
			Metadata:     inputs[i].Metadata,
			Embedding:    vectors[i],
			CreatedTs:    now,
			UpdatedTs:    now,
		})
	}
	for j, result := range s.store.UpsertItems(ctx, writes) {
		if result.Err != nil {
			outcomes[writeIdx[j]].Err = classifyStoreErr(ctx, result.Err)
		}
	}

	if reqCtx, ok := observability.FromContext(ctx); ok {
		for i := range outcomes {
			if outcomes[i].Err == nil {
				continue
			}
			reqCtx.Warn("item not indexed",
				slog.String("item_id", outcomes[i].ID),
				slog.String(observability.LogFieldErrorCode,
					string(svcerrors.GetCodeFromError(outcomes[i].Err, svcerrors.ErrCodeStoreUnavailable))))
		}
	}
	return outcomes
}

// DeleteItem removes a single item from a collection.
func (s *Service) DeleteItem(ctx context.Context, collectionID int32, itemID string) error {
	if itemID == "" {
		return svcerrors.InvalidArgument("item id is empty")
	}
	if err := s.store.DeleteItem(ctx, collectionID, itemID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return svcerrors.NotFound("item %q not found", itemID)
		}
		return svcerrors.StoreUnavailable("failed to delete item", err)
	}
	return nil
}

// ListItems returns items in insertion order with limit/offset pagination.
// The limit is clamped to [1, 500] and the offset to >= 0.
func (s *Service) ListItems(ctx context.Context, collectionID int32, limit, offset int) ([]*store.Item, int, int, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListItems(ctx, &store.FindItem{
		CollectionID: collectionID,
		Limit:        &limit,
		Offset:       &offset,
	})
	if err != nil {
		return nil, 0, 0, svcerrors.StoreUnavailable("failed to list items", err)
	}
	return items, limit, offset, nil
}

func classifyStoreErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if ctxErr == context.DeadlineExceeded {
			return svcerrors.Timeout("store call exceeded deadline", err)
		}
		return svcerrors.ContextCanceled(err)
	}
	return svcerrors.StoreUnavailable("failed to upsert item", err)
}
