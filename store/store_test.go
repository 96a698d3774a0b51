package store_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/usesemdex/semdex/internal/profile"
	"github.com/usesemdex/semdex/store"
	"github.com/usesemdex/semdex/store/db/sqlite"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	testProfile := &profile.Profile{
		Mode:         "dev",
		Driver:       "sqlite",
		Data:         dir,
		DSN:          filepath.Join(dir, "semdex_test.db"),
		EmbeddingDim: 3,
		Version:      "0.1.0",
	}

	driver, err := sqlite.NewDB(testProfile)
	require.NoError(t, err)
	ts := store.New(driver, testProfile)
	require.NoError(t, ts.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = ts.Close()
	})
	return ts
}

func createTestCollection(t *testing.T, ts *store.Store, name string) *store.Collection {
	t.Helper()
	created, err := ts.CreateCollection(context.Background(), &store.Collection{
		UID:  "uid-" + name,
		Name: name,
	})
	require.NoError(t, err)
	return created
}

func upsertTestItem(t *testing.T, ts *store.Store, collectionID int32, id string, embedding []float32) *store.Item {
	t.Helper()
	now := time.Now().Unix()
	stored, err := ts.UpsertItem(context.Background(), &store.Item{
		ID:           id,
		CollectionID: collectionID,
		Text:         "text of " + id,
		Embedding:    embedding,
		CreatedTs:    now,
		UpdatedTs:    now,
	})
	require.NoError(t, err)
	return stored
}

func TestCollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)

	first := createTestCollection(t, ts, "notes")
	second := createTestCollection(t, ts, "docs")
	require.NotEqual(t, first.ID, second.ID)
	require.NotZero(t, first.CreatedTs)

	list, err := ts.ListCollections(ctx, &store.FindCollection{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Creation order.
	require.Equal(t, "notes", list[0].Name)
	require.Equal(t, "docs", list[1].Name)

	byID, err := ts.GetCollection(ctx, &store.FindCollection{ID: &first.ID})
	require.NoError(t, err)
	require.Equal(t, "notes", byID.Name)

	byUID, err := ts.GetCollection(ctx, &store.FindCollection{UID: &first.UID})
	require.NoError(t, err)
	require.Equal(t, first.ID, byUID.ID)

	name := "docs"
	byName, err := ts.GetCollection(ctx, &store.FindCollection{Name: &name})
	require.NoError(t, err)
	require.Equal(t, second.ID, byName.ID)

	require.NoError(t, ts.DeleteCollection(ctx, first.ID))
	_, err = ts.GetCollection(ctx, &store.FindCollection{UID: &first.UID})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateCollectionDuplicateName(t *testing.T) {
	ts := newTestStore(t)
	createTestCollection(t, ts, "notes")

	_, err := ts.CreateCollection(context.Background(), &store.Collection{
		UID:  "another-uid",
		Name: "notes",
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestDeleteCollectionNotFound(t *testing.T) {
	ts := newTestStore(t)
	err := ts.DeleteCollection(context.Background(), 12345)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteCollectionCascadesItems(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	col := createTestCollection(t, ts, "notes")

	upsertTestItem(t, ts, col.ID, "a", []float32{1, 0, 0})
	upsertTestItem(t, ts, col.ID, "b", []float32{0, 1, 0})
	count, err := ts.CountItems(ctx, col.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	require.NoError(t, ts.DeleteCollection(ctx, col.ID))
	count, err = ts.CountItems(ctx, col.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestUpsertItemIdempotent(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	col := createTestCollection(t, ts, "notes")

	first, err := ts.UpsertItem(ctx, &store.Item{
		ID:           "doc-1",
		CollectionID: col.ID,
		Text:         "original text",
		Metadata:     json.RawMessage(`{"lang":"en"}`),
		Embedding:    []float32{1, 0, 0},
		CreatedTs:    100,
		UpdatedTs:    100,
	})
	require.NoError(t, err)

	second, err := ts.UpsertItem(ctx, &store.Item{
		ID:           "doc-1",
		CollectionID: col.ID,
		Text:         "replaced text",
		Metadata:     json.RawMessage(`{"lang":"de"}`),
		Embedding:    []float32{0, 1, 0},
		CreatedTs:    200,
		UpdatedTs:    200,
	})
	require.NoError(t, err)

	// Same row: sequence and creation time survive the replacement.
	require.Equal(t, first.Seq, second.Seq)
	require.EqualValues(t, 100, second.CreatedTs)
	require.EqualValues(t, 200, second.UpdatedTs)

	count, err := ts.CountItems(ctx, col.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	items, err := ts.ListItems(ctx, &store.FindItem{CollectionID: col.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "replaced text", items[0].Text)
	require.JSONEq(t, `{"lang":"de"}`, string(items[0].Metadata))
	require.Equal(t, []float32{0, 1, 0}, items[0].Embedding)
}

func TestUpsertItemsCanceledContext(t *testing.T) {
	ts := newTestStore(t)
	col := createTestCollection(t, ts, "notes")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := ts.UpsertItems(ctx, []*store.Item{
		{ID: "a", CollectionID: col.ID, Text: "a", Embedding: []float32{1, 0, 0}},
		{ID: "b", CollectionID: col.ID, Text: "b", Embedding: []float32{0, 1, 0}},
	})
	require.Len(t, results, 2)
	require.Equal(t, "a", results[0].ID)
	require.Equal(t, "b", results[1].ID)
	require.ErrorIs(t, results[0].Err, context.Canceled)
	require.ErrorIs(t, results[1].Err, context.Canceled)

	count, err := ts.CountItems(context.Background(), col.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestListItemsPagination(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	col := createTestCollection(t, ts, "notes")

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		upsertTestItem(t, ts, col.ID, id, []float32{1, 0, 0})
	}

	limit, offset := 2, 2
	items, err := ts.ListItems(ctx, &store.FindItem{
		CollectionID: col.ID,
		Limit:        &limit,
		Offset:       &offset,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "c", items[0].ID)
	require.Equal(t, "d", items[1].ID)
}

func TestDeleteItem(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	col := createTestCollection(t, ts, "notes")
	upsertTestItem(t, ts, col.ID, "a", []float32{1, 0, 0})

	require.NoError(t, ts.DeleteItem(ctx, col.ID, "a"))
	require.ErrorIs(t, ts.DeleteItem(ctx, col.ID, "a"), store.ErrNotFound)
}

func TestSearchItemsRanking(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	col := createTestCollection(t, ts, "notes")

	upsertTestItem(t, ts, col.ID, "orthogonal", []float32{0, 1, 0})
	upsertTestItem(t, ts, col.ID, "exact", []float32{1, 0, 0})
	upsertTestItem(t, ts, col.ID, "close", []float32{0.8, 0.6, 0})

	hits, err := ts.SearchItems(ctx, &store.SearchItemsOptions{
		CollectionID: col.ID,
		Vector:       []float32{1, 0, 0},
		Limit:        2,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "exact", hits[0].Item.ID)
	require.Equal(t, "close", hits[1].Item.ID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-6)
	require.InDelta(t, 0.8, hits[1].Score, 1e-6)
	require.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestSearchItemsTieBreakInsertionOrder(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	col := createTestCollection(t, ts, "notes")

	vector := []float32{1, 0, 0}
	upsertTestItem(t, ts, col.ID, "first", vector)
	upsertTestItem(t, ts, col.ID, "second", vector)
	upsertTestItem(t, ts, col.ID, "third", vector)
	// Re-indexing keeps the original insertion sequence.
	upsertTestItem(t, ts, col.ID, "first", vector)

	hits, err := ts.SearchItems(ctx, &store.SearchItemsOptions{
		CollectionID: col.ID,
		Vector:       vector,
		Limit:        3,
	})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, "first", hits[0].Item.ID)
	require.Equal(t, "second", hits[1].Item.ID)
	require.Equal(t, "third", hits[2].Item.ID)
}

func TestSearchItemsOverRequest(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	col := createTestCollection(t, ts, "notes")

	upsertTestItem(t, ts, col.ID, "a", []float32{1, 0, 0})
	upsertTestItem(t, ts, col.ID, "b", []float32{0, 1, 0})

	hits, err := ts.SearchItems(ctx, &store.SearchItemsOptions{
		CollectionID: col.ID,
		Vector:       []float32{1, 0, 0},
		Limit:        10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestSearchItemsEmptyCollection(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	col := createTestCollection(t, ts, "notes")

	hits, err := ts.SearchItems(ctx, &store.SearchItemsOptions{
		CollectionID: col.ID,
		Vector:       []float32{1, 0, 0},
		Limit:        5,
	})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestSearchItemsScopedToCollection(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	colA := createTestCollection(t, ts, "a")
	colB := createTestCollection(t, ts, "b")

	upsertTestItem(t, ts, colA.ID, "in-a", []float32{1, 0, 0})
	upsertTestItem(t, ts, colB.ID, "in-b", []float32{1, 0, 0})

	hits, err := ts.SearchItems(ctx, &store.SearchItemsOptions{
		CollectionID: colA.ID,
		Vector:       []float32{1, 0, 0},
		Limit:        10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "in-a", hits[0].Item.ID)
}
