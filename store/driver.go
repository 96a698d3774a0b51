package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Sentinel errors drivers return so callers can classify failures without
// inspecting backend-specific error strings.
var (
	// ErrNotFound indicates the addressed collection or item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint (collection name/uid)
	// was violated on create.
	ErrAlreadyExists = errors.New("already exists")
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
//
// Two implementations exist: postgres (pgvector, index-accelerated cosine
// search) and sqlite (brute-force scan, cosine computed in Go). Both must
// satisfy the same ordering contract: search results descend by score and
// ties keep insertion order.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Collection model related methods.
	CreateCollection(ctx context.Context, create *Collection) (*Collection, error)
	ListCollections(ctx context.Context, find *FindCollection) ([]*Collection, error)
	DeleteCollection(ctx context.Context, id int32) error

	// Item model related methods.
	UpsertItem(ctx context.Context, upsert *Item) (*Item, error)
	ListItems(ctx context.Context, find *FindItem) ([]*Item, error)
	DeleteItem(ctx context.Context, collectionID int32, itemID string) error
	CountItems(ctx context.Context, collectionID int32) (int64, error)

	// SearchItems performs similarity search restricted to one collection.
	SearchItems(ctx context.Context, opts *SearchItemsOptions) ([]*ItemWithScore, error)
}
