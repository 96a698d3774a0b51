package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/usesemdex/semdex/internal/profile"
	"github.com/usesemdex/semdex/store"
)

// ============================================================================
// SQLITE SUPPORT (Embedded / Brute-Force Flavor)
// ============================================================================
// SQLite has no native vector operator. Embeddings are stored as JSON
// arrays and similarity search is a full scan of the collection with the
// cosine computed in Go. Fine for embedded and demo deployments; use
// PostgreSQL with pgvector for index-accelerated search.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a SQLite database at the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// busy_timeout smooths over writer contention; WAL lets reads proceed
	// during writes; foreign_keys enables the items cascade.
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", profile.DSN)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	return &DB{
		db:      db,
		profile: profile,
	}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var name string
	err := d.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'collections'",
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to check initialization")
	}
	return true, nil
}
