package store

import (
	"context"
	"time"

	"github.com/usesemdex/semdex/internal/profile"
	"github.com/usesemdex/semdex/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Collections are tiny and read on every request; a short-lived cache
	// keeps resolve-by-id off the database.
	collectionCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
	}

	return &Store{
		driver:          driver,
		profile:         profile,
		collectionCache: cache.New(cacheConfig),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Ping verifies the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.GetDB().PingContext(ctx)
}

func (s *Store) Close() error {
	s.collectionCache.Close()
	return s.driver.Close()
}
