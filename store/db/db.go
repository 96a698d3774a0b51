package db

import (
	"github.com/pkg/errors"

	"github.com/usesemdex/semdex/internal/profile"
	"github.com/usesemdex/semdex/store"
	"github.com/usesemdex/semdex/store/db/postgres"
	"github.com/usesemdex/semdex/store/db/sqlite"
)

// NewDBDriver creates a new DB driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q", profile.Driver)
	}
}
