package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/usesemdex/semdex/internal/version"
)

// Migration System Overview:
//
// Schema version is stored in system_setting under "schema_version".
//
// Migration Flow:
// 1. preMigrate: if the DB is uninitialized, apply LATEST.sql and stamp
//    the current schema version.
// 2. Migrate: apply incremental migrations between the stored version and
//    the target version, in lexicographic file order.
//
// Migration Files:
// - Location: store/migration/{driver}/{version}/NN__description.sql
// - LATEST.sql: full schema for new installations.
//
// The postgres schema declares the pgvector column width from the
// configured embedding dimension; the {{EMBEDDING_DIM}} placeholder is
// substituted before execution.

//go:embed migration
var migrationFS embed.FS

const (
	// MigrateFileNameSplit separates the patch number from the description
	// in a migration file name, e.g. "1__create_table.sql".
	MigrateFileNameSplit = "__"
	// LatestSchemaFileName is the full schema applied to fresh installations.
	LatestSchemaFileName = "LATEST.sql"

	schemaVersionSettingName = "schema_version"
	embeddingDimPlaceholder  = "{{EMBEDDING_DIM}}"
)

// Migrate idempotently brings the database schema up to the version the
// binary was built for. Safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check database initialization")
	}

	if !initialized {
		if err := s.applyLatestSchema(ctx); err != nil {
			return errors.Wrap(err, "failed to apply latest schema")
		}
		if err := s.setSchemaVersion(ctx, version.GetSchemaVersion(version.GetCurrentVersion())); err != nil {
			return errors.Wrap(err, "failed to stamp schema version")
		}
		slog.Info("database initialized", slog.String("driver", s.profile.Driver))
		return nil
	}

	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}
	targetVersion := version.GetSchemaVersion(version.GetCurrentVersion())
	if !version.IsVersionGreaterThan(targetVersion, currentVersion) {
		return nil
	}

	files, err := s.collectMigrationFiles(currentVersion, targetVersion)
	if err != nil {
		return err
	}
	for _, file := range files {
		buf, err := migrationFS.ReadFile(file)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration file %s", file)
		}
		if err := s.execMigration(ctx, string(buf)); err != nil {
			return errors.Wrapf(err, "failed to apply migration %s", file)
		}
		slog.Info("applied migration", slog.String("file", file))
	}
	return s.setSchemaVersion(ctx, targetVersion)
}

func (s *Store) applyLatestSchema(ctx context.Context) error {
	path := filepath.Join("migration", s.profile.Driver, LatestSchemaFileName)
	buf, err := migrationFS.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema %s", path)
	}
	return s.execMigration(ctx, string(buf))
}

// execMigration substitutes schema placeholders and executes the statement
// batch in one call.
func (s *Store) execMigration(ctx context.Context, stmt string) error {
	stmt = strings.ReplaceAll(stmt, embeddingDimPlaceholder, fmt.Sprintf("%d", s.profile.EmbeddingDim))
	if _, err := s.driver.GetDB().ExecContext(ctx, stmt); err != nil {
		return err
	}
	return nil
}

// collectMigrationFiles returns the incremental migration files whose
// version lies in (currentVersion, targetVersion], sorted for application.
func (s *Store) collectMigrationFiles(currentVersion, targetVersion string) ([]string, error) {
	root := filepath.Join("migration", s.profile.Driver)
	files := []string{}
	err := fs.WalkDir(migrationFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == LatestSchemaFileName {
			return nil
		}
		fileVersion := filepath.Base(filepath.Dir(path))
		if version.IsVersionGreaterThan(fileVersion, currentVersion) &&
			version.IsVersionGreaterOrEqualThan(targetVersion, fileVersion) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to walk migration files")
	}
	sort.Strings(files)
	return files, nil
}

func (s *Store) getSchemaVersion(ctx context.Context) (string, error) {
	var value string
	row := s.driver.GetDB().QueryRowContext(ctx,
		"SELECT value FROM system_setting WHERE name = 'schema_version'")
	if err := row.Scan(&value); err != nil {
		// Initialized installations without a stamp predate version
		// tracking; treat them as the oldest schema.
		return "0.0.0", nil
	}
	return value, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, schemaVersion string) error {
	var stmt string
	switch s.profile.Driver {
	case "postgres":
		stmt = `
			INSERT INTO system_setting (name, value) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`
		_, err := s.driver.GetDB().ExecContext(ctx, stmt, schemaVersionSettingName, schemaVersion)
		return err
	default:
		stmt = `
			INSERT INTO system_setting (name, value) VALUES (?, ?)
			ON CONFLICT (name) DO UPDATE SET value = excluded.value`
		_, err := s.driver.GetDB().ExecContext(ctx, stmt, schemaVersionSettingName, schemaVersion)
		return err
	}
}
