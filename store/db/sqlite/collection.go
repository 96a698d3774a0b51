package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/usesemdex/semdex/store"
)

func (d *DB) CreateCollection(ctx context.Context, create *store.Collection) (*store.Collection, error) {
	stmt := `
		INSERT INTO collections (uid, name, description)
		VALUES (?, ?, ?)
		RETURNING id, created_ts
	`
	err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.Name,
		create.Description,
	).Scan(&create.ID, &create.CreatedTs)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}
		return nil, errors.Wrap(err, "failed to create collection")
	}
	return create, nil
}

func (d *DB) ListCollections(ctx context.Context, find *store.FindCollection) ([]*store.Collection, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.Name != nil {
		where, args = append(where, "name = ?"), append(args, *find.Name)
	}

	query := `
		SELECT id, uid, name, description, created_ts
		FROM collections
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list collections")
	}
	defer rows.Close()

	list := []*store.Collection{}
	for rows.Next() {
		var collection store.Collection
		if err := rows.Scan(
			&collection.ID,
			&collection.UID,
			&collection.Name,
			&collection.Description,
			&collection.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan collection")
		}
		list = append(list, &collection)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteCollection removes the collection and all of its items. The item
// delete is explicit rather than relying on the FK cascade so the behavior
// does not depend on connection pragmas.
func (d *DB) DeleteCollection(ctx context.Context, id int32) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM items WHERE collection_id = ?", id); err != nil {
		return errors.Wrap(err, "failed to delete collection items")
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete collection")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
