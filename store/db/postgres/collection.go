package postgres

import (
	"context"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/usesemdex/semdex/store"
)

func (d *DB) CreateCollection(ctx context.Context, create *store.Collection) (*store.Collection, error) {
	stmt := `
		INSERT INTO collections (uid, name, description)
		VALUES ($1, $2, $3)
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
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.Name != nil {
		where, args = append(where, "name = "+placeholder(len(args)+1)), append(args, *find.Name)
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

// DeleteCollection removes the collection; items go with it via the FK
// cascade declared in the schema.
func (d *DB) DeleteCollection(ctx context.Context, id int32) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM collections WHERE id = $1", id)
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
	return nil
}

// isUniqueViolation reports whether err is a postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
