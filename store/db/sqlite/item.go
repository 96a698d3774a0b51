package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/usesemdex/semdex/store"
)

// UpsertItem inserts or replaces an item keyed by (collection_id, id). The
// insertion sequence survives replacement so score ties keep the original
// insertion order.
func (d *DB) UpsertItem(ctx context.Context, upsert *store.Item) (*store.Item, error) {
	embedding, err := json.Marshal(upsert.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode embedding")
	}
	var metadata any
	if len(upsert.Metadata) > 0 {
		metadata = string(upsert.Metadata)
	}

	stmt := `
		INSERT INTO items (id, collection_id, text, metadata, embedding, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection_id, id)
		DO UPDATE SET
			text = excluded.text,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_ts = excluded.updated_ts
		RETURNING seq, created_ts, updated_ts
	`
	err = d.db.QueryRowContext(ctx, stmt,
		upsert.ID,
		upsert.CollectionID,
		upsert.Text,
		metadata,
		string(embedding),
		upsert.CreatedTs,
		upsert.UpdatedTs,
	).Scan(&upsert.Seq, &upsert.CreatedTs, &upsert.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert item")
	}
	return upsert, nil
}

func (d *DB) ListItems(ctx context.Context, find *store.FindItem) ([]*store.Item, error) {
	where, args := []string{"collection_id = ?"}, []any{find.CollectionID}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}

	query := `
		SELECT seq, id, collection_id, text, metadata, embedding, created_ts, updated_ts
		FROM items
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq
	`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET ?"
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list items")
	}
	defer rows.Close()

	list := []*store.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteItem(ctx context.Context, collectionID int32, itemID string) error {
	result, err := d.db.ExecContext(ctx,
		"DELETE FROM items WHERE collection_id = ? AND id = ?", collectionID, itemID)
	if err != nil {
		return errors.Wrap(err, "failed to delete item")
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

func (d *DB) CountItems(ctx context.Context, collectionID int32) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM items WHERE collection_id = ?", collectionID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count items")
	}
	return count, nil
}

func scanItem(rows *sql.Rows) (*store.Item, error) {
	var item store.Item
	var metadata sql.NullString
	var embedding string
	if err := rows.Scan(
		&item.Seq,
		&item.ID,
		&item.CollectionID,
		&item.Text,
		&metadata,
		&embedding,
		&item.CreatedTs,
		&item.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to scan item")
	}
	if metadata.Valid && metadata.String != "" {
		item.Metadata = json.RawMessage(metadata.String)
	}
	if err := json.Unmarshal([]byte(embedding), &item.Embedding); err != nil {
		return nil, errors.Wrap(err, "failed to decode embedding")
	}
	return &item, nil
}
