package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/usesemdex/semdex/store"
)

// UpsertItem inserts or replaces an item keyed by (collection_id, id). The
// insertion sequence survives replacement so score ties keep the original
// insertion order.
func (d *DB) UpsertItem(ctx context.Context, upsert *store.Item) (*store.Item, error) {
	var metadata any
	if len(upsert.Metadata) > 0 {
		metadata = string(upsert.Metadata)
	}

	stmt := `
		INSERT INTO items (id, collection_id, text, metadata, embedding, created_ts, updated_ts)
		VALUES (` + placeholders(7) + `)
		ON CONFLICT (collection_id, id)
		DO UPDATE SET
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING seq, created_ts, updated_ts
	`
	vector := pgvector.NewVector(upsert.Embedding)
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.ID,
		upsert.CollectionID,
		upsert.Text,
		metadata,
		vector,
		upsert.CreatedTs,
		upsert.UpdatedTs,
	).Scan(&upsert.Seq, &upsert.CreatedTs, &upsert.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert item")
	}
	return upsert, nil
}

func (d *DB) ListItems(ctx context.Context, find *store.FindItem) ([]*store.Item, error) {
	where, args := []string{"collection_id = $1"}, []any{find.CollectionID}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}

	query := `
		SELECT seq, id, collection_id, text, metadata, embedding, created_ts, updated_ts
		FROM items
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq
	`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET " + placeholder(len(args)+1)
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
		var item store.Item
		var metadata sql.NullString
		var vector pgvector.Vector
		if err := rows.Scan(
			&item.Seq,
			&item.ID,
			&item.CollectionID,
			&item.Text,
			&metadata,
			&vector,
			&item.CreatedTs,
			&item.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan item")
		}
		if metadata.Valid && metadata.String != "" {
			item.Metadata = json.RawMessage(metadata.String)
		}
		item.Embedding = vector.Slice()
		list = append(list, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteItem(ctx context.Context, collectionID int32, itemID string) error {
	result, err := d.db.ExecContext(ctx,
		"DELETE FROM items WHERE collection_id = $1 AND id = $2", collectionID, itemID)
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
		"SELECT COUNT(*) FROM items WHERE collection_id = $1", collectionID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count items")
	}
	return count, nil
}

// SearchItems performs similarity search using pgvector. The <=> operator
// computes cosine distance (1 - cosine similarity); ordering by distance
// ascending with seq as the tie-break keeps results deterministic.
func (d *DB) SearchItems(ctx context.Context, opts *store.SearchItemsOptions) ([]*store.ItemWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT
			seq, id, collection_id, text, metadata, embedding, created_ts, updated_ts,
			1 - (embedding <=> $1) AS score
		FROM items
		WHERE collection_id = $2
		ORDER BY embedding <=> $1, seq
		LIMIT $3
	`
	vector := pgvector.NewVector(opts.Vector)
	rows, err := d.db.QueryContext(ctx, query, vector, opts.CollectionID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search items")
	}
	defer rows.Close()

	results := []*store.ItemWithScore{}
	for rows.Next() {
		var item store.Item
		var metadata sql.NullString
		var itemVector pgvector.Vector
		var score float64
		if err := rows.Scan(
			&item.Seq,
			&item.ID,
			&item.CollectionID,
			&item.Text,
			&metadata,
			&itemVector,
			&item.CreatedTs,
			&item.UpdatedTs,
			&score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan search result")
		}
		if metadata.Valid && metadata.String != "" {
			item.Metadata = json.RawMessage(metadata.String)
		}
		item.Embedding = itemVector.Slice()
		results = append(results, &store.ItemWithScore{Item: &item, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
