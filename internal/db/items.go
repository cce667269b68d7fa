package db

import (
	"context"
	"fmt"
)

// InsertItem persists a new item and returns its id. A duplicate path
// yields ErrConflict.
func (db *DB) InsertItem(ctx context.Context, path string, timestamp float64, embedding []float32) (int64, error) {
	if err := db.checkDimensions(embedding); err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		"INSERT INTO items (path, timestamp, embedding) VALUES (?, ?, ?)",
		path, timestamp, encodeVector(embedding),
	)
	if err != nil {
		return 0, fmt.Errorf("insert item %s: %w", path, storeErr(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert item %s: %w", path, err)
	}
	return id, nil
}

// GetItem returns the item with the given id, embedding included.
func (db *DB) GetItem(ctx context.Context, id int64) (*Item, error) {
	var item Item
	var blob []byte
	err := db.QueryRowContext(ctx,
		"SELECT id, path, timestamp, embedding FROM items WHERE id = ?", id,
	).Scan(&item.ID, &item.Path, &item.Timestamp, &blob)
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, storeErr(err))
	}

	if item.Embedding, err = decodeVector(blob); err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return &item, nil
}

// GetItemByPath returns the item with the given canonical path.
func (db *DB) GetItemByPath(ctx context.Context, path string) (*Item, error) {
	var item Item
	var blob []byte
	err := db.QueryRowContext(ctx,
		"SELECT id, path, timestamp, embedding FROM items WHERE path = ?", path,
	).Scan(&item.ID, &item.Path, &item.Timestamp, &blob)
	if err != nil {
		return nil, fmt.Errorf("get item by path %s: %w", path, storeErr(err))
	}

	if item.Embedding, err = decodeVector(blob); err != nil {
		return nil, fmt.Errorf("get item by path %s: %w", path, err)
	}
	return &item, nil
}

// ListItems returns all items newest-first, without embeddings.
func (db *DB) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, path, timestamp FROM items ORDER BY timestamp DESC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListItemIDs returns all item ids newest-first.
func (db *DB) ListItemIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id FROM items ORDER BY timestamp DESC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list item ids: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// ItemPaths returns a path -> id map of every cataloged item, used by the
// sync engine to diff the catalog against the filesystem.
func (db *DB) ItemPaths(ctx context.Context) (map[string]int64, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, path FROM items")
	if err != nil {
		return nil, fmt.Errorf("item paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]int64)
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, fmt.Errorf("scan item path: %w", err)
		}
		paths[path] = id
	}
	return paths, rows.Err()
}

// ItemEmbeddings returns every item's id and embedding, ordered by id.
// This feeds similarity sweeps; embeddings are read from storage, never
// recomputed.
func (db *DB) ItemEmbeddings(ctx context.Context) ([]ItemVector, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, embedding FROM items ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("item embeddings: %w", err)
	}
	defer rows.Close()

	var vecs []ItemVector
	for rows.Next() {
		var iv ItemVector
		var blob []byte
		if err := rows.Scan(&iv.ID, &blob); err != nil {
			return nil, fmt.Errorf("scan item embedding: %w", err)
		}
		if iv.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("item %d: %w", iv.ID, err)
		}
		vecs = append(vecs, iv)
	}
	return vecs, rows.Err()
}

// DeleteItem removes an item and every assignment referencing it in one
// transaction. Returns ErrNotFound if the item does not exist.
func (db *DB) DeleteItem(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM assignments WHERE item_id = ?", id); err != nil {
		return fmt.Errorf("delete item %d assignments: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete item %d: %w", id, ErrNotFound)
	}

	return tx.Commit()
}
