package db

import (
	"context"
	"fmt"
)

// InsertTag persists a new tag and returns its id. A duplicate name yields
// ErrConflict.
func (db *DB) InsertTag(ctx context.Context, name string, embedding []float32) (int64, error) {
	if err := db.checkDimensions(embedding); err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		"INSERT INTO tags (name, embedding) VALUES (?, ?)",
		name, encodeVector(embedding),
	)
	if err != nil {
		return 0, fmt.Errorf("insert tag %s: %w", name, storeErr(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert tag %s: %w", name, err)
	}
	return id, nil
}

// GetTag returns the tag with the given id, embedding included.
func (db *DB) GetTag(ctx context.Context, id int64) (*Tag, error) {
	var tag Tag
	var blob []byte
	err := db.QueryRowContext(ctx,
		"SELECT id, name, embedding FROM tags WHERE id = ?", id,
	).Scan(&tag.ID, &tag.Name, &blob)
	if err != nil {
		return nil, fmt.Errorf("get tag %d: %w", id, storeErr(err))
	}

	if tag.Embedding, err = decodeVector(blob); err != nil {
		return nil, fmt.Errorf("get tag %d: %w", id, err)
	}
	return &tag, nil
}

// GetTagByName returns the tag with the given name.
func (db *DB) GetTagByName(ctx context.Context, name string) (*Tag, error) {
	var tag Tag
	var blob []byte
	err := db.QueryRowContext(ctx,
		"SELECT id, name, embedding FROM tags WHERE name = ?", name,
	).Scan(&tag.ID, &tag.Name, &blob)
	if err != nil {
		return nil, fmt.Errorf("get tag by name %s: %w", name, storeErr(err))
	}

	if tag.Embedding, err = decodeVector(blob); err != nil {
		return nil, fmt.Errorf("get tag by name %s: %w", name, err)
	}
	return &tag, nil
}

// ListTags returns every tag with its embedding, ordered by id. Tags are
// few, so the sweep over all of them carries embeddings along.
func (db *DB) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, name, embedding FROM tags ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		var blob []byte
		if err := rows.Scan(&tag.ID, &tag.Name, &blob); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		if tag.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag.ID, err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// ListTagIDs returns all tag ids ordered by id.
func (db *DB) ListTagIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, "SELECT id FROM tags ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list tag ids: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// DeleteTag removes a tag and every assignment referencing it in one
// transaction. Returns ErrNotFound if the tag does not exist.
func (db *DB) DeleteTag(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete tag %d: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM assignments WHERE tag_id = ?", id); err != nil {
		return fmt.Errorf("delete tag %d assignments: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete tag %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tag %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete tag %d: %w", id, ErrNotFound)
	}

	return tx.Commit()
}
