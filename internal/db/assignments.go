package db

import (
	"context"
	"fmt"
)

// InsertAssignment links a tag to an item. A duplicate (item, tag) pair
// yields ErrConflict; a dangling item or tag reference yields ErrNotFound.
func (db *DB) InsertAssignment(ctx context.Context, itemID, tagID int64) (int64, error) {
	res, err := db.ExecContext(ctx,
		"INSERT INTO assignments (item_id, tag_id) VALUES (?, ?)",
		itemID, tagID,
	)
	if err != nil {
		return 0, fmt.Errorf("assign tag %d to item %d: %w", tagID, itemID, storeErr(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("assign tag %d to item %d: %w", tagID, itemID, err)
	}
	return id, nil
}

// EnsureAssignment links a tag to an item, treating an existing link as
// success. Directory-derived assignments go through here: placement is an
// explicit signal, so a pre-existing auto-assignment is not a conflict.
func (db *DB) EnsureAssignment(ctx context.Context, itemID, tagID int64) error {
	_, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO assignments (item_id, tag_id) VALUES (?, ?)",
		itemID, tagID,
	)
	if err != nil {
		return fmt.Errorf("ensure tag %d on item %d: %w", tagID, itemID, storeErr(err))
	}
	return nil
}

// DeleteAssignment removes the link between an item and a tag. Returns
// ErrNotFound if no such assignment exists.
func (db *DB) DeleteAssignment(ctx context.Context, itemID, tagID int64) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM assignments WHERE item_id = ? AND tag_id = ?",
		itemID, tagID,
	)
	if err != nil {
		return fmt.Errorf("unassign tag %d from item %d: %w", tagID, itemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unassign tag %d from item %d: %w", tagID, itemID, err)
	}
	if n == 0 {
		return fmt.Errorf("unassign tag %d from item %d: %w", tagID, itemID, ErrNotFound)
	}
	return nil
}

// HasAssignment reports whether the (item, tag) link exists.
func (db *DB) HasAssignment(ctx context.Context, itemID, tagID int64) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM assignments WHERE item_id = ? AND tag_id = ?",
		itemID, tagID,
	).Scan(&one)
	if err != nil {
		if storeErr(err) == ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("check assignment: %w", err)
	}
	return true, nil
}

// ItemTags returns every tag assigned to the given item, ordered by tag id.
func (db *DB) ItemTags(ctx context.Context, itemID int64) ([]Tag, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT t.id, t.name, t.embedding
		FROM tags t
		JOIN assignments a ON t.id = a.tag_id
		WHERE a.item_id = ?
		ORDER BY t.id ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("item %d tags: %w", itemID, err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		var blob []byte
		if err := rows.Scan(&tag.ID, &tag.Name, &blob); err != nil {
			return nil, fmt.Errorf("scan item tag: %w", err)
		}
		if tag.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag.ID, err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// AssignedTagIDs returns the ids of tags already assigned to an item.
func (db *DB) AssignedTagIDs(ctx context.Context, itemID int64) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT tag_id FROM assignments WHERE item_id = ?", itemID)
	if err != nil {
		return nil, fmt.Errorf("assigned tag ids for item %d: %w", itemID, err)
	}
	defer rows.Close()

	return scanIDSet(rows)
}

// AssignedItemIDs returns the ids of items the given tag is assigned to.
func (db *DB) AssignedItemIDs(ctx context.Context, tagID int64) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT item_id FROM assignments WHERE tag_id = ?", tagID)
	if err != nil {
		return nil, fmt.Errorf("assigned item ids for tag %d: %w", tagID, err)
	}
	defer rows.Close()

	return scanIDSet(rows)
}
