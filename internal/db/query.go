package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// FilterItems returns every item assigned to all of the given tags,
// newest-first. An empty tag list means every item.
func (db *DB) FilterItems(ctx context.Context, tagIDs []int64) ([]Item, error) {
	if len(tagIDs) == 0 {
		return db.ListItems(ctx)
	}

	query := fmt.Sprintf(`
		SELECT i.id, i.path, i.timestamp
		FROM items i
		JOIN assignments a ON i.id = a.item_id
		WHERE a.tag_id IN (%s)
		GROUP BY i.id
		HAVING COUNT(DISTINCT a.tag_id) = ?
		ORDER BY i.timestamp DESC, i.id ASC`, placeholders(len(tagIDs)))

	rows, err := db.QueryContext(ctx, query, idArgs(tagIDs, int64(len(tagIDs)))...)
	if err != nil {
		return nil, fmt.Errorf("filter items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ItemsFrom returns up to n items whose timestamp is at or after (ascending)
// or at or before (descending) the given pivot timestamp, restricted to
// items carrying all of tagIDs.
func (db *DB) ItemsFrom(ctx context.Context, timestamp float64, tagIDs []int64, n int, ascending bool) ([]Item, error) {
	comp, order := "<=", "DESC"
	if ascending {
		comp, order = ">=", "ASC"
	}

	var rows *sql.Rows
	var err error
	if len(tagIDs) == 0 {
		query := fmt.Sprintf(`
			SELECT id, path, timestamp
			FROM items
			WHERE timestamp %s ?
			ORDER BY timestamp %s, id ASC
			LIMIT ?`, comp, order)
		rows, err = db.QueryContext(ctx, query, timestamp, n)
	} else {
		query := fmt.Sprintf(`
			SELECT i.id, i.path, i.timestamp
			FROM items i
			JOIN assignments a ON i.id = a.item_id
			WHERE a.tag_id IN (%s) AND i.timestamp %s ?
			GROUP BY i.id
			HAVING COUNT(DISTINCT a.tag_id) = ?
			ORDER BY i.timestamp %s, i.id ASC
			LIMIT ?`, placeholders(len(tagIDs)), comp, order)
		rows, err = db.QueryContext(ctx, query, idArgs(tagIDs, timestamp, int64(len(tagIDs)), n)...)
	}
	if err != nil {
		return nil, fmt.Errorf("items from %f: %w", timestamp, err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ClosestItem returns the item whose timestamp is nearest to the given one.
// Equidistant neighbors tie-break on the lowest id so the answer is stable
// across runs. Returns ErrNotFound on an empty catalog.
func (db *DB) ClosestItem(ctx context.Context, timestamp float64) (*Item, error) {
	var item Item
	err := db.QueryRowContext(ctx, `
		SELECT id, path, timestamp
		FROM items
		ORDER BY ABS(timestamp - ?) ASC, id ASC
		LIMIT 1`, timestamp,
	).Scan(&item.ID, &item.Path, &item.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("closest item to %f: %w", timestamp, storeErr(err))
	}
	return &item, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// idArgs flattens tag ids plus trailing arguments into a query arg slice.
func idArgs(tagIDs []int64, rest ...any) []any {
	args := make([]any, 0, len(tagIDs)+len(rest))
	for _, id := range tagIDs {
		args = append(args, id)
	}
	return append(args, rest...)
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Path, &item.Timestamp); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanIDSet(rows *sql.Rows) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}
