// Package db implements the catalog store on SQLite: items, tags and the
// assignments linking them, with embeddings persisted as raw float32 blobs.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Sentinel errors surfaced by store operations. Callers match with errors.Is.
var (
	// ErrNotFound indicates the referenced item, tag or assignment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation: duplicate item path,
	// duplicate tag name, or duplicate (item, tag) assignment.
	ErrConflict = errors.New("already exists")
)

// DB wraps the SQLite connection for the catalog store.
type DB struct {
	*sql.DB
	dimensions int
	fresh      bool
}

// Open opens the catalog database at path and initializes the schema.
// dimensions is the expected embedding vector length; writes with a
// different length are rejected.
func Open(path string, dimensions int) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// WAL keeps read queries open while a sync pass writes.
	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	db := &DB{DB: sqlDB, dimensions: dimensions}

	fresh, err := db.initSchema()
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	db.fresh = fresh

	return db, nil
}

// initSchema applies the schema and reports whether the items table was
// missing beforehand, which marks a freshly created catalog.
func (db *DB) initSchema() (bool, error) {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'items'",
	).Scan(&name)
	existed := err == nil
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("check schema: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return false, fmt.Errorf("create schema: %w", err)
	}

	return !existed, nil
}

// Fresh reports whether Open created the catalog tables from scratch.
// A fresh catalog gets the bootstrap tag set seeded by the service layer.
func (db *DB) Fresh() bool {
	return db.fresh
}

// Dimensions returns the configured embedding vector length.
func (db *DB) Dimensions() int {
	return db.dimensions
}

// Reset drops all catalog tables and recreates them empty. After Reset the
// database reports Fresh again so bootstrap tags get reseeded.
func (db *DB) Reset(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"assignments", "items", "tags"} {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("recreate schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}

	db.fresh = true
	return nil
}

// Counts returns the number of rows per entity kind.
func (db *DB) Counts(ctx context.Context) (items, tags, assignments int64, err error) {
	if err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&items); err != nil {
		return 0, 0, 0, fmt.Errorf("count items: %w", err)
	}
	if err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags").Scan(&tags); err != nil {
		return 0, 0, 0, fmt.Errorf("count tags: %w", err)
	}
	if err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assignments").Scan(&assignments); err != nil {
		return 0, 0, 0, fmt.Errorf("count assignments: %w", err)
	}
	return items, tags, assignments, nil
}

// storeErr translates driver-level failures into the store's sentinel errors.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ErrConflict
		case sqlite3.ErrConstraintForeignKey:
			return ErrNotFound
		}
	}
	return err
}
