package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/fototeca/internal/db"
	"github.com/abdul-hamid-achik/fototeca/internal/embed"
)

// SyncResult summarizes one reconciliation pass between the filesystem and
// the catalog.
type SyncResult struct {
	Scanned int     `json:"scanned"`
	Added   int     `json:"added"`
	Removed int     `json:"removed"`
	Errors  []error `json:"-"`
}

// Syncer reconciles filesystem scanner output against the catalog store.
type Syncer struct {
	store    *db.DB
	provider embed.Provider
	tagger   *AutoTagger
	index    db.VectorIndex
	scanner  *Scanner
	logger   *zap.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(store *db.DB, provider embed.Provider, tagger *AutoTagger, index db.VectorIndex, scanner *Scanner, logger *zap.Logger) *Syncer {
	return &Syncer{
		store:    store,
		provider: provider,
		tagger:   tagger,
		index:    index,
		scanner:  scanner,
		logger:   logger,
	}
}

// Sync runs one reconciliation pass over root. New eligible files become
// items (embedded, auto-tagged, directory tags derived and assigned);
// items whose backing file vanished are destroyed with their assignments.
// Re-running with no filesystem change performs no writes. A failure on
// one file is logged and skipped, never aborting the pass; each file's add
// is transactionally complete before the loop advances, so interruption
// leaves a consistent catalog.
func (s *Syncer) Sync(ctx context.Context, root string) (*SyncResult, error) {
	files, err := s.scanner.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	existing, err := s.store.ItemPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog paths: %w", err)
	}

	result := &SyncResult{Scanned: len(files)}

	seen := make(map[string]bool, len(files))
	for _, file := range files {
		seen[file.Path] = true

		if _, ok := existing[file.Path]; ok {
			continue
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := s.addFile(ctx, file); err != nil {
			s.logger.Warn("skipping file",
				zap.String("path", file.Path),
				zap.Error(err))
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", file.Path, err))
			continue
		}
		result.Added++
	}

	for path, id := range existing {
		if seen[path] {
			continue
		}
		if err := s.store.DeleteItem(ctx, id); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		if err := s.index.Remove(id); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("deindex %s: %w", path, err))
		}
		s.logger.Info("removed vanished item", zap.String("path", path), zap.Int64("id", id))
		result.Removed++
	}

	s.logger.Info("sync pass complete",
		zap.Int("scanned", result.Scanned),
		zap.Int("added", result.Added),
		zap.Int("removed", result.Removed),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// addFile catalogs one newly discovered file: embed (outside any store
// transaction), persist, auto-tag, then derive and assign directory tags.
func (s *Syncer) addFile(ctx context.Context, file File) error {
	info, err := os.Stat(file.Path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	timestamp := float64(info.ModTime().Unix())

	data, err := os.ReadFile(file.Path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	vec, err := s.provider.EmbedImage(ctx, data)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	id, err := s.store.InsertItem(ctx, file.Path, timestamp, vec)
	if err != nil {
		return err
	}
	if err := s.index.Add(id, vec); err != nil {
		return fmt.Errorf("index: %w", err)
	}

	item := &db.Item{ID: id, Path: file.Path, Timestamp: timestamp, Embedding: vec}
	if _, err := s.tagger.PropagateNewItem(ctx, item); err != nil {
		return err
	}

	s.logger.Info("added item", zap.String("path", file.Path), zap.Int64("id", id))

	// Directory placement is an explicit signal: these tags attach
	// regardless of similarity score.
	for _, dir := range file.Dirs {
		tag, err := s.ensureTag(ctx, dir)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				continue
			}
			return err
		}
		if err := s.store.EnsureAssignment(ctx, id, tag.ID); err != nil {
			return err
		}
	}

	return nil
}

// ensureTag returns the tag with the given (sanitized) name, creating it
// and propagating it over all items when missing.
func (s *Syncer) ensureTag(ctx context.Context, name string) (*db.Tag, error) {
	clean, err := SanitizeTagName(name)
	if err != nil {
		return nil, err
	}

	tag, err := s.store.GetTagByName(ctx, clean)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	vec, err := s.provider.EmbedText(ctx, clean)
	if err != nil {
		return nil, fmt.Errorf("embed tag %s: %w", clean, err)
	}

	id, err := s.store.InsertTag(ctx, clean, vec)
	if err != nil {
		return nil, err
	}

	tag = &db.Tag{ID: id, Name: clean, Embedding: vec}
	s.logger.Info("created directory tag", zap.String("name", clean), zap.Int64("id", id))

	if _, err := s.tagger.PropagateNewTag(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}
