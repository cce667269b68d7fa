package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/fototeca/internal/db"
	"github.com/abdul-hamid-achik/fototeca/internal/embed"
)

// BootstrapTags is seeded into a freshly initialized catalog so auto-tagging
// has generic categories to work with from the first sync.
var BootstrapTags = []string{
	"person", "animal", "landscape", "winter", "spring", "summer",
	"autumn", "day", "night", "red", "orange", "yellow", "green",
	"blue", "purple", "brown", "black", "gray", "white",
}

// Service orchestrates the store, the embedding provider, the sync engine
// and the auto-tagger behind operation-level contracts. It owns validation
// and error semantics, and it is the only component that performs combined
// filesystem + store writes. Mutations serialize behind one writer lock;
// reads go straight to the store.
type Service struct {
	store    *db.DB
	provider embed.Provider
	index    db.VectorIndex
	tagger   *AutoTagger
	syncer   *Syncer
	root     string
	logger   *zap.Logger

	mu sync.Mutex
}

// New creates a Service rooted at the given library directory. A fresh
// catalog gets the bootstrap tag set seeded before the service is returned.
func New(ctx context.Context, store *db.DB, provider embed.Provider, index db.VectorIndex, root string, ignorePatterns []string, logger *zap.Logger) (*Service, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs library root: %w", err)
	}

	tagger := NewAutoTagger(store, logger)
	scanner := NewScanner(ignorePatterns)

	s := &Service{
		store:    store,
		provider: provider,
		index:    index,
		tagger:   tagger,
		syncer:   NewSyncer(store, provider, tagger, index, scanner, logger),
		root:     absRoot,
		logger:   logger,
	}

	if store.Fresh() {
		if err := s.seedBootstrapTags(ctx); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Root returns the library root directory.
func (s *Service) Root() string {
	return s.root
}

// seedBootstrapTags embeds and inserts the bootstrap tag set. There are no
// items yet on a fresh catalog, so no propagation is needed.
func (s *Service) seedBootstrapTags(ctx context.Context) error {
	for _, name := range BootstrapTags {
		vec, err := s.provider.EmbedText(ctx, name)
		if err != nil {
			return fmt.Errorf("seed tag %s: %w", name, err)
		}
		if _, err := s.store.InsertTag(ctx, name, vec); err != nil {
			return fmt.Errorf("seed tag %s: %w", name, err)
		}
	}
	s.logger.Info("seeded bootstrap tags", zap.Int("count", len(BootstrapTags)))
	return nil
}

// Sync runs one reconciliation pass over the library root.
func (s *Service) Sync(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncer.Sync(ctx, s.root)
}

// Reset drops the entire catalog and reinitializes it with the bootstrap
// tag set. Files on disk are untouched.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.store.ListItemIDs(ctx)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	for _, id := range ids {
		if err := s.index.Remove(id); err != nil {
			return fmt.Errorf("reset index: %w", err)
		}
	}

	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	return s.seedBootstrapTags(ctx)
}

// AddItem catalogs an uploaded file: validate, embed, write the file under
// the library root, persist the item, then auto-tag it. A timestamp of zero
// or less means "now"; an explicit timestamp takes precedence over file
// modification time. On a store failure after the disk write the file is
// removed again rather than left for the next sync pass to re-embed.
func (s *Service) AddItem(ctx context.Context, name string, data []byte, timestamp float64) (int64, error) {
	clean, err := SanitizeFilename(name)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("empty file: %w", ErrInvalidInput)
	}
	if timestamp <= 0 {
		timestamp = float64(time.Now().Unix())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dest := filepath.Join(s.root, clean)
	if _, err := s.store.GetItemByPath(ctx, dest); err == nil {
		return 0, fmt.Errorf("item %s: %w", dest, db.ErrConflict)
	} else if !errors.Is(err, db.ErrNotFound) {
		return 0, err
	}
	if _, err := os.Stat(dest); err == nil {
		return 0, fmt.Errorf("file %s: %w", dest, db.ErrConflict)
	}

	// Embed before touching disk or store; inference is the slow step and
	// must not sit inside the write.
	vec, err := s.provider.EmbedImage(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", clean, err)
	}

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}

	id, err := s.store.InsertItem(ctx, dest, timestamp, vec)
	if err != nil {
		if rmErr := os.Remove(dest); rmErr != nil {
			s.logger.Warn("orphaned upload left on disk",
				zap.String("path", dest), zap.Error(rmErr))
		}
		return 0, err
	}
	if err := s.index.Add(id, vec); err != nil {
		return 0, fmt.Errorf("index %s: %w", dest, err)
	}

	item := &db.Item{ID: id, Path: dest, Timestamp: timestamp, Embedding: vec}
	if _, err := s.tagger.PropagateNewItem(ctx, item); err != nil {
		return id, err
	}

	s.logger.Info("added item", zap.String("path", dest), zap.Int64("id", id))
	return id, nil
}

// DeleteItem destroys an item, its assignments, and its backing file.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	if err := s.index.Remove(id); err != nil {
		return fmt.Errorf("deindex item %d: %w", id, err)
	}

	if err := os.Remove(item.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("could not remove item file",
			zap.String("path", item.Path), zap.Error(err))
	}

	s.logger.Info("deleted item", zap.Int64("id", id), zap.String("path", item.Path))
	return nil
}

// AddTag creates a tag from a sanitized name, embeds it, and propagates it
// over every item. A duplicate name is a conflict.
func (s *Service) AddTag(ctx context.Context, name string) (int64, error) {
	clean, err := SanitizeTagName(name)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetTagByName(ctx, clean); err == nil {
		return 0, fmt.Errorf("tag %s: %w", clean, db.ErrConflict)
	} else if !errors.Is(err, db.ErrNotFound) {
		return 0, err
	}

	vec, err := s.provider.EmbedText(ctx, clean)
	if err != nil {
		return 0, fmt.Errorf("embed tag %s: %w", clean, err)
	}

	id, err := s.store.InsertTag(ctx, clean, vec)
	if err != nil {
		return 0, err
	}

	tag := &db.Tag{ID: id, Name: clean, Embedding: vec}
	if _, err := s.tagger.PropagateNewTag(ctx, tag); err != nil {
		return id, err
	}

	s.logger.Info("added tag", zap.String("name", clean), zap.Int64("id", id))
	return id, nil
}

// DeleteTag destroys a tag and every assignment referencing it.
func (s *Service) DeleteTag(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.DeleteTag(ctx, id)
}

// Assign links a tag to an item explicitly. Both must exist; a duplicate
// pair is a conflict.
func (s *Service) Assign(ctx context.Context, itemID, tagID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return err
	}
	if _, err := s.store.GetTag(ctx, tagID); err != nil {
		return err
	}

	_, err := s.store.InsertAssignment(ctx, itemID, tagID)
	return err
}

// Unassign removes the link between an item and a tag.
func (s *Service) Unassign(ctx context.Context, itemID, tagID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.DeleteAssignment(ctx, itemID, tagID)
}

// ItemInfo returns the item record for an id.
func (s *Service) ItemInfo(ctx context.Context, id int64) (*db.Item, error) {
	return s.store.GetItem(ctx, id)
}

// ItemTags returns every tag assigned to an item.
func (s *Service) ItemTags(ctx context.Context, id int64) ([]db.Tag, error) {
	if _, err := s.store.GetItem(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ItemTags(ctx, id)
}

// ItemData returns the raw bytes of an item's backing file. A missing file
// means the catalog and disk have drifted; the next sync pass reconciles it.
func (s *Service) ItemData(ctx context.Context, id int64) ([]byte, string, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(item.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("file for item %d: %w", id, db.ErrNotFound)
		}
		return nil, "", fmt.Errorf("read item %d: %w", id, err)
	}
	return data, item.Path, nil
}

// ListItemIDs returns every item id, newest-first.
func (s *Service) ListItemIDs(ctx context.Context) ([]int64, error) {
	return s.store.ListItemIDs(ctx)
}

// ListTagIDs returns every tag id.
func (s *Service) ListTagIDs(ctx context.Context) ([]int64, error) {
	return s.store.ListTagIDs(ctx)
}

// Tag returns the tag record for an id.
func (s *Service) Tag(ctx context.Context, id int64) (*db.Tag, error) {
	return s.store.GetTag(ctx, id)
}

// TagByName returns the tag record for a name.
func (s *Service) TagByName(ctx context.Context, name string) (*db.Tag, error) {
	return s.store.GetTagByName(ctx, name)
}

// Status describes the catalog's current size and configuration.
type Status struct {
	Items       int64  `json:"items"`
	Tags        int64  `json:"tags"`
	Assignments int64  `json:"assignments"`
	Model       string `json:"model"`
	IndexType   string `json:"index_type"`
	Root        string `json:"root"`
}

// Stats returns catalog statistics.
func (s *Service) Stats(ctx context.Context) (*Status, error) {
	items, tags, assignments, err := s.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Items:       items,
		Tags:        tags,
		Assignments: assignments,
		Model:       s.provider.Model(),
		IndexType:   s.index.Type(),
		Root:        s.root,
	}, nil
}
