package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/fototeca/internal/db"
	"github.com/abdul-hamid-achik/fototeca/internal/embed"
)

// MinSimScore is the cosine similarity a (item, tag) pair must exceed for
// an automatic assignment.
const MinSimScore float32 = 0.25

// AutoTagger creates assignments by thresholded embedding similarity.
// Embeddings are read from the store, never recomputed; the sweep runs
// outside any write lock, only the per-pair insert transacts.
type AutoTagger struct {
	store     *db.DB
	threshold float32
	logger    *zap.Logger
}

// NewAutoTagger creates an AutoTagger with the default threshold.
func NewAutoTagger(store *db.DB, logger *zap.Logger) *AutoTagger {
	return &AutoTagger{
		store:     store,
		threshold: MinSimScore,
		logger:    logger,
	}
}

// PropagateNewItem sweeps every existing tag against a new item's embedding
// and assigns each tag scoring above the threshold. Returns the assigned
// tag ids.
func (t *AutoTagger) PropagateNewItem(ctx context.Context, item *db.Item) ([]int64, error) {
	tags, err := t.store.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("propagate item %d: %w", item.ID, err)
	}

	assigned, err := t.store.AssignedTagIDs(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("propagate item %d: %w", item.ID, err)
	}

	var assignedIDs []int64
	for _, tag := range tags {
		if assigned[tag.ID] {
			continue
		}

		score := embed.Cosine(item.Embedding, tag.Embedding)
		if score <= t.threshold {
			continue
		}

		if _, err := t.store.InsertAssignment(ctx, item.ID, tag.ID); err != nil {
			if errors.Is(err, db.ErrConflict) {
				continue
			}
			return assignedIDs, fmt.Errorf("propagate item %d: %w", item.ID, err)
		}

		t.logger.Debug("auto-assigned tag to item",
			zap.Int64("item_id", item.ID),
			zap.String("tag", tag.Name),
			zap.Float32("score", score))
		assignedIDs = append(assignedIDs, tag.ID)
	}

	return assignedIDs, nil
}

// PropagateNewTag sweeps every existing item against a new tag's embedding
// and assigns the tag to each item scoring above the threshold. Returns the
// assigned item ids.
func (t *AutoTagger) PropagateNewTag(ctx context.Context, tag *db.Tag) ([]int64, error) {
	items, err := t.store.ItemEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("propagate tag %d: %w", tag.ID, err)
	}

	assigned, err := t.store.AssignedItemIDs(ctx, tag.ID)
	if err != nil {
		return nil, fmt.Errorf("propagate tag %d: %w", tag.ID, err)
	}

	var assignedIDs []int64
	for _, item := range items {
		if assigned[item.ID] {
			continue
		}

		score := embed.Cosine(tag.Embedding, item.Embedding)
		if score <= t.threshold {
			continue
		}

		if _, err := t.store.InsertAssignment(ctx, item.ID, tag.ID); err != nil {
			if errors.Is(err, db.ErrConflict) {
				continue
			}
			return assignedIDs, fmt.Errorf("propagate tag %d: %w", tag.ID, err)
		}

		t.logger.Debug("auto-assigned tag to item",
			zap.Int64("item_id", item.ID),
			zap.String("tag", tag.Name),
			zap.Float32("score", score))
		assignedIDs = append(assignedIDs, item.ID)
	}

	return assignedIDs, nil
}
