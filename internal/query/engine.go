// Package query answers the catalog's read operations: tag-intersection
// filtering, chronological windowing, nearest-timestamp lookup, and
// embedding-ranked search.
package query

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/fototeca/internal/catalog"
	"github.com/abdul-hamid-achik/fototeca/internal/db"
	"github.com/abdul-hamid-achik/fototeca/internal/embed"
)

// Scored pairs an item with its similarity score against a prompt.
type Scored struct {
	Score float32 `json:"score"`
	Item  db.Item `json:"item"`
}

// Engine executes read queries against the catalog.
type Engine struct {
	store    *db.DB
	provider embed.Provider
	index    db.VectorIndex
}

// NewEngine creates an Engine.
func NewEngine(store *db.DB, provider embed.Provider, index db.VectorIndex) *Engine {
	return &Engine{
		store:    store,
		provider: provider,
		index:    index,
	}
}

// Filter returns every item assigned to all of the given tags,
// newest-first. An empty tag list means every item, not none.
func (e *Engine) Filter(ctx context.Context, tagIDs []int64) ([]db.Item, error) {
	return e.store.FilterItems(ctx, tagIDs)
}

// Around returns a chronological window of up to 2n-1 items spanning
// before -> pivot -> after, ascending by timestamp, each half filtered by
// the same tag-intersection rule. The pivot appears once even though both
// halves contain it.
func (e *Engine) Around(ctx context.Context, itemID int64, tagIDs []int64, n int) ([]db.Item, error) {
	if n <= 0 {
		return nil, fmt.Errorf("window size %d: %w", n, catalog.ErrInvalidInput)
	}

	pivot, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	before, err := e.store.ItemsFrom(ctx, pivot.Timestamp, tagIDs, n, false)
	if err != nil {
		return nil, err
	}
	after, err := e.store.ItemsFrom(ctx, pivot.Timestamp, tagIDs, n, true)
	if err != nil {
		return nil, err
	}

	window := make([]db.Item, 0, len(before)+len(after))
	seen := make(map[int64]bool, len(before)+len(after))

	// The before half came back newest-first; reverse it into ascending
	// order, then append the after half, dropping anything (the pivot, or
	// equal-timestamp neighbors) already included.
	for i := len(before) - 1; i >= 0; i-- {
		if !seen[before[i].ID] {
			seen[before[i].ID] = true
			window = append(window, before[i])
		}
	}
	for _, item := range after {
		if !seen[item.ID] {
			seen[item.ID] = true
			window = append(window, item)
		}
	}

	return window, nil
}

// Closest returns the single item nearest to the given timestamp,
// tie-breaking on the lowest id.
func (e *Engine) Closest(ctx context.Context, timestamp float64) (*db.Item, error) {
	return e.store.ClosestItem(ctx, timestamp)
}

// Best embeds the prompt and returns the n highest-scoring items,
// descending by cosine similarity, ties broken by ascending id.
func (e *Engine) Best(ctx context.Context, prompt string, n int) ([]Scored, error) {
	if prompt == "" {
		return nil, fmt.Errorf("empty prompt: %w", catalog.ErrInvalidInput)
	}
	if n <= 0 {
		return nil, fmt.Errorf("result count %d: %w", n, catalog.ErrInvalidInput)
	}

	vec, err := e.provider.EmbedText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("embed prompt: %w", err)
	}

	matches, err := e.index.Search(ctx, vec, n)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]Scored, 0, len(matches))
	for _, m := range matches {
		item, err := e.store.GetItem(ctx, m.ID)
		if err != nil {
			// Index and store can briefly disagree mid-delete; skip.
			continue
		}
		results = append(results, Scored{Score: m.Score, Item: *item})
	}
	return results, nil
}
