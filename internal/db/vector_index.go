package db

import (
	"context"
	"fmt"
	"sort"

	"github.com/abdul-hamid-achik/fototeca/internal/embed"
)

// Match is one ranked result from a vector search: an item id with its
// cosine similarity to the query.
type Match struct {
	ID    int64
	Score float32
}

// VectorIndex ranks items by embedding similarity. The exhaustive index is
// exact and the default; the veclite index trades exactness for an HNSW
// lookup on large catalogs. Either way the top-n set and order are the same
// for non-tied scores.
type VectorIndex interface {
	// Add registers an item's embedding with the index.
	Add(id int64, embedding []float32) error

	// Remove drops an item from the index.
	Remove(id int64) error

	// Search returns the limit highest-scoring items, descending by score,
	// ties broken by ascending id.
	Search(ctx context.Context, embedding []float32, limit int) ([]Match, error)

	// Close releases index resources.
	Close() error

	// Type returns the index type name.
	Type() string
}

// VectorIndexType selects the ranking implementation.
type VectorIndexType string

const (
	// VectorIndexExhaustive scans every stored embedding. Exact.
	VectorIndexExhaustive VectorIndexType = "exhaustive"
	// VectorIndexVecLite uses a veclite HNSW index kept alongside the store.
	VectorIndexVecLite VectorIndexType = "veclite"
)

// NewVectorIndex creates the vector index of the given type. indexPath is
// only used by the veclite index.
func NewVectorIndex(indexType VectorIndexType, database *DB, indexPath string) (VectorIndex, error) {
	switch indexType {
	case VectorIndexVecLite:
		if indexPath == "" {
			return nil, fmt.Errorf("index path is required for the veclite index")
		}
		return newVecLiteIndex(indexPath, database.Dimensions())
	case VectorIndexExhaustive, "":
		return &exhaustiveIndex{db: database}, nil
	default:
		return nil, fmt.Errorf("unknown vector index type: %s", indexType)
	}
}

// exhaustiveIndex ranks by scanning every item embedding in the store.
// It holds no state of its own, so Add and Remove are no-ops.
type exhaustiveIndex struct {
	db *DB
}

func (x *exhaustiveIndex) Add(int64, []float32) error { return nil }
func (x *exhaustiveIndex) Remove(int64) error         { return nil }
func (x *exhaustiveIndex) Close() error               { return nil }
func (x *exhaustiveIndex) Type() string               { return string(VectorIndexExhaustive) }

func (x *exhaustiveIndex) Search(ctx context.Context, embedding []float32, limit int) ([]Match, error) {
	vecs, err := x.db.ItemEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("exhaustive search: %w", err)
	}

	matches := make([]Match, 0, len(vecs))
	for _, iv := range vecs {
		matches = append(matches, Match{
			ID:    iv.ID,
			Score: embed.Cosine(embedding, iv.Embedding),
		})
	}

	// ItemEmbeddings comes back in id order, so a stable sort by score
	// keeps ties in ascending id order.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
