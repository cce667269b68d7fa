package db

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/abdul-hamid-achik/veclite"
)

// VecLitePath returns the veclite index file path inside the data directory.
func VecLitePath(dataDir string) string {
	return filepath.Join(dataDir, "index.veclite")
}

// vecLiteIndex keeps item embeddings in a veclite HNSW collection so best
// queries skip the full scan. SQLite stays the source of truth; this index
// is derived data and can be rebuilt from the items table.
type vecLiteIndex struct {
	db   *veclite.DB
	coll *veclite.Collection
}

func newVecLiteIndex(path string, dimensions int) (*vecLiteIndex, error) {
	vdb, err := veclite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open veclite index: %w", err)
	}

	coll, err := vdb.CreateCollection("items",
		veclite.WithDimension(dimensions),
		veclite.WithDistanceType(veclite.DistanceCosine),
		veclite.WithHNSW(16, 200),
	)
	if err != nil {
		// Collection may already exist from a previous run.
		coll, err = vdb.GetCollection("items")
		if err != nil {
			_ = vdb.Close()
			return nil, fmt.Errorf("create/get items collection: %w", err)
		}
	}

	return &vecLiteIndex{db: vdb, coll: coll}, nil
}

func (x *vecLiteIndex) Add(id int64, embedding []float32) error {
	if _, err := x.coll.Insert(embedding, map[string]any{"item_id": id}); err != nil {
		return fmt.Errorf("veclite insert item %d: %w", id, err)
	}
	return nil
}

func (x *vecLiteIndex) Remove(id int64) error {
	if _, err := x.coll.DeleteWhere(veclite.Equal("item_id", id)); err != nil {
		return fmt.Errorf("veclite delete item %d: %w", id, err)
	}
	return nil
}

func (x *vecLiteIndex) Search(_ context.Context, embedding []float32, limit int) ([]Match, error) {
	results, err := x.coll.Search(embedding, veclite.TopK(limit))
	if err != nil {
		return nil, fmt.Errorf("veclite search: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		id, ok := r.Record.Payload["item_id"]
		if !ok {
			continue
		}
		itemID, ok := payloadInt64(id)
		if !ok {
			continue
		}
		matches = append(matches, Match{ID: itemID, Score: r.Score})
	}
	return matches, nil
}

func (x *vecLiteIndex) Close() error {
	return x.db.Close()
}

func (x *vecLiteIndex) Type() string {
	return string(VectorIndexVecLite)
}

// payloadInt64 normalizes the numeric types veclite may hand back for a
// payload value.
func payloadInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
