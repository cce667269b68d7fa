package db

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Item is one cataloged media file.
type Item struct {
	ID        int64   `json:"id"`
	Path      string  `json:"path"`
	Timestamp float64 `json:"timestamp"`
	Embedding []float32 `json:"-"`
}

// Tag is a named semantic label with its own embedding.
type Tag struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Embedding []float32 `json:"-"`
}

// Assignment links one item to one tag.
type Assignment struct {
	ID     int64 `json:"id"`
	ItemID int64 `json:"item_id"`
	TagID  int64 `json:"tag_id"`
}

// ItemVector is an item's id paired with its embedding, used by the
// similarity sweeps that never need path or timestamp.
type ItemVector struct {
	ID        int64
	Embedding []float32
}

// encodeVector serializes an embedding as little-endian float32, the wire
// format the original catalog files used, kept for on-disk compatibility.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector deserializes a little-endian float32 blob.
func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

// checkDimensions rejects vectors that do not match the configured length.
func (db *DB) checkDimensions(vec []float32) error {
	if db.dimensions > 0 && len(vec) != db.dimensions {
		return fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(vec), db.dimensions)
	}
	return nil
}
