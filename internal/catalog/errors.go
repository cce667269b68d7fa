// Package catalog implements the sync engine, auto-tagger and catalog
// service that keep the media catalog consistent with the filesystem and
// with the embedding model's view of it.
package catalog

import "errors"

// ErrInvalidInput indicates input rejected by validation before any side
// effect: an empty or unsanitizable tag name, an unsupported file type, or
// a missing filename. Storage-level kinds (not found, conflict) come from
// the db package.
var ErrInvalidInput = errors.New("invalid input")
