package catalog

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// imageExtensions is the allow-list for catalog membership. Non-matching
// files are skipped during sync, not errored.
var imageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"jfif": true,
	"png":  true,
	"bmp":  true,
	"gif":  true,
}

var (
	tagNameStrip  = regexp.MustCompile(`[^\w\s\-'.,&()]`)
	fileNameStrip = regexp.MustCompile(`[^\w\-. ]`)
)

// AllowedExtension reports whether the filename carries an image extension
// from the allow-list, case-insensitive.
func AllowedExtension(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return imageExtensions[ext]
}

// SanitizeTagName strips characters outside the word/punctuation whitelist
// and trims whitespace. An empty result is ErrInvalidInput.
func SanitizeTagName(name string) (string, error) {
	clean := strings.TrimSpace(tagNameStrip.ReplaceAllString(name, ""))
	if clean == "" {
		return "", fmt.Errorf("tag name %q: %w", name, ErrInvalidInput)
	}
	return clean, nil
}

// SanitizeFilename reduces name to a safe base name with an allowed image
// extension. Path components are discarded.
func SanitizeFilename(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("missing filename: %w", ErrInvalidInput)
	}

	clean := fileNameStrip.ReplaceAllString(base, "")
	if clean == "" || strings.TrimSuffix(clean, filepath.Ext(clean)) == "" {
		return "", fmt.Errorf("filename %q: %w", name, ErrInvalidInput)
	}
	if !AllowedExtension(clean) {
		return "", fmt.Errorf("unsupported file type %q: %w", filepath.Ext(clean), ErrInvalidInput)
	}
	return clean, nil
}
