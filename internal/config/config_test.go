package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/photos")

	if cfg.Library.Root != "/photos" {
		t.Errorf("Expected library root /photos, got %q", cfg.Library.Root)
	}
	if cfg.Embedding.Model != "clip-ViT-B-32" {
		t.Errorf("Expected default model clip-ViT-B-32, got %q", cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimensions != 512 {
		t.Errorf("Expected 512 dimensions, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Search.Index != "exhaustive" {
		t.Errorf("Expected exhaustive index, got %q", cfg.Search.Index)
	}
	if cfg.Server.Port != 8402 {
		t.Errorf("Expected port 8402, got %d", cfg.Server.Port)
	}
	if cfg.Watch.DebounceSeconds != 2 {
		t.Errorf("Expected 2s debounce, got %d", cfg.Watch.DebounceSeconds)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	baseDir := t.TempDir()

	cfg, err := Load(baseDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != filepath.Join(baseDir, DefaultDataDir) {
		t.Errorf("Expected data dir under %s, got %q", baseDir, cfg.DataDir)
	}
	if cfg.DBPath != filepath.Join(baseDir, DefaultDataDir, DefaultDBFile) {
		t.Errorf("Unexpected db path %q", cfg.DBPath)
	}
	if cfg.Embedding.URL != "http://localhost:8060" {
		t.Errorf("Expected default sidecar URL, got %q", cfg.Embedding.URL)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("Expected 2 default origins, got %v", cfg.Server.AllowedOrigins)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	baseDir := t.TempDir()

	cfg := DefaultConfig(baseDir)
	cfg.DataDir = filepath.Join(baseDir, DefaultDataDir)
	cfg.DBPath = filepath.Join(cfg.DataDir, DefaultDBFile)
	cfg.Embedding.Model = "clip-custom"
	cfg.Embedding.Dimensions = 768
	cfg.Server.Port = 9000
	cfg.Library.IgnorePatterns = []string{"private/**"}
	cfg.Embedding.CacheSize = 0 // omitted from the file

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.DataDir, DefaultConfigFile)); err != nil {
		t.Fatalf("Expected config file on disk: %v", err)
	}

	loaded, err := Load(baseDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Embedding.Model != "clip-custom" {
		t.Errorf("Expected clip-custom, got %q", loaded.Embedding.Model)
	}
	if loaded.Embedding.Dimensions != 768 {
		t.Errorf("Expected 768 dimensions, got %d", loaded.Embedding.Dimensions)
	}
	if loaded.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", loaded.Server.Port)
	}
	if len(loaded.Library.IgnorePatterns) != 1 || loaded.Library.IgnorePatterns[0] != "private/**" {
		t.Errorf("Unexpected ignore patterns %v", loaded.Library.IgnorePatterns)
	}

	// Keys absent from the file still resolve to defaults.
	if loaded.Embedding.CacheSize != 2048 {
		t.Errorf("Expected default cache size, got %d", loaded.Embedding.CacheSize)
	}
}
