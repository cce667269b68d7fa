package catalog

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func writeFixture(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(full, []byte("fake image data"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
}

func scannedRelPaths(files []File) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.ToSlash(f.RelPath)
	}
	sort.Strings(paths)
	return paths
}

func TestScanFindsOnlyImages(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root,
		"dog.jpg",
		"winter/cat.png",
		"winter/2019/snow.gif",
		"notes.txt",
		"video.mp4",
	)

	scanner := NewScanner(nil)
	files, err := scanner.Scan(t.Context(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"dog.jpg", "winter/2019/snow.gif", "winter/cat.png"}
	if got := scannedRelPaths(files); !reflect.DeepEqual(got, want) {
		t.Errorf("Scan = %v, want %v", got, want)
	}
}

func TestScanHonorsIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root,
		"dog.jpg",
		".fototeca/thumb.jpg",
		".git/objects/blob.png",
		"@eaDir/cat.jpg",
		".thumbnails/small.jpg",
	)

	scanner := NewScanner(nil)
	files, err := scanner.Scan(t.Context(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"dog.jpg"}
	if got := scannedRelPaths(files); !reflect.DeepEqual(got, want) {
		t.Errorf("Scan = %v, want %v", got, want)
	}
}

func TestScanCustomIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root,
		"keep/dog.jpg",
		"private/cat.jpg",
	)

	scanner := NewScanner([]string{"private/**"})
	files, err := scanner.Scan(t.Context(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"keep/dog.jpg"}
	if got := scannedRelPaths(files); !reflect.DeepEqual(got, want) {
		t.Errorf("Scan = %v, want %v", got, want)
	}
}

func TestScanDirectoryComponents(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "winter/2019/snow.jpg", "top.jpg")

	scanner := NewScanner(nil)
	files, err := scanner.Scan(t.Context(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	byName := make(map[string]File)
	for _, f := range files {
		byName[f.Name] = f
	}

	snow, ok := byName["snow.jpg"]
	if !ok {
		t.Fatal("snow.jpg not found")
	}
	if !reflect.DeepEqual(snow.Dirs, []string{"winter", "2019"}) {
		t.Errorf("Expected dirs [winter 2019], got %v", snow.Dirs)
	}
	if !filepath.IsAbs(snow.Path) {
		t.Errorf("Expected absolute path, got %s", snow.Path)
	}

	top, ok := byName["top.jpg"]
	if !ok {
		t.Fatal("top.jpg not found")
	}
	if len(top.Dirs) != 0 {
		t.Errorf("Expected no dirs for a root-level file, got %v", top.Dirs)
	}
}

func TestSplitDirs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"dog.jpg", nil},
		{filepath.FromSlash("winter/dog.jpg"), []string{"winter"}},
		{filepath.FromSlash("winter/2019/dog.jpg"), []string{"winter", "2019"}},
	}

	for _, tt := range tests {
		got := splitDirs(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitDirs(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitDirs(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}
