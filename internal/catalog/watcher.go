package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatcherConfig configures library watching.
type WatcherConfig struct {
	// Debounce is how long to wait after the last event before running a
	// sync pass; bursts of filesystem changes collapse into one pass.
	Debounce time.Duration

	// IgnorePatterns are glob patterns for paths to ignore.
	IgnorePatterns []string
}

// DefaultWatcherConfig returns sensible defaults for the watcher.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Debounce:       2 * time.Second,
		IgnorePatterns: DefaultIgnorePatterns,
	}
}

// Watcher monitors the library root and triggers sync passes when media
// files appear, change, or vanish.
type Watcher struct {
	config   WatcherConfig
	watcher  *fsnotify.Watcher
	rootPath string
	logger   *zap.Logger
	trigger  func(ctx context.Context)

	pendingMu sync.Mutex
	pending   int
}

// NewWatcher creates a watcher over rootPath. trigger runs after each
// debounced batch of relevant events.
func NewWatcher(rootPath string, cfg WatcherConfig, trigger func(ctx context.Context), logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultWatcherConfig().Debounce
	}

	return &Watcher{
		config:   cfg,
		watcher:  fsWatcher,
		rootPath: rootPath,
		logger:   logger,
		trigger:  trigger,
	}, nil
}

// Run watches until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addRecursive(w.rootPath); err != nil {
		return err
	}

	ticker := time.NewTicker(w.config.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// addRecursive watches every non-ignored directory under path.
func (w *Watcher) addRecursive(path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}
		if !info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(w.rootPath, p)
		if err != nil {
			relPath = p
		}
		if w.shouldIgnore(relPath) {
			return filepath.SkipDir
		}

		return w.watcher.Add(p)
	})
}

// handleEvent records a relevant event and starts watching newly created
// directories.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil {
		relPath = event.Name
	}
	if w.shouldIgnore(relPath) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
		}
	}

	// Only media files and directory-level changes warrant a sync pass.
	isDirEvent := filepath.Ext(event.Name) == ""
	if !isDirEvent && !AllowedExtension(event.Name) {
		return
	}

	w.pendingMu.Lock()
	w.pending++
	w.pendingMu.Unlock()
}

// flushPending triggers a sync pass if events accumulated since the last
// tick.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	count := w.pending
	w.pending = 0
	w.pendingMu.Unlock()

	if count == 0 {
		return
	}

	w.logger.Info("filesystem changed, running sync pass", zap.Int("events", count))
	w.trigger(ctx)
}

// shouldIgnore checks a relative path against the ignore patterns.
func (w *Watcher) shouldIgnore(relPath string) bool {
	for _, pattern := range w.config.IgnorePatterns {
		if strings.HasSuffix(pattern, "/**") {
			dirPattern := strings.TrimSuffix(pattern, "/**")
			if relPath == dirPattern || strings.HasPrefix(relPath, dirPattern+string(os.PathSeparator)) {
				return true
			}
		}

		if matched, err := filepath.Match(pattern, filepath.Base(relPath)); err == nil && matched {
			return true
		}
		if matched, err := filepath.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}
