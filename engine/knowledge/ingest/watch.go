package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/romdo/go-debounce"

	"github.com/compozy/woodsage/pkg/logger"
)

const (
	defaultWatchWait    = 300 * time.Millisecond
	defaultWatchMaxWait = 3 * time.Second
)

var ignoredWatchDirs = map[string]bool{
	".git":         true,
	".woodsage":    true,
	"node_modules": true,
	"vendor":       true,
	"tmp":          true,
}

// ChangeFunc receives the files that changed since the previous call.
type ChangeFunc func(ctx context.Context, paths []string)

// Watcher reports writes to files matching ingestion patterns. Bursts of
// events are coalesced into one call.
type Watcher struct {
	patterns []string
	fsw      *fsnotify.Watcher
	wait     time.Duration
	maxWait  time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
}

type WatchOption func(*Watcher)

// WithDebounce sets the quiet period and the longest delay before a flush.
func WithDebounce(wait, maxWait time.Duration) WatchOption {
	return func(w *Watcher) {
		if wait > 0 {
			w.wait = wait
		}
		if maxWait > 0 {
			w.maxWait = maxWait
		}
	}
}

// NewWatcher watches the base directory of every pattern and its subdirectories.
func NewWatcher(ctx context.Context, patterns []string, opts ...WatchOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		patterns: patterns,
		fsw:      fsw,
		wait:     defaultWatchWait,
		maxWait:  defaultWatchMaxWait,
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	dirs, err := watchDirs(patterns)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	log := logger.FromContext(ctx)
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			log.Warn("Failed to watch directory", "path", dir, "error", err)
		}
	}
	log.Info("File watcher initialized", "watched_directories", len(dirs))
	return w, nil
}

// watchDirs walks the static prefix of every pattern. fsnotify is not recursive.
func watchDirs(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(strings.TrimSpace(pattern)))
		root := filepath.FromSlash(base)
		info, err := os.Stat(root)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if !info.IsDir() {
			seen[filepath.Dir(root)] = struct{}{}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && ignoredWatchDirs[d.Name()] {
				return filepath.SkipDir
			}
			seen[path] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)
	return dirs, nil
}

// Matches reports whether path is covered by one of the watched patterns.
func (w *Watcher) Matches(path string) bool {
	slashed := filepath.ToSlash(filepath.Clean(path))
	for _, pattern := range w.patterns {
		p := filepath.ToSlash(filepath.Clean(strings.TrimSpace(pattern)))
		if p == slashed {
			return true
		}
		if ok, err := doublestar.PathMatch(p, slashed); err == nil && ok {
			return true
		}
	}
	return false
}

// Run blocks until ctx is done, invoking onChange with debounced batches.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	log := logger.FromContext(ctx)
	defer w.fsw.Close()
	var (
		flushMu sync.Mutex
		stopped bool
	)
	flush := func() {
		flushMu.Lock()
		defer flushMu.Unlock()
		if stopped {
			return
		}
		if paths := w.drain(); len(paths) > 0 {
			onChange(ctx, paths)
		}
	}
	debounced, cancel := debounce.NewWithMaxWait(w.wait, w.maxWait, flush)
	defer func() {
		cancel()
		flushMu.Lock()
		stopped = true
		flushMu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping file watcher")
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event, debounced)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event, trigger func()) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !ignoredWatchDirs[info.Name()] {
			if err := w.fsw.Add(event.Name); err != nil {
				logger.FromContext(ctx).Warn("Failed to watch directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if !w.Matches(event.Name) {
		return
	}
	logger.FromContext(ctx).Debug("Detected file change, debouncing", "file", event.Name)
	w.mu.Lock()
	w.pending[event.Name] = struct{}{}
	w.mu.Unlock()
	trigger()
}

func (w *Watcher) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	slices.Sort(paths)
	return paths
}
