package vectordb

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"github.com/spf13/afero"
)

const snapshotVersion = 1

// fileStore is the zero-infrastructure index: a memStore whose contents are
// rewritten to one JSON snapshot after every mutation. The snapshot is
// written next to the target and renamed over it.
type fileStore struct {
	*memStore
	fs   afero.Fs
	path string
}

type snapshot struct {
	Version   int       `json:"version"`
	Dimension int       `json:"dimension"`
	Records   []snapRec `json:"records"`
}

type snapRec struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func newFileStore(cfg *Config) (*fileStore, error) {
	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	s := &fileStore{memStore: newMemoryStore(cfg), fs: fsys, path: snapshotPath(cfg)}
	if err := fsys.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return nil, fmt.Errorf("filesystem: create index directory: %w", err)
	}
	if err := s.restore(); err != nil {
		return nil, fmt.Errorf("filesystem: %s: %w", s.path, err)
	}
	return s, nil
}

// snapshotPath treats a Path ending in .json as the file itself and anything
// else as a directory holding <slug(collection)>.json.
func snapshotPath(cfg *Config) string {
	p := filepath.Clean(cfg.Path)
	if strings.EqualFold(filepath.Ext(p), ".json") {
		return p
	}
	name := cmp.Or(slug.Make(cfg.Collection), "index")
	return filepath.Join(p, name+".json")
}

func (s *fileStore) restore() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version > snapshotVersion {
		return fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, snapshotVersion)
	}
	if snap.Dimension > 0 && snap.Dimension != s.dimension {
		return fmt.Errorf("stored dimension %d does not match config %d", snap.Dimension, s.dimension)
	}
	for _, rec := range snap.Records {
		if len(rec.Embedding) != s.dimension {
			return dimensionError("snapshot", rec.ID, len(rec.Embedding), s.dimension)
		}
		s.records[rec.ID] = Record(rec)
	}
	return nil
}

// flushLocked writes records in id order so snapshots diff cleanly.
func (s *fileStore) flushLocked() error {
	snap := snapshot{Version: snapshotVersion, Dimension: s.dimension, Records: make([]snapRec, 0, len(s.records))}
	for _, rec := range s.records {
		snap.Records = append(snap.Records, snapRec(rec))
	}
	slices.SortFunc(snap.Records, func(a, b snapRec) int { return strings.Compare(a.ID, b.ID) })
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("filesystem: encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("filesystem: write snapshot: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("filesystem: replace snapshot: %w", err)
	}
	return nil
}

func (s *fileStore) Upsert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.upsertLocked(records); err != nil {
		return fmt.Errorf("filesystem: %w", err)
	}
	return s.flushLocked()
}

func (s *fileStore) Delete(_ context.Context, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteLocked(filter) {
		return s.flushLocked()
	}
	return nil
}

func (s *fileStore) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.memStore.Stats(ctx)
	stats.Provider = ProviderFilesystem
	return stats, err
}
