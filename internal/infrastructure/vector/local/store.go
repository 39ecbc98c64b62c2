package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/signatlas/signrag/internal/core/domain"
)

// Store is the embedded vector store: brute-force cosine search over
// L2-normalized float32 vectors, persisted as a JSON snapshot. Writes are
// serialized; Put is idempotent by (modality, id).
type Store struct {
	path      string
	dimension int

	mu      sync.RWMutex
	entries map[string]domain.IndexEntry
}

func New(path string, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("local store: invalid dimension %d", dimension)
	}
	return &Store{
		path:      path,
		dimension: dimension,
		entries:   make(map[string]domain.IndexEntry),
	}, nil
}

func (s *Store) Put(_ context.Context, entries []domain.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		if len(entry.Vector) != s.dimension {
			return fmt.Errorf("local store: entry %s has dimension %d, store expects %d",
				entry.Key(), len(entry.Vector), s.dimension)
		}
		s.entries[entry.Key()] = entry
	}
	return nil
}

func (s *Store) Search(
	_ context.Context,
	queryVector []float32,
	topK int,
	filter domain.SearchFilter,
	modelVersion string,
) ([]domain.ScoredEntry, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("local store: query dimension %d, store expects %d", len(queryVector), s.dimension)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]domain.ScoredEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		// The filter is a hard predicate evaluated before ranking, and
		// foreign model generations are excluded rather than rejected.
		if !filter.Matches(entry.Metadata) {
			continue
		}
		if modelVersion != "" && entry.Metadata.ModelVersion != modelVersion {
			continue
		}
		if len(entry.Vector) != len(queryVector) {
			continue
		}
		scored = append(scored, domain.ScoredEntry{
			Entry: entry,
			Score: dot(entry.Vector, queryVector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Entry.Metadata.SourceRef < scored[j].Entry.Metadata.SourceRef
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

type snapshot struct {
	Dimension int                 `json:"dimension"`
	Entries   []domain.IndexEntry `json:"entries"`
}

// Persist writes the snapshot atomically: temp file then rename, so a
// crashed write leaves the last consistent snapshot in place.
func (s *Store) Persist(_ context.Context) error {
	s.mu.RLock()
	snap := snapshot{Dimension: s.dimension, Entries: make([]domain.IndexEntry, 0, len(s.entries))}
	for _, entry := range s.entries {
		snap.Entries = append(snap.Entries, entry)
	}
	s.mu.RUnlock()

	sort.Slice(snap.Entries, func(i, j int) bool {
		return snap.Entries[i].Key() < snap.Entries[j].Key()
	})

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (s *Store) Load(_ context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Dimension != s.dimension {
		return fmt.Errorf("snapshot dimension %d, store expects %d", snap.Dimension, s.dimension)
	}

	entries := make(map[string]domain.IndexEntry, len(snap.Entries))
	for _, entry := range snap.Entries {
		entries[entry.Key()] = entry
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// SnapshotTime reports the snapshot file's modification time, used as the
// index freshness timestamp when reopening without reindexing.
func (s *Store) SnapshotTime() (time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
