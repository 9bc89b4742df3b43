package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"spikegrid/internal/model"
)

// MemoryStore keeps encoded snapshots so callers never share slices with it.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	snapshots   map[string][]byte
	summaries   map[string]model.SnapshotSummary
	history     map[string][]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.snapshots = make(map[string][]byte)
	s.summaries = make(map[string]model.SnapshotSummary)
	s.history = make(map[string][]int)
	return nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot model.NetworkSnapshot) error {
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return err
	}
	payload, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	s.snapshots[snapshot.ID] = payload
	s.summaries[snapshot.ID] = snapshot.Summary()
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, id string) (model.NetworkSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return model.NetworkSnapshot{}, false, ErrNotInitialized
	}

	payload, ok := s.snapshots[id]
	if !ok {
		return model.NetworkSnapshot{}, false, nil
	}
	snapshot, err := DecodeSnapshot(payload)
	if err != nil {
		return model.NetworkSnapshot{}, false, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snapshot, true, nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context) ([]model.SnapshotSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	out := make([]model.SnapshotSummary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		out = append(out, summary)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) DeleteSnapshot(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return false, ErrNotInitialized
	}

	if _, ok := s.snapshots[id]; !ok {
		return false, nil
	}
	delete(s.snapshots, id)
	delete(s.summaries, id)
	delete(s.history, id)
	return true, nil
}

func (s *MemoryStore) SaveRewardHistory(_ context.Context, runID string, history []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	s.history[runID] = append([]int(nil), history...)
	return nil
}

func (s *MemoryStore) GetRewardHistory(_ context.Context, runID string) ([]int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, false, ErrNotInitialized
	}

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]int(nil), history...), true, nil
}

func sortNewestFirst(summaries []model.SnapshotSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
}
