package storage

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
)

// MemoryStore keeps records in process memory. Records are lost on restart.
type MemoryStore struct {
	records    map[domain.ID]*domain.Record
	mu         sync.RWMutex
	maxRecords int // 0 = unlimited
}

func NewMemoryStore(maxRecords int) *MemoryStore {
	if maxRecords < 0 {
		maxRecords = 0
	}
	slog.Info("memory store initialized", "max_records", maxRecords)
	return &MemoryStore{
		records:    make(map[domain.ID]*domain.Record),
		maxRecords: maxRecords,
	}
}

func (s *MemoryStore) Save(_ context.Context, rec *domain.Record) (domain.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	s.cleanupIfNeeded()
	return rec.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id domain.ID) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// List returns IDs newest first.
func (s *MemoryStore) List(_ context.Context) ([]domain.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.sortedLocked()
	ids := make([]domain.ID, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) sortedLocked() []*domain.Record {
	recs := make([]*domain.Record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
	return recs
}

// cleanupIfNeeded drops the oldest records beyond maxRecords.
// Must be called with lock held
func (s *MemoryStore) cleanupIfNeeded() {
	if s.maxRecords <= 0 || len(s.records) <= s.maxRecords {
		return
	}
	recs := s.sortedLocked()
	for _, r := range recs[s.maxRecords:] {
		slog.Info("auto-cleaning old analysis", "analysis_id", r.ID, "created_at", r.CreatedAt)
		delete(s.records, r.ID)
	}
}
