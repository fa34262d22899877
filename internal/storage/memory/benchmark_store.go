package memory

import (
	"context"
	"sort"
	"sync"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

type benchmarkKey struct {
	name string
	time int64
}

// BenchmarkStore is an in-memory implementation of storage.BenchmarkStore.
type BenchmarkStore struct {
	mu   sync.RWMutex
	data map[benchmarkKey]domain.BenchmarkPoint
}

// NewBenchmarkStore creates a new in-memory benchmark store.
func NewBenchmarkStore() *BenchmarkStore {
	return &BenchmarkStore{
		data: make(map[benchmarkKey]domain.BenchmarkPoint),
	}
}

// Compile-time interface check.
var _ storage.BenchmarkStore = (*BenchmarkStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on any duplicate.
func (s *BenchmarkStore) InsertBulk(_ context.Context, points []domain.BenchmarkPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[benchmarkKey]struct{}, len(points))
	for _, p := range points {
		if p.Name == "" {
			return storage.ErrInvalidInput
		}
		k := benchmarkKey{p.Name, p.Time}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, p := range points {
		s.data[benchmarkKey{p.Name, p.Time}] = p
	}
	return nil
}

// GetByName retrieves a full series ordered by time ASC.
func (s *BenchmarkStore) GetByName(_ context.Context, name string) ([]domain.BenchmarkPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.BenchmarkPoint
	for k, p := range s.data {
		if k.name == name {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time < result[j].Time
	})
	return result, nil
}

// GetByTimeRange retrieves points within [start, end] inclusive, ordered
// by time ASC.
func (s *BenchmarkStore) GetByTimeRange(_ context.Context, name string, start, end int64) ([]domain.BenchmarkPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.BenchmarkPoint
	for k, p := range s.data {
		if k.name == name && p.Time >= start && p.Time <= end {
			result = append(result, p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time < result[j].Time
	})
	return result, nil
}
