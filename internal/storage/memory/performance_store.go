package memory

import (
	"context"
	"sync"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

// PerformanceStore is an in-memory implementation of storage.PerformanceStore.
// Records are kept in insertion order; re-runs append.
type PerformanceStore struct {
	mu      sync.RWMutex
	records []*domain.PerformanceRecord
}

// NewPerformanceStore creates a new in-memory performance store.
func NewPerformanceStore() *PerformanceStore {
	return &PerformanceStore{}
}

// Compile-time interface check.
var _ storage.PerformanceStore = (*PerformanceStore)(nil)

// Append adds a record to the results collection.
func (s *PerformanceStore) Append(_ context.Context, r *domain.PerformanceRecord) error {
	if r == nil || r.Symbol == "" || r.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *r
	s.records = append(s.records, &copy)
	return nil
}

// GetAll retrieves all records in insertion order.
func (s *PerformanceStore) GetAll(_ context.Context) ([]*domain.PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PerformanceRecord, 0, len(s.records))
	for _, r := range s.records {
		copy := *r
		result = append(result, &copy)
	}
	return result, nil
}
