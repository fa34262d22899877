package memory

import (
	"context"
	"sort"
	"sync"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

type candleKey struct {
	symbol    string
	interval  domain.Interval
	startTime int64
}

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[candleKey]domain.Candle
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[candleKey]domain.Candle),
	}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds multiple candles. Fails entire batch on any duplicate.
func (s *CandleStore) InsertBulk(_ context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[candleKey]struct{}, len(candles))
	for _, c := range candles {
		if c.Symbol == "" || c.Interval == 0 {
			return storage.ErrInvalidInput
		}
		k := candleKey{c.Symbol, c.Interval, c.StartTime}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, c := range candles {
		s.data[candleKey{c.Symbol, c.Interval, c.StartTime}] = c
	}
	return nil
}

// GetSeries retrieves all candles for one symbol at one interval, ordered
// by start_time ASC. Returns ErrNotFound if the series is empty.
func (s *CandleStore) GetSeries(_ context.Context, symbol string, interval domain.Interval) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for k, c := range s.data {
		if k.symbol == symbol && k.interval == interval {
			result = append(result, c)
		}
	}
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

// GetPanel retrieves all candles at one interval across symbols, ordered
// by start_time ASC then symbol ASC.
func (s *CandleStore) GetPanel(_ context.Context, interval domain.Interval) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for k, c := range s.data {
		if k.interval == interval {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTime != result[j].StartTime {
			return result[i].StartTime < result[j].StartTime
		}
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

// Symbols lists distinct symbols with candles at the interval, sorted ASC.
func (s *CandleStore) Symbols(_ context.Context, interval domain.Interval) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.data {
		if k.interval == interval {
			seen[k.symbol] = struct{}{}
		}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}
