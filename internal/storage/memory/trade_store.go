package memory

import (
	"context"
	"sort"
	"sync"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by trade_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TradeID] = &copy
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		copy := *t
		s.data[t.TradeID] = &copy
	}
	return nil
}

// GetByCombination retrieves all trades for one (symbol, strategy,
// prepare, holding) combination, ordered by entry_time ASC.
func (s *TradeStore) GetByCombination(_ context.Context, symbol, strategyID string, prepare, holding domain.Interval) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Symbol == symbol && t.StrategyID == strategyID &&
			t.PrepareInterval == prepare && t.HoldingInterval == holding {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTrades(result)
	return result, nil
}

// GetByStrategy retrieves all trades across symbols for one (strategy,
// prepare, holding) combination, ordered by entry_time ASC.
func (s *TradeStore) GetByStrategy(_ context.Context, strategyID string, prepare, holding domain.Interval) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.StrategyID == strategyID && t.PrepareInterval == prepare && t.HoldingInterval == holding {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTrades(result)
	return result, nil
}

// sortTrades orders by entry_time ASC with symbol, then trade_id, as
// deterministic tie-breakers.
func sortTrades(trades []*domain.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].EntryTime != trades[j].EntryTime {
			return trades[i].EntryTime < trades[j].EntryTime
		}
		if trades[i].Symbol != trades[j].Symbol {
			return trades[i].Symbol < trades[j].Symbol
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}
