package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"perp-strategy-lab/internal/domain"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(symbol|strategy_id|prepare|holding|entry_time|side)
// Returns hex-encoded hash (64 characters). Re-running the same
// combination produces the same IDs, so append-only stores reject
// duplicates instead of silently double-counting.
func ComputeTradeID(
	symbol string,
	strategyID string,
	prepareInterval domain.Interval,
	holdingInterval domain.Interval,
	entryTime int64,
	side domain.Side,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%d|%s",
		symbol,
		strategyID,
		prepareInterval,
		holdingInterval,
		entryTime,
		side,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
