package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus is the lifecycle state of an observed transfer.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferConfirmed TransferStatus = "confirmed"
	TransferFailed    TransferStatus = "failed"
)

// statusRank orders statuses so merges only ever move forward.
func statusRank(s TransferStatus) int {
	switch s {
	case TransferPending:
		return 0
	case TransferConfirmed, TransferFailed:
		return 1
	default:
		return -1
	}
}

// MergeStatus returns the status a stored transfer should carry after
// re-observing it with a new status. Transitions only move forward:
// pending may become confirmed or failed, final states never change.
func MergeStatus(current, observed TransferStatus) TransferStatus {
	if statusRank(observed) > statusRank(current) {
		return observed
	}
	return current
}

// TransferEvent is an on-chain token movement reconciled into the local
// cache. The transaction hash is the natural deduplication key: both the
// poll path and the webhook path may observe the same transfer, and the
// second observation must be a no-op beyond a forward status transition.
type TransferEvent struct {
	TxHash      string          `json:"tx_hash"`
	ChainID     uint64          `json:"chain_id"`
	FromAddress string          `json:"from_address"`
	ToAddress   string          `json:"to_address"`
	TokenType   TokenType       `json:"token_type"`
	Amount      decimal.Decimal `json:"amount"`
	BlockNumber uint64          `json:"block_number"`
	Status      TransferStatus  `json:"status"`
	ObservedAt  time.Time       `json:"observed_at"`
}

// TokenBalanceEntry is the cached balance for one (wallet, token) pair.
// Upserts are keyed on that composite and UpdatedAt only moves forward.
type TokenBalanceEntry struct {
	WalletAddress string          `json:"wallet_address"`
	TokenType     TokenType       `json:"token_type"`
	Balance       decimal.Decimal `json:"balance"`
	LockedBalance decimal.Decimal `json:"locked_balance"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
