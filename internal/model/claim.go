package model

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ClaimRecord is one faucet grant issued to a wallet. Records are
// append-only: created on a successful claim and never mutated or deleted.
type ClaimRecord struct {
	ID            int64           `json:"id"`
	WalletAddress string          `json:"wallet_address"`
	AmountClaimed decimal.Decimal `json:"amount_claimed"`
	TxHash        string          `json:"tx_hash,omitempty"`
	LastClaimAt   time.Time       `json:"last_claim_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NormalizeAddress canonicalizes a wallet address to lowercase hex.
func NormalizeAddress(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return "", false
	}
	return strings.ToLower(common.HexToAddress(input).Hex()), true
}
