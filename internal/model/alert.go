package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertSeverity classifies how urgent an alert is.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityError    AlertSeverity = "error"
	SeverityCritical AlertSeverity = "critical"
)

// AlertType names the rule that produced an alert. At most one unresolved
// alert per (chain, type) may exist at a time.
type AlertType string

const (
	AlertLowValidators  AlertType = "low_validators"
	AlertSlowBlocks     AlertType = "slow_blocks"
	AlertReconcileError AlertType = "reconcile_error"
)

// Alert is a derived health annotation over sampled chain metrics.
type Alert struct {
	ID          uuid.UUID     `json:"id"`
	ChainID     uint64        `json:"chain_id"`
	Type        AlertType     `json:"type"`
	Severity    AlertSeverity `json:"severity"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Resolved    bool          `json:"resolved"`
	CreatedAt   time.Time     `json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

// MetricsSample is one health observation of a network.
type MetricsSample struct {
	ChainID          uint64        `json:"chain_id"`
	ActiveValidators int           `json:"active_validators"`
	AvgBlockTime     time.Duration `json:"avg_block_time"`
	LatestBlock      uint64        `json:"latest_block"`
	SampledAt        time.Time     `json:"sampled_at"`
}
