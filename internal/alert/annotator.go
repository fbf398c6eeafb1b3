package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"faucetScope/internal/model"
	"faucetScope/internal/storage"
)

// Thresholds configure the health rules.
type Thresholds struct {
	// MinValidators raises a warning when the active validator count
	// drops below it.
	MinValidators int
	// MaxAvgBlockTime raises a warning when blocks come slower than it.
	MaxAvgBlockTime time.Duration
}

// DefaultThresholds match the dashboard's health view.
var DefaultThresholds = Thresholds{
	MinValidators:   3,
	MaxAvgBlockTime: 10 * time.Second,
}

// Annotator derives health alerts from sampled chain metrics. Each rule is
// independent; a rule that fires while an unresolved alert of its type is
// already active for the chain is a no-op, so a flapping metric does not
// spam the feed. The dedup decision is made here against the current
// active set, not assumed from storage constraints.
type Annotator struct {
	store      storage.Store
	thresholds Thresholds
	now        func() time.Time
	logger     *zap.Logger
}

func NewAnnotator(store storage.Store, thresholds Thresholds, logger *zap.Logger) *Annotator {
	if thresholds.MinValidators <= 0 {
		thresholds.MinValidators = DefaultThresholds.MinValidators
	}
	if thresholds.MaxAvgBlockTime <= 0 {
		thresholds.MaxAvgBlockTime = DefaultThresholds.MaxAvgBlockTime
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Annotator{
		store:      store,
		thresholds: thresholds,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock overrides the annotator clock, for tests.
func (a *Annotator) SetClock(now func() time.Time) {
	a.now = now
}

// Evaluate runs every rule against the sample and returns the alerts that
// were newly created.
func (a *Annotator) Evaluate(ctx context.Context, sample model.MetricsSample) ([]model.Alert, error) {
	active, err := a.store.ActiveAlerts(ctx, sample.ChainID)
	if err != nil {
		return nil, fmt.Errorf("load active alerts: %w", err)
	}
	activeTypes := make(map[model.AlertType]bool, len(active))
	for _, alert := range active {
		activeTypes[alert.Type] = true
	}

	created := make([]model.Alert, 0)
	for _, candidate := range a.ruleAlerts(sample) {
		if activeTypes[candidate.Type] {
			continue
		}
		if err := a.store.InsertAlert(ctx, candidate); err != nil {
			return created, fmt.Errorf("insert alert: %w", err)
		}
		a.logger.Warn("alert raised",
			zap.Uint64("chain_id", candidate.ChainID),
			zap.String("type", string(candidate.Type)),
			zap.String("title", candidate.Title),
		)
		created = append(created, candidate)
	}
	return created, nil
}

func (a *Annotator) ruleAlerts(sample model.MetricsSample) []model.Alert {
	alerts := make([]model.Alert, 0, 2)

	if sample.ActiveValidators < a.thresholds.MinValidators {
		alerts = append(alerts, a.newAlert(sample.ChainID, model.AlertLowValidators, model.SeverityWarning,
			"Insufficient validators",
			fmt.Sprintf("%d active validators, minimum is %d", sample.ActiveValidators, a.thresholds.MinValidators),
		))
	}

	if sample.AvgBlockTime > a.thresholds.MaxAvgBlockTime {
		alerts = append(alerts, a.newAlert(sample.ChainID, model.AlertSlowBlocks, model.SeverityWarning,
			"Slow blocks",
			fmt.Sprintf("average block time %s exceeds %s", sample.AvgBlockTime, a.thresholds.MaxAvgBlockTime),
		))
	}

	return alerts
}

// ReportFailure records a background failure (e.g. an unreachable ledger)
// as an alert instead of propagating it, with the same dedup policy.
func (a *Annotator) ReportFailure(ctx context.Context, chainID uint64, title string, cause error) error {
	active, err := a.store.ActiveAlerts(ctx, chainID)
	if err != nil {
		return fmt.Errorf("load active alerts: %w", err)
	}
	for _, alert := range active {
		if alert.Type == model.AlertReconcileError {
			return nil
		}
	}

	alert := a.newAlert(chainID, model.AlertReconcileError, model.SeverityError, title, cause.Error())
	if err := a.store.InsertAlert(ctx, alert); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Resolve marks an alert resolved. Resolving twice is a no-op.
func (a *Annotator) Resolve(ctx context.Context, id uuid.UUID) error {
	return a.store.ResolveAlert(ctx, id)
}

// Active returns the unresolved alerts, newest first.
func (a *Annotator) Active(ctx context.Context, chainID uint64) ([]model.Alert, error) {
	return a.store.ActiveAlerts(ctx, chainID)
}

func (a *Annotator) newAlert(chainID uint64, alertType model.AlertType, severity model.AlertSeverity, title, description string) model.Alert {
	return model.Alert{
		ID:          uuid.New(),
		ChainID:     chainID,
		Type:        alertType,
		Severity:    severity,
		Title:       title,
		Description: description,
		CreatedAt:   a.now().UTC(),
	}
}
