package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faucetScope/internal/model"
	"faucetScope/internal/storage"
)

func healthySample() model.MetricsSample {
	return model.MetricsSample{
		ChainID:          56,
		ActiveValidators: 21,
		AvgBlockTime:     3 * time.Second,
		LatestBlock:      36000000,
		SampledAt:        time.Now().UTC(),
	}
}

func TestEvaluateHealthySample(t *testing.T) {
	store := storage.NewMemoryStore()
	annotator := NewAnnotator(store, DefaultThresholds, nil)

	created, err := annotator.Evaluate(context.Background(), healthySample())
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestEvaluateLowValidators(t *testing.T) {
	store := storage.NewMemoryStore()
	annotator := NewAnnotator(store, DefaultThresholds, nil)

	sample := healthySample()
	sample.ActiveValidators = 2

	created, err := annotator.Evaluate(context.Background(), sample)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, model.AlertLowValidators, created[0].Type)
	assert.Equal(t, model.SeverityWarning, created[0].Severity)
}

func TestEvaluateBothRulesFireIndependently(t *testing.T) {
	store := storage.NewMemoryStore()
	annotator := NewAnnotator(store, DefaultThresholds, nil)

	sample := healthySample()
	sample.ActiveValidators = 1
	sample.AvgBlockTime = 15 * time.Second

	created, err := annotator.Evaluate(context.Background(), sample)
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestEvaluateDedupsActiveAlert(t *testing.T) {
	store := storage.NewMemoryStore()
	annotator := NewAnnotator(store, DefaultThresholds, nil)

	sample := healthySample()
	sample.AvgBlockTime = 15 * time.Second

	first, err := annotator.Evaluate(context.Background(), sample)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Same condition again while the alert is still active: no new alert.
	second, err := annotator.Evaluate(context.Background(), sample)
	require.NoError(t, err)
	assert.Empty(t, second)

	// Once resolved, the rule may fire again.
	require.NoError(t, annotator.Resolve(context.Background(), first[0].ID))
	third, err := annotator.Evaluate(context.Background(), sample)
	require.NoError(t, err)
	assert.Len(t, third, 1)
}

func TestResolveIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return base })

	annotator := NewAnnotator(store, DefaultThresholds, nil)
	sample := healthySample()
	sample.ActiveValidators = 0

	created, err := annotator.Evaluate(context.Background(), sample)
	require.NoError(t, err)
	require.Len(t, created, 1)
	id := created[0].ID

	require.NoError(t, annotator.Resolve(context.Background(), id))
	resolved, ok := store.AlertByID(id)
	require.True(t, ok)
	require.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedAt)
	firstResolvedAt := *resolved.ResolvedAt

	// Second resolve succeeds and keeps the original timestamp.
	store.SetClock(func() time.Time { return base.Add(time.Hour) })
	require.NoError(t, annotator.Resolve(context.Background(), id))

	again, ok := store.AlertByID(id)
	require.True(t, ok)
	assert.True(t, again.Resolved)
	assert.Equal(t, firstResolvedAt, *again.ResolvedAt)
}

func TestReportFailureDeduped(t *testing.T) {
	store := storage.NewMemoryStore()
	annotator := NewAnnotator(store, DefaultThresholds, nil)

	cause := errors.New("rpc endpoint unreachable")
	require.NoError(t, annotator.ReportFailure(context.Background(), 56, "reconciliation failed", cause))
	require.NoError(t, annotator.ReportFailure(context.Background(), 56, "reconciliation failed", cause))

	active, err := annotator.Active(context.Background(), 56)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, model.AlertReconcileError, active[0].Type)
}

func TestActiveScopedByChain(t *testing.T) {
	store := storage.NewMemoryStore()
	annotator := NewAnnotator(store, DefaultThresholds, nil)

	for _, chainID := range []uint64{56, 97} {
		sample := healthySample()
		sample.ChainID = chainID
		sample.ActiveValidators = 1
		_, err := annotator.Evaluate(context.Background(), sample)
		require.NoError(t, err)
	}

	scoped, err := annotator.Active(context.Background(), 97)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, uint64(97), scoped[0].ChainID)

	all, err := annotator.Active(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
