package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"faucetScope/internal/alert"
	"faucetScope/internal/config"
	"faucetScope/internal/reconcile"
	"faucetScope/internal/storage/postgres"
)

// runWatch is the unattended path: reconciliation and health evaluation
// on a timer. Failures here become alerts, not process exits.
func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if len(cfg.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	built, closeNetworks, err := buildNetworks(ctx, cfg.Networks, logger)
	if err != nil {
		return err
	}
	defer closeNetworks()

	reconciler := newReconciler(cfg, store, logger)
	annotator := alert.NewAnnotator(store, alert.Thresholds{
		MinValidators:   cfg.MinValidators,
		MaxAvgBlockTime: cfg.MaxBlockTime,
	}, logger)

	logger.Info("watch start",
		zap.Duration("interval", cfg.Interval),
		zap.Int("networks", len(built)),
		zap.Uint64("metrics_span", cfg.MetricsSpan),
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		runOnce(ctx, built, reconciler, annotator, cfg.MetricsSpan, logger)

		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func runOnce(ctx context.Context, built []builtNetwork, reconciler *reconcile.Reconciler, annotator *alert.Annotator, metricsSpan uint64, logger *zap.Logger) {
	result := reconciler.ReconcileAll(ctx, reconcileNetworks(built), "")
	for _, failed := range result.Failed() {
		if err := annotator.ReportFailure(ctx, failed.ChainID, "reconciliation failed", errors.New(failed.Error)); err != nil {
			logger.Warn("report reconcile failure", zap.String("scope", failed.Scope), zap.Error(err))
		}
	}

	for _, network := range built {
		sample, err := network.client.SampleMetrics(ctx, metricsSpan)
		if err != nil {
			logger.Warn("metrics sample failed", zap.String("scope", network.scope.Name), zap.Error(err))
			continue
		}

		created, err := annotator.Evaluate(ctx, sample)
		if err != nil {
			logger.Warn("alert evaluation failed", zap.String("scope", network.scope.Name), zap.Error(err))
			continue
		}
		logger.Info("health evaluated",
			zap.String("scope", network.scope.Name),
			zap.Int("validators", sample.ActiveValidators),
			zap.Duration("avg_block_time", sample.AvgBlockTime),
			zap.Int("alerts_raised", len(created)),
		)
	}
}
