package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"faucetScope/internal/alert"
	"faucetScope/internal/api"
	"faucetScope/internal/config"
	"faucetScope/internal/faucet"
	"faucetScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "faucetd",
		Short:        "Faucet eligibility and balance reconciliation service",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	addCommonFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	root.AddCommand(serveCmd)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run a one-shot reconciliation",
		RunE:  runReconcile,
	}
	addCommonFlags(reconcileCmd)
	reconcileCmd.Flags().String("wallet", "", "restrict reconciliation to one wallet")
	reconcileCmd.Flags().String("scope", "", "restrict reconciliation to one network by name")
	reconcileCmd.Flags().String("audit-out", "", "optional JSONL audit path for merged transfers")
	root.AddCommand(reconcileCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically reconcile and evaluate chain health",
		RunE:  runWatch,
	}
	addCommonFlags(watchCmd)
	watchCmd.Flags().Duration("interval", 5*time.Minute, "loop interval")
	watchCmd.Flags().Uint64("metrics-span", 20, "blocks sampled for avg block time")
	watchCmd.Flags().Int("min-validators", 3, "minimum active validators before alerting")
	watchCmd.Flags().Duration("max-block-time", 10*time.Second, "maximum avg block time before alerting")
	root.AddCommand(watchCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE:  runMigrate,
	}
	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("rpc", "", "RPC URL for a single network")
	cmd.Flags().String("network", "", "name for the single flag-defined network")
	cmd.Flags().StringSlice("token", nil, "token contracts as address=type pairs")
	cmd.Flags().Duration("cooldown", 24*time.Hour, "claim cooldown period")
	cmd.Flags().String("grant", "10", "grant amount per claim")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per log query")
	cmd.Flags().Uint64("lookback", 5000, "blocks scanned on first run")
	cmd.Flags().Int("max-results", 100, "max transfers merged per scope per run")
	cmd.Flags().Uint64("confirmations", 12, "blocks behind head considered confirmed")
	cmd.Flags().Int("max-retries", 3, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	grant, err := decimal.NewFromString(cfg.Grant)
	if err != nil {
		return fmt.Errorf("invalid grant amount: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	networks, closeNetworks, err := buildNetworks(ctx, cfg.Networks, logger)
	if err != nil {
		return err
	}
	defer closeNetworks()

	oracle := faucet.NewOracle(store, cfg.Cooldown, logger)
	recorder := faucet.NewRecorder(store, cfg.Cooldown, grant, logger)
	reconciler := newReconciler(cfg, store, logger)
	annotator := alert.NewAnnotator(store, alert.Thresholds{
		MinValidators:   cfg.MinValidators,
		MaxAvgBlockTime: cfg.MaxBlockTime,
	}, logger)

	server := api.NewServer(oracle, recorder, reconciler, reconcileNetworks(networks), annotator, logger)
	srv := server.HTTPServer(cfg.ListenAddr)

	logger.Info("serve start",
		zap.String("listen", cfg.ListenAddr),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("networks", len(networks)),
		zap.Duration("cooldown", cfg.Cooldown),
		zap.String("grant", grant.String()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("schema applied", zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
