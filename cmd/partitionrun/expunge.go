package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Andrej220/go-utils/partition/config"
	"github.com/Andrej220/go-utils/partition/expunge"
	"github.com/Andrej220/go-utils/partition/expunge/redisstore"
	"github.com/Andrej220/go-utils/partition/metrics"
)

type expungeFlags struct {
	count       int
	store       string
	latency     time.Duration
	metricsAddr string
}

func newExpungeCmd(root *rootFlags) *cobra.Command {
	flags := &expungeFlags{}

	cmd := &cobra.Command{
		Use:   "expunge",
		Short: "Delete ids 1..--count from a store in partitioned batches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := setupLogger(cmd, cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return runExpunge(cmd, cfg, flags, logger)
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.count, "count", 0, "number of ids to expunge")
	f.StringVar(&flags.store, "store", "memory", "resource store: memory or redis")
	f.DurationVar(&flags.latency, "latency", 0, "simulated round trip per batch (memory store)")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	return cmd
}

func runExpunge(cmd *cobra.Command, cfg config.File, flags *expungeFlags, logger *zap.Logger) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = lg.Attach(ctx, zapZLogger{l: logger})
	if flags.count < 0 {
		return fmt.Errorf("count must be >= 0, got %d", flags.count)
	}

	ids := make([]int64, flags.count)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	store, closeStore, err := openStore(ctx, cfg, flags, ids)
	if err != nil {
		return err
	}
	defer closeStore()

	settings := config.NewSettings(cfg.Executor)
	settings.SetOnBatchError(func(err error) {
		logger.Warn("batch failed", zap.Error(err))
	})
	if cfg.Metrics.Enabled || flags.metricsAddr != "" {
		stop, err := startMetrics(cfg.Metrics, flags.metricsAddr, settings, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	retry := expunge.RetryPolicy{
		Attempts: cfg.Retry.Attempts,
		Initial:  cfg.Retry.Initial,
		Max:      cfg.Retry.Max,
	}
	e := expunge.New(store, settings, retry)

	logger.Info("expunge starting",
		zap.Int("ids", len(ids)),
		zap.Int("batch_size", settings.BatchSize()),
		zap.Int("threads", settings.ThreadCount()),
		zap.String("store", flags.store),
	)
	out, err := e.Expunge(ctx, ids)
	if out != nil && out.Report != nil {
		printReport(cmd, out)
	}
	if err != nil {
		logger.Error("expunge failed", zap.Error(err))
		return err
	}
	logger.Info("expunge finished", zap.Int("deleted", out.Deleted))
	return nil
}

func openStore(ctx context.Context, cfg config.File, flags *expungeFlags, ids []int64) (expunge.Store, func(), error) {
	switch flags.store {
	case "memory":
		s := expunge.NewMemoryStore(ids...)
		s.Latency = flags.latency
		return s, func() {}, nil
	case "redis":
		s, err := redisstore.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		for _, id := range ids {
			if err := s.Put(ctx, id, []byte(fmt.Sprintf(`{"resourceType":"Patient","id":"%d"}`, id))); err != nil {
				_ = s.Close()
				return nil, nil, err
			}
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want memory or redis)", flags.store)
	}
}

func startMetrics(cfg config.Metrics, addr string, settings *config.Settings, logger *zap.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, cfg.Namespace, cfg.Subsystem)
	if err != nil {
		return nil, err
	}
	settings.SetMetrics(m)
	if addr == "" {
		return func() {}, nil
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printReport(cmd *cobra.Command, out *expunge.Outcome) {
	w := cmd.OutOrStdout()
	r := out.Report
	fmt.Fprintf(w, "run %s: items=%d batches=%d workers=%d deleted=%d failed=%d elapsed=%s\n",
		r.RunID, r.Items, r.Batches, len(r.Workers), out.Deleted, r.Failed(), r.Elapsed.Round(time.Millisecond))
	for _, res := range r.Results {
		status := "ok"
		if res.Err != nil {
			status = res.Err.Error()
		}
		fmt.Fprintf(w, "batch %d size=%d worker=%s took=%s %s\n",
			res.Index, res.Size, res.Worker, res.Duration.Round(time.Microsecond), status)
	}
}
