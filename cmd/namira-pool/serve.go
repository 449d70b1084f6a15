package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NamiraNet/namira-pool/internal/api"
	"github.com/NamiraNet/namira-pool/internal/logger"
	"github.com/NamiraNet/namira-pool/internal/metrics"
	"github.com/NamiraNet/namira-pool/internal/notify"
	"github.com/NamiraNet/namira-pool/internal/report"
	"github.com/NamiraNet/namira-pool/internal/workerpool"
	"github.com/NamiraNet/namira-pool/internal/workload"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API in front of a long-lived pool",
	Long:  `Start the namira-pool API server. Tasks are submitted over HTTP and the pool is drained on shutdown.`,
	RunE:  runServer,
}

func init() {
	serveCmd.Flags().StringVarP(&cfg.Server.Port, "port", "p", cfg.Server.Port, "Port to run the service on")
	serveCmd.Flags().IntVarP(&cfg.Pool.QueueCount, "queues", "q", cfg.Pool.QueueCount, "Number of bounded queues")
	serveCmd.Flags().IntVarP(&cfg.Pool.ThreadsPerQueue, "threads", "t", cfg.Pool.ThreadsPerQueue, "Workers per queue")
	serveCmd.Flags().IntVarP(&cfg.Pool.QueueCapacity, "capacity", "c", cfg.Pool.QueueCapacity, "Capacity of each queue")
	addPolicyFlags(serveCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	log, err := logger.InitForAPI(cfg.App.LogLevel, cfg.App.LogFile,
		logger.WithRotationConfig(cfg.App.LogMaxSize, cfg.App.LogMaxAge, cfg.App.LogMaxBackups, cfg.App.LogCompress))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := cfg.Validate(); err != nil {
		return err
	}
	poolCfg, err := cfg.WorkerPoolConfig()
	if err != nil {
		return err
	}
	sleeper, err := workload.NewSleeper(cfg.Workload.MinSleep, cfg.Workload.MaxSleep)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := newReportStore(ctx, cfg.Redis, cfg.App.EncryptionKey, log)
	if err != nil {
		return err
	}
	telegram, err := newTelegram(cfg.Telegram)
	if err != nil {
		return err
	}
	var notifier notify.Notifier
	if telegram != nil {
		notifier = telegram
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	exporter, err := metrics.NewExporter(registry, metrics.Options{})
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	poolOpts := []workerpool.Option{
		workerpool.WithLogger(log.With(zap.String("run_id", runID))),
		workerpool.WithObserver(exporter),
	}
	if cfg.Workload.Seed != 0 {
		poolOpts = append(poolOpts, workerpool.WithSeed(cfg.Workload.Seed))
	}
	stats := workerpool.NewStats(poolCfg.QueueCount)
	pool, err := workerpool.NewWorkerPool(poolCfg, stats, poolOpts...)
	if err != nil {
		return err
	}
	startedAt := time.Now()

	poller, err := metrics.NewStatsPoller(registry, "", pool, 5*time.Second)
	if err != nil {
		return err
	}
	poller.Start(ctx)

	handler := api.NewHandler(pool, sleeper, store, log, versionInfo())
	router := api.NewRouter(handler, registry, log)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Server starting",
			zap.String("address", server.Addr),
			zap.Duration("read_timeout", cfg.Server.ReadTimeout),
			zap.Duration("write_timeout", cfg.Server.WriteTimeout),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// drains every queued task before returning
	if err := pool.Shutdown(); err != nil {
		log.Error("Failed to shut down worker pool", zap.Error(err))
	}
	poller.Stop()

	r := report.New(runID, pool.Config(), startedAt, time.Now(), stats.Snapshot())
	log.Info("Worker pool drained",
		zap.String("run_id", r.RunID),
		zap.Int64("submitted", r.Stats.Submitted),
		zap.Int64("completed", r.Stats.Completed),
		zap.Int64("rejected", r.Stats.Rejected),
		zap.Float64("drop_rate", r.Stats.DropRate()))
	publish(shutdownCtx, r, store, notifier, log)

	return nil
}
