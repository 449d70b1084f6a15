package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NamiraNet/namira-pool/internal/logger"
	"github.com/NamiraNet/namira-pool/internal/notify"
	"github.com/NamiraNet/namira-pool/internal/report"
	"github.com/NamiraNet/namira-pool/internal/runner"
	"github.com/NamiraNet/namira-pool/internal/workload"
)

var (
	outputFormat string
	outputFile   string
	showProgress bool
	persist      bool
	sendNotify   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic workload through the pool and print the report",
	Long: `Submit a batch of sleeping tasks to a freshly built pool, wait until every task has
completed or been discarded, then print the run report.`,
	RunE: runWorkload,
}

func init() {
	runCmd.Flags().IntVarP(&cfg.Pool.QueueCount, "queues", "q", cfg.Pool.QueueCount, "Number of bounded queues")
	runCmd.Flags().IntVarP(&cfg.Pool.ThreadsPerQueue, "threads", "t", cfg.Pool.ThreadsPerQueue, "Workers per queue")
	runCmd.Flags().IntVarP(&cfg.Pool.QueueCapacity, "capacity", "c", cfg.Pool.QueueCapacity, "Capacity of each queue")
	addPolicyFlags(runCmd)
	runCmd.Flags().IntVarP(&cfg.Workload.Tasks, "tasks", "n", cfg.Workload.Tasks, "Number of tasks to submit")
	runCmd.Flags().DurationVar(&cfg.Workload.MinSleep, "min-sleep", cfg.Workload.MinSleep, "Minimum task duration")
	runCmd.Flags().DurationVar(&cfg.Workload.MaxSleep, "max-sleep", cfg.Workload.MaxSleep, "Maximum task duration (exclusive)")
	runCmd.Flags().Float64Var(&cfg.Workload.SubmitRate, "rate", cfg.Workload.SubmitRate, "Submissions per second, 0 for unlimited")
	runCmd.Flags().Int64Var(&cfg.Workload.Seed, "seed", cfg.Workload.Seed, "Seed for placement and durations, 0 for random")
	runCmd.Flags().StringVarP(&outputFormat, "format", "f", cfg.App.OutputFormat, "Output format: table, json, csv")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	runCmd.Flags().BoolVar(&showProgress, "progress", true, "Show progress while tasks run")
	runCmd.Flags().BoolVar(&persist, "persist", false, "Store the report in Redis (REDIS_ADDR)")
	runCmd.Flags().BoolVar(&sendNotify, "notify", false, "Send the report to Telegram")
}

func runWorkload(cmd *cobra.Command, args []string) error {
	log, err := logger.InitForCLI(cfg.App.LogLevel)
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

	var sleeperOpts []workload.SleeperOption
	if cfg.Workload.Seed != 0 {
		sleeperOpts = append(sleeperOpts, workload.WithSeed(cfg.Workload.Seed))
	}
	sleeper, err := workload.NewSleeper(cfg.Workload.MinSleep, cfg.Workload.MaxSleep, sleeperOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *report.RedisStore
	if persist {
		if store, err = newReportStore(ctx, cfg.Redis, cfg.App.EncryptionKey, log); err != nil {
			return err
		}
		if store == nil {
			return errors.New("--persist requires REDIS_ADDR")
		}
	}
	var notifier notify.Notifier
	if sendNotify {
		telegram, err := newTelegram(cfg.Telegram)
		if err != nil {
			return err
		}
		if telegram == nil {
			return errors.New("--notify requires TELEGRAM_BOT_TOKEN and TELEGRAM_CHANNEL")
		}
		notifier = telegram
	}

	var progress io.Writer
	if showProgress {
		progress = os.Stderr
	}

	log.Info("starting run",
		zap.Int("tasks", cfg.Workload.Tasks),
		zap.Duration("min_sleep", cfg.Workload.MinSleep),
		zap.Duration("max_sleep", cfg.Workload.MaxSleep))

	r, runErr := runner.Run(ctx, runner.Options{
		Pool:       poolCfg,
		Tasks:      cfg.Workload.Tasks,
		Sleeper:    sleeper,
		SubmitRate: cfg.Workload.SubmitRate,
		Seed:       cfg.Workload.Seed,
		Logger:     log,
		Progress:   progress,
	})
	if r == nil {
		return runErr
	}

	if err := writeReport(r); err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	publish(publishCtx, r, store, notifier, log)

	return runErr
}

func writeReport(r *report.Report) error {
	if outputFile == "" {
		return report.Render(os.Stdout, r, outputFormat)
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := report.Render(file, r, outputFormat); err != nil {
		return err
	}
	fmt.Printf("Report saved to %s\n", outputFile)
	return nil
}
