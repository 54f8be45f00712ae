package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/leozw/domain-guardian/internal/app"
	"github.com/leozw/domain-guardian/internal/config"
	"github.com/leozw/domain-guardian/internal/scheduler"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := cfg.ValidateSweeper(); err != nil {
		logger.Fatal("Invalid sweeper configuration", zap.Error(err))
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(application.Sweeper, cfg.Sweep.Interval, cfg.Admin.Secret, logger)

	if *once {
		report, err := sched.RunOnce(ctx)
		if err != nil {
			logger.Error("Sweep failed", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("Sweep complete", zap.Int("checked", report.Checked), zap.Int("demoted", report.Demoted))
		return
	}

	go application.Metrics.StartRemoteWrite(ctx)

	logger.Info("Sweeper started")
	sched.Start(ctx)
	logger.Info("Sweeper exited")
}
