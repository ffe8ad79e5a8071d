package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	corecfg "github.com/aevon-lab/aevon-insights/internal/core/config"
	"github.com/aevon-lab/aevon-insights/internal/core/storage"
	"github.com/aevon-lab/aevon-insights/internal/core/storage/eventstore"
	"github.com/aevon-lab/aevon-insights/internal/insights"
	"github.com/aevon-lab/aevon-insights/internal/server"
)

func main() {
	configPath := flag.String("config", "insights.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"driver", cfg.Database.Driver,
		"default_step", cfg.Insights.DefaultStep,
		"scheduler_enabled", cfg.Scheduler.Enabled)

	// 2. Open the event store (runs migrations)
	store, err := eventstore.Open(cfg.Database)
	if err != nil {
		slog.Error("Failed to initialize event store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// 3. Insights pipeline behind a circuit breaker
	breaker := storage.NewBreaker(store, storage.BreakerSettings{
		Name:             cfg.Database.Driver,
		FailureThreshold: cfg.Insights.BreakerFailures,
		OpenTimeout:      cfg.Insights.BreakerTimeout,
	})
	defaultStep, _ := cfg.Insights.Step() // validated by Load
	service := insights.NewService(insights.NewBuilder(breaker, defaultStep))

	// 4. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode, store.DB(), breaker)
	service.RegisterRoutes(srv.Engine)

	// 5. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Scheduler.Enabled {
		schedCfg, err := insights.SchedulerConfigFrom(cfg.Scheduler)
		if err != nil {
			slog.Error("Invalid scheduler config", "error", err)
			os.Exit(1)
		}
		scheduler := insights.NewScheduler(service, schedCfg)
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Insights scheduler disabled by config")
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
