package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ryosukesatoh/repost-digest/internal/collector"
	"github.com/ryosukesatoh/repost-digest/internal/config"
	"github.com/ryosukesatoh/repost-digest/internal/digest"
	"github.com/ryosukesatoh/repost-digest/internal/notion"
	"github.com/ryosukesatoh/repost-digest/internal/retry"
	"github.com/ryosukesatoh/repost-digest/internal/runner"
	"github.com/ryosukesatoh/repost-digest/internal/state"
	"github.com/ryosukesatoh/repost-digest/internal/summarizer"
	"github.com/ryosukesatoh/repost-digest/internal/timewindow"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run the pipeline once and exit")
	dryRun := flag.Bool("dry-run", false, "render output locally instead of writing to the destination")
	flag.Parse()

	log := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dryRun {
		cfg.DryRun = true
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	window, err := timewindow.New(cfg.Timezone)
	if err != nil {
		log.Fatalf("Failed to load timezone: %v", err)
	}

	// Build collector
	col := collector.NewXCollector(cfg.Source.BearerToken, cfg.Source.UserID, cfg.Source.MaxResults, window, log)

	// Build summarizer
	var gen summarizer.Generator
	if cfg.Generation.Enabled && cfg.Generation.APIKey != "" {
		gen = summarizer.NewGeminiGenerator(cfg.Generation.APIKey, cfg.Generation.Model)
	}
	scheduler := retry.NewScheduler(cfg.Generation.MaxRPM, log)
	sum := summarizer.NewBatch(gen, scheduler, window, summarizer.Options{
		Enabled:   cfg.Generation.Enabled,
		Lines:     cfg.Generation.SummaryLines,
		Language:  cfg.Generation.Language,
		BatchSize: cfg.Generation.BatchSize,
	}, log)

	// Build digest writer
	store := notion.NewClient(cfg.Notion.Token, cfg.Notion.DatabaseID)
	writer := digest.NewWriter(store, window, log)
	writer.DryRun = cfg.DryRun

	if cfg.StatePath != "" && !cfg.DryRun {
		markers, err := state.Open(cfg.StatePath)
		if err != nil {
			log.Fatalf("Failed to open state store: %v", err)
		}
		defer markers.Close()
		writer.Markers = markers
	}

	// Build pipeline
	p := runner.New(col, sum, writer, log)

	// Single-run mode: run the pipeline once and exit
	if *once {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		log.Info("Running digest (once mode)...")
		if err := p.Run(ctx); err != nil {
			log.Fatalf("Pipeline failed: %v", err)
		}
		log.Info("Done")
		return
	}

	// Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run immediately on startup if configured
	if cfg.RunOnStart {
		log.Info("Running initial digest...")
		if err := p.Run(ctx); err != nil {
			log.Errorf("Initial run failed: %v", err)
		}
	}

	// Set up cron scheduler
	c := cron.New()
	_, err = c.AddFunc(cfg.Schedule, func() {
		log.Info("Cron triggered, running digest...")
		if err := p.Run(ctx); err != nil {
			log.Errorf("Scheduled run failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to set up cron schedule %q: %v", cfg.Schedule, err)
	}
	c.Start()
	log.Infof("Scheduled digest with cron expression: %s", cfg.Schedule)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("Received signal %v, shutting down...", sig)

	cancel()
	c.Stop()

	log.Info("Shutdown complete")
}
