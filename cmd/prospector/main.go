// Package main wires together the prospector service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	openaianalyzer "github.com/seoforge/inlink-prospector/internal/analyzer/openai"
	"github.com/seoforge/inlink-prospector/internal/api"
	"github.com/seoforge/inlink-prospector/internal/clock/system"
	"github.com/seoforge/inlink-prospector/internal/config"
	"github.com/seoforge/inlink-prospector/internal/crawler"
	"github.com/seoforge/inlink-prospector/internal/id/uuid"
	"github.com/seoforge/inlink-prospector/internal/jobs"
	"github.com/seoforge/inlink-prospector/internal/logging"
	"github.com/seoforge/inlink-prospector/internal/progress"
	"github.com/seoforge/inlink-prospector/internal/progress/sinks"
	"github.com/seoforge/inlink-prospector/internal/storage/local"
	"github.com/seoforge/inlink-prospector/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	storeCfg := local.Config{BaseDir: cfg.Jobs.Dir}
	jobStore, err := local.NewJobStore(storeCfg)
	if err != nil {
		return fmt.Errorf("init job store: %w", err)
	}
	resultStore, err := local.NewResultStore(storeCfg)
	if err != nil {
		return fmt.Errorf("init result store: %w", err)
	}
	pageStore, err := local.NewPageStore(storeCfg)
	if err != nil {
		return fmt.Errorf("init page store: %w", err)
	}

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, promSink, sinks.NewLogSink(logger))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	apiKey := cfg.Analyzer.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	analyze, err := openaianalyzer.New(openaianalyzer.Config{
		APIKey:  apiKey,
		Model:   cfg.Analyzer.Model,
		Timeout: time.Duration(cfg.Analyzer.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init analyzer: %w", err)
	}

	clk := system.New()
	controller := jobs.NewController(jobStore, resultStore, pageStore, clk, logger)
	if err := controller.RecoverStale(ctx); err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}

	runner := worker.New(jobStore, resultStore, analyze, clk, hub, worker.Config{
		PollInterval:          cfg.PollInterval(),
		PageDelay:             cfg.PageDelay(),
		MaxSuggestionsDefault: cfg.Jobs.MaxSuggestionsPerPage,
	}, logger)

	siteCrawler := crawler.New(crawler.Config{
		UserAgent:    cfg.Crawler.UserAgent,
		Timeout:      time.Duration(cfg.Crawler.TimeoutSeconds) * time.Second,
		Delay:        time.Duration(cfg.Crawler.DelayMs) * time.Millisecond,
		MaxPages:     cfg.Crawler.MaxPagesDefault,
		IgnoreRobots: cfg.Crawler.IgnoreRobots,
	}, logger)

	server := api.NewServer(
		controller,
		runner,
		siteCrawler,
		resultStore,
		pageStore,
		uuid.NewGenerator(),
		cfg,
		logger,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	runner.Wait()
	return nil
}
