package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corvid/pixmill/internal"
	"github.com/corvid/pixmill/internal/ai"
	"github.com/corvid/pixmill/internal/ai/anthropic"
	"github.com/corvid/pixmill/internal/ai/mock"
	"github.com/corvid/pixmill/internal/archive"
	"github.com/corvid/pixmill/internal/batch"
	"github.com/corvid/pixmill/internal/pipeline"
	"github.com/corvid/pixmill/internal/queue"
	"github.com/corvid/pixmill/internal/storage"
)

func run() error {
	// Cancel on interrupt; the running batch stops between items.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	inputs := os.Args[1:]
	if len(inputs) == 0 {
		return fmt.Errorf("usage: pixmill <image files...>")
	}

	// Initialize artifact store
	var store storage.Store
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		store, err = storage.NewR2Store(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		store, err = storage.NewLocalStore(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("store initialization failed: %w", err)
	}

	// Initialize AI provider
	var provider ai.Provider
	switch cfg.AIProvider {
	case "anthropic":
		provider, err = anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("AI provider initialization failed: %w", err)
		}
	default:
		provider = mock.New(logger)
	}
	annotator := ai.NewAnnotator(provider, cfg.AIRequestTimeout, logger)

	// Optional metrics listener
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("GET /metrics", promhttp.Handler())
			logger.Info("metrics listener started", "address", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	q := queue.NewManager(store, pipeline.NewImagingRenderer(), logger)
	orchestrator := batch.NewOrchestrator(q, pipeline.NewConverter(logger), annotator, store, logger)

	// ==========================================================================
	// Intake
	// ==========================================================================

	for _, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable file", "path", path, "error", err)
			continue
		}

		name := filepath.Base(path)
		if !storage.IsAllowedImageType(storage.DetectContentType(name, data, "")) {
			// Non-image files are dropped without failing the run.
			logger.Debug("skipping non-image file", "path", path)
			continue
		}

		if _, err := q.Enqueue(ctx, data, name, ""); err != nil {
			logger.Warn("skipping file", "path", path, "error", err)
		}
	}

	if q.Len() == 0 {
		return fmt.Errorf("no usable image files among %d input(s)", len(inputs))
	}
	logger.Info("intake complete", "queued", q.Len(), "inputs", len(inputs))

	// ==========================================================================
	// Batch run and export
	// ==========================================================================

	settings := cfg.ConversionSettings()

	summary, err := orchestrator.RunBatch(ctx, settings)
	if err != nil {
		return fmt.Errorf("batch run failed: %w", err)
	}

	if summary.Completed > 0 {
		if err := exportResults(ctx, cfg, q, store, summary, logger); err != nil {
			return err
		}
	}

	for _, item := range q.Items() {
		logger.Info("item result",
			"name", item.OriginalName,
			"status", item.Status,
			"error", item.ErrorMessage,
		)
	}

	if summary.Canceled {
		logger.Warn("run canceled", "requeued", summary.Requeued)
	}
	logger.Info("done",
		"completed", summary.Completed,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)

	return nil
}

// exportResults writes every converted output plus the batch archive to the
// output directory, and stores the archive alongside the other artifacts.
func exportResults(ctx context.Context, cfg *internal.Config, q *queue.Manager, store storage.Store, summary *batch.Summary, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	settings := cfg.ConversionSettings()

	entries := make([]archive.Entry, 0, summary.Completed)
	for _, item := range q.CompletedEntries() {
		name := item.OutputName(settings.OutputFormat)
		entries = append(entries, archive.Entry{Name: name, Data: item.Result.OutputBytes})

		path := filepath.Join(cfg.OutputDir, name)
		if err := os.WriteFile(path, item.Result.OutputBytes, 0644); err != nil {
			logger.Warn("failed to write output file", "path", path, "error", err)
		}
	}

	archiveBytes, err := archive.Build(entries)
	if err != nil {
		return fmt.Errorf("archive build failed: %w", err)
	}

	archivePath := filepath.Join(cfg.OutputDir, archive.FileName)
	if err := os.WriteFile(archivePath, archiveBytes, 0644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	key := storage.ArchiveKey(summary.RunID)
	if err := store.Put(ctx, key, bytes.NewReader(archiveBytes), storage.PutOptions{
		ContentType: "application/zip",
		Overwrite:   true,
	}); err != nil {
		logger.Warn("failed to store archive", "key", key, "error", err)
	}

	logger.Info("archive written", "path", archivePath, "entries", len(entries), "size", len(archiveBytes))

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
