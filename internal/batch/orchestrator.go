// Package batch runs conversion passes over the pending queue items.
//
// A run snapshots its settings and membership at start: items enqueued
// mid-run wait for the next pass, and settings changes never affect a run
// in flight. Items are processed strictly one at a time; a failure marks
// that item and the run moves on.
package batch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/corvid/pixmill/internal/ai"
	"github.com/corvid/pixmill/internal/domain"
	"github.com/corvid/pixmill/internal/metrics"
	"github.com/corvid/pixmill/internal/pipeline"
	"github.com/corvid/pixmill/internal/queue"
	"github.com/corvid/pixmill/internal/storage"
)

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator drives batch runs over the queue.
type Orchestrator struct {
	queue     *queue.Manager
	converter pipeline.Converter
	annotator *ai.Annotator // nil disables AI analysis entirely
	store     storage.Store
	logger    *slog.Logger
}

// NewOrchestrator creates a batch orchestrator. The annotator may be nil,
// in which case AI analysis is skipped regardless of settings.
func NewOrchestrator(q *queue.Manager, converter pipeline.Converter, annotator *ai.Annotator, store storage.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		queue:     q,
		converter: converter,
		annotator: annotator,
		store:     store,
		logger:    logger,
	}
}

// Summary reports the outcome of one batch run.
type Summary struct {
	RunID     uuid.UUID
	StartedAt time.Time
	Duration  time.Duration
	Selected  int  // Items captured by the run snapshot
	Completed int  // Items that reached Complete
	Failed    int  // Items that reached Error
	Requeued  int  // Items returned to Idle after cancellation
	Canceled  bool // True when the run stopped early on context cancellation
}

// =============================================================================
// Batch Execution
// =============================================================================

// RunBatch processes every pending item with a snapshot of the given
// settings, sequentially and in queue order.
//
// Cancellation is honored between items: the item being converted finishes
// or fails on its own, and every item not yet started is returned to Idle.
// Per-item failures never abort the run.
func (o *Orchestrator) RunBatch(ctx context.Context, settings domain.ConversionSettings) (*Summary, error) {
	const op = "batch.run"

	settings = settings.Normalized()
	if err := settings.Validate(); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "invalid conversion settings")
	}

	summary := &Summary{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
	}

	snapshot := o.queue.SelectPending()
	summary.Selected = len(snapshot)
	if len(snapshot) == 0 {
		o.logger.Info("batch run skipped, no pending items", "run_id", summary.RunID)
		return summary, nil
	}

	o.logger.Info("batch run started",
		"run_id", summary.RunID,
		"items", len(snapshot),
		"format", settings.OutputFormat,
	)

	// Claim the whole snapshot up front so membership is fixed for the run.
	claimed := snapshot[:0]
	for _, item := range snapshot {
		if err := o.queue.MarkProcessing(item.ID); err != nil {
			o.logger.Warn("item skipped, could not claim", "run_id", summary.RunID, "item_id", item.ID, "error", err)
			summary.Selected--
			continue
		}
		claimed = append(claimed, item)
	}

	for i, item := range claimed {
		if ctx.Err() != nil {
			o.requeueRemaining(claimed[i:], summary)
			break
		}

		o.processItem(ctx, item, settings, summary)
	}

	summary.Duration = time.Since(summary.StartedAt)

	metrics.BatchRunsTotal.Inc()
	metrics.BatchDuration.Observe(summary.Duration.Seconds())

	o.logger.Info("batch run finished",
		"run_id", summary.RunID,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"requeued", summary.Requeued,
		"canceled", summary.Canceled,
		"duration", summary.Duration,
	)

	return summary, nil
}

// processItem converts a single claimed item and records its terminal state.
func (o *Orchestrator) processItem(ctx context.Context, item domain.QueueItem, settings domain.ConversionSettings, summary *Summary) {
	start := time.Now()

	out, err := o.converter.ConvertOne(ctx, item.SourceBytes, item.MIMEType, settings)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			o.requeueRemaining([]domain.QueueItem{item}, summary)
			return
		}

		o.failItem(item.ID, err, summary)
		return
	}

	result := &domain.ProcessedResult{
		OutputBytes: out.Bytes,
		OutputSize:  out.Size,
	}

	// AI analysis is best-effort: the annotator logs failures and returns
	// an empty annotation, never an error.
	if settings.UseAIAnalysis && o.annotator != nil {
		annotation := o.annotator.Annotate(ctx, item.SourceBytes, item.MIMEType, item.ID)
		result.AIDescription = annotation.Description
		result.AITags = annotation.Tags
	}

	key := storage.OutputKey(item.ID, settings.OutputFormat.Extension())
	if err := o.store.Put(ctx, key, bytes.NewReader(out.Bytes), storage.PutOptions{
		ContentType: settings.OutputFormat.MIMEType(),
		Overwrite:   true,
	}); err != nil {
		o.failItem(item.ID, err, summary)
		return
	}
	result.OutputKey = key

	if err := o.queue.MarkComplete(item.ID, result); err != nil {
		o.logger.Error("failed to record completion", "item_id", item.ID, "error", err)
		summary.Failed++
		return
	}

	format := string(settings.OutputFormat)
	metrics.ItemsProcessedTotal.WithLabelValues("complete").Inc()
	metrics.ConversionDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
	metrics.OutputBytesTotal.WithLabelValues(format).Add(float64(out.Size))

	summary.Completed++

	o.logger.Debug("item converted",
		"item_id", item.ID,
		"name", item.OriginalName,
		"output_size", out.Size,
		"duration", time.Since(start),
	)
}

// failItem marks an item as failed and records the failure.
func (o *Orchestrator) failItem(id uuid.UUID, cause error, summary *Summary) {
	message := domain.ErrorMessage(cause)

	if err := o.queue.MarkError(id, message); err != nil {
		o.logger.Error("failed to record item failure", "item_id", id, "error", err)
	}

	metrics.ItemsProcessedTotal.WithLabelValues("error").Inc()
	summary.Failed++

	o.logger.Warn("item conversion failed", "item_id", id, "error", cause)
}

// requeueRemaining returns unstarted items to Idle after a cancellation.
func (o *Orchestrator) requeueRemaining(items []domain.QueueItem, summary *Summary) {
	summary.Canceled = true

	for _, item := range items {
		if err := o.queue.Requeue(item.ID); err != nil {
			o.logger.Error("failed to requeue item after cancel", "item_id", item.ID, "error", err)
			continue
		}
		summary.Requeued++
	}
}
