package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/corvid/pixmill/internal/metrics"
	"github.com/google/uuid"
)

// Annotation is the best-effort result of annotating an image. An empty
// Annotation means the analysis was unavailable; a converted item is still
// complete without it.
type Annotation struct {
	Description string
	Tags        []string
}

// Empty reports whether the annotation carries no information.
func (a Annotation) Empty() bool {
	return a.Description == "" && len(a.Tags) == 0
}

// Annotator wraps a Provider with the adapter contract the orchestrator
// relies on: Annotate never returns an error. Any provider failure, timeout
// included, is converted into an empty Annotation and logged.
type Annotator struct {
	provider Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewAnnotator creates an Annotator. A zero timeout disables the per-call
// deadline and leaves cancellation to the caller's context.
func NewAnnotator(provider Provider, timeout time.Duration, logger *slog.Logger) *Annotator {
	return &Annotator{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Annotate describes and tags the image, best effort. One provider attempt
// per call; the provider may retry transient errors internally.
func (a *Annotator) Annotate(ctx context.Context, imageData []byte, contentType string, itemID uuid.UUID) Annotation {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	desc, err := a.provider.DescribeImage(ctx, DescribeParams{
		ImageData:   imageData,
		ContentType: contentType,
		ItemID:      itemID,
	})
	if err != nil {
		// Annotation failure never fails the item.
		a.logger.Warn("image annotation failed, continuing without tags",
			"item_id", itemID,
			"error", err,
		)
		metrics.AnnotationsTotal.WithLabelValues("failed").Inc()
		return Annotation{}
	}

	metrics.AnnotationsTotal.WithLabelValues("ok").Inc()
	return Annotation{
		Description: desc.Summary,
		Tags:        desc.Tags,
	}
}
