package ai_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/corvid/pixmill/internal/ai"
	"github.com/corvid/pixmill/internal/ai/mock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAnnotator_Success(t *testing.T) {
	provider := mock.New(testLogger())
	provider.DescribeImageResponse = &ai.Description{
		Summary: "A red square on white background.",
		Tags:    []string{"red", "square", "abstract"},
	}

	annotator := ai.NewAnnotator(provider, 5*time.Second, testLogger())
	ann := annotator.Annotate(context.Background(), []byte{1, 2, 3}, "image/png", uuid.New())

	assert.Equal(t, "A red square on white background.", ann.Description)
	assert.Equal(t, []string{"red", "square", "abstract"}, ann.Tags)
	assert.False(t, ann.Empty())
	assert.Equal(t, 1, provider.DescribeImageCalls)
}

func TestAnnotator_ProviderFailureYieldsEmptyAnnotation(t *testing.T) {
	provider := mock.New(testLogger())
	provider.DescribeImageError = errors.New("remote exploded")

	annotator := ai.NewAnnotator(provider, 5*time.Second, testLogger())
	ann := annotator.Annotate(context.Background(), []byte{1, 2, 3}, "image/png", uuid.New())

	// The adapter contract: failures become an empty result, never an error.
	assert.True(t, ann.Empty())
	assert.Empty(t, ann.Description)
	assert.Empty(t, ann.Tags)
}

func TestAnnotator_TimeoutIsIsolated(t *testing.T) {
	provider := &slowProvider{delay: 200 * time.Millisecond}

	annotator := ai.NewAnnotator(provider, 10*time.Millisecond, testLogger())
	ann := annotator.Annotate(context.Background(), []byte{1}, "image/png", uuid.New())

	assert.True(t, ann.Empty())
}

func TestAnnotator_SingleAttemptPerCall(t *testing.T) {
	provider := mock.New(testLogger())
	provider.DescribeImageError = errors.New("boom")

	annotator := ai.NewAnnotator(provider, time.Second, testLogger())
	annotator.Annotate(context.Background(), []byte{1}, "image/png", uuid.New())
	annotator.Annotate(context.Background(), []byte{1}, "image/png", uuid.New())

	assert.Equal(t, 2, provider.DescribeImageCalls)
}

// slowProvider blocks until its delay elapses or the context is canceled.
type slowProvider struct {
	delay time.Duration
}

func (p *slowProvider) DescribeImage(ctx context.Context, params ai.DescribeParams) (*ai.Description, error) {
	select {
	case <-time.After(p.delay):
		return &ai.Description{Summary: "too late"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
