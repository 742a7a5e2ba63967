// Package mock provides a configurable ai.Provider for testing and
// development.
package mock

import (
	"context"
	"log/slog"
	"time"

	"github.com/corvid/pixmill/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	DescribeImageResponse *ai.Description
	DescribeImageError    error

	// Call tracking for testing
	DescribeImageCalls int
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// DescribeImage returns a canned description and tag set
func (p *Provider) DescribeImage(ctx context.Context, params ai.DescribeParams) (*ai.Description, error) {
	p.DescribeImageCalls++

	// If a custom response or error is set, use it
	if p.DescribeImageError != nil {
		return nil, p.DescribeImageError
	}
	if p.DescribeImageResponse != nil {
		return p.DescribeImageResponse, nil
	}

	// Default canned response
	return &ai.Description{
		Summary: "A sample photograph with a clearly visible main subject against a neutral background.",
		Tags:    []string{"photo", "subject", "neutral", "sample"},
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  850,
			OutputTokens: 120,
			CostCents:    1,
			Duration:     150 * time.Millisecond,
		},
	}, nil
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.DescribeImageCalls = 0
	p.DescribeImageResponse = nil
	p.DescribeImageError = nil
}
