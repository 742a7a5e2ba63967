// Package pipeline orchestrates the transform primitives for a single item:
// it picks the raster or vector path from the settings and produces one
// output blob.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/corvid/pixmill/internal/domain"
	"github.com/corvid/pixmill/internal/transform"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Converter runs the per-item conversion pipeline.
type Converter interface {
	// ConvertOne converts one source image according to the settings.
	// The raster path is decode -> resize -> encode; the vector path is
	// decode -> resize -> quantize -> vectorize -> serialize. Any primitive
	// failure is returned as a domain.ECONVERT error wrapping the cause.
	// The call never mutates settings or the source buffer.
	ConvertOne(ctx context.Context, sourceBytes []byte, mimeType string, settings domain.ConversionSettings) (*Output, error)
}

// Output is the product of a successful conversion.
type Output struct {
	Bytes  []byte
	Size   int64
	Width  int // output dimensions after resize
	Height int
}

// =============================================================================
// Implementation
// =============================================================================

type converter struct {
	logger *slog.Logger
}

// NewConverter creates a Converter backed by the transform primitives.
func NewConverter(logger *slog.Logger) Converter {
	return &converter{logger: logger}
}

// ConvertOne converts one source image according to the settings.
func (c *converter) ConvertOne(ctx context.Context, sourceBytes []byte, mimeType string, settings domain.ConversionSettings) (*Output, error) {
	const op = "pipeline.convert_one"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	settings = settings.Normalized()
	if err := settings.Validate(); err != nil {
		return nil, domain.Wrap(err, domain.ECONVERT, op, "invalid conversion settings")
	}

	img, err := transform.Decode(sourceBytes, mimeType)
	if err != nil {
		return nil, domain.Wrap(err, domain.ECONVERT, op, "image could not be decoded")
	}

	img, err = transform.Resize(img, settings.ResizeRatio)
	if err != nil {
		return nil, domain.Wrap(err, domain.ECONVERT, op, "resize failed")
	}

	bounds := img.Bounds()

	var data []byte
	if settings.Vector {
		quantized, err := transform.Quantize(img, settings.ColorCount)
		if err != nil {
			return nil, domain.Wrap(err, domain.ECONVERT, op, "quantization failed")
		}
		data = transform.Vectorize(quantized).Encode()
	} else {
		data, err = transform.Encode(img, settings.OutputFormat, settings.Quality)
		if err != nil {
			return nil, domain.Wrap(err, domain.ECONVERT, op, "encoding failed")
		}
	}

	c.logger.Debug("converted image",
		"mime_type", mimeType,
		"format", settings.OutputFormat,
		"vector", settings.Vector,
		"input_size", len(sourceBytes),
		"output_size", len(data),
	)

	return &Output{
		Bytes:  data,
		Size:   int64(len(data)),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
