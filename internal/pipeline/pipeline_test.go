package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/corvid/pixmill/internal/domain"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testImageBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestConvertOne_RasterPath(t *testing.T) {
	conv := NewConverter(testLogger())
	source := testImageBytes(t, 40, 30, color.NRGBA{R: 255, A: 255})

	settings := domain.ConversionSettings{
		OutputFormat: domain.FormatJPEG,
		Quality:      0.8,
		ResizeRatio:  0.5,
	}

	out, err := conv.ConvertOne(context.Background(), source, "image/png", settings)
	require.NoError(t, err)
	assert.Equal(t, 20, out.Width)
	assert.Equal(t, 15, out.Height)
	assert.Equal(t, int64(len(out.Bytes)), out.Size)

	decoded, err := imaging.Decode(bytes.NewReader(out.Bytes))
	require.NoError(t, err)
	assert.Equal(t, 20, decoded.Bounds().Dx())
}

func TestConvertOne_RatioOnePreservesDimensions(t *testing.T) {
	conv := NewConverter(testLogger())
	source := testImageBytes(t, 33, 21, color.NRGBA{G: 200, A: 255})

	out, err := conv.ConvertOne(context.Background(), source, "image/png", domain.ConversionSettings{
		OutputFormat: domain.FormatPNG,
		Quality:      0.8,
		ResizeRatio:  1.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 33, out.Width)
	assert.Equal(t, 21, out.Height)
}

func TestConvertOne_VectorPath(t *testing.T) {
	conv := NewConverter(testLogger())
	source := testImageBytes(t, 100, 100, color.NRGBA{R: 255, A: 255})

	settings := domain.ConversionSettings{
		OutputFormat: domain.FormatSVG,
		Quality:      0.8,
		ResizeRatio:  1.0,
		Vector:       true,
		ColorCount:   8,
	}

	out, err := conv.ConvertOne(context.Background(), source, "image/png", settings)
	require.NoError(t, err)

	svg := string(out.Bytes)
	assert.Contains(t, svg, `viewBox="0 0 100 100"`)
	// Single-color source quantizes to one palette entry and one path.
	assert.Equal(t, 1, strings.Count(svg, "<path"))
	assert.Contains(t, svg, `d="M0 0h100v100h-100z"`)
}

func TestConvertOne_VectorOverridesFormat(t *testing.T) {
	conv := NewConverter(testLogger())
	source := testImageBytes(t, 10, 10, color.NRGBA{B: 255, A: 255})

	// Vector set with a raster format: normalization forces SVG.
	out, err := conv.ConvertOne(context.Background(), source, "image/png", domain.ConversionSettings{
		OutputFormat: domain.FormatJPEG,
		Quality:      0.8,
		ResizeRatio:  1.0,
		Vector:       true,
		ColorCount:   4,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out.Bytes), "<svg"))
}

func TestConvertOne_DecodeFailure(t *testing.T) {
	conv := NewConverter(testLogger())

	_, err := conv.ConvertOne(context.Background(), []byte("corrupted bytes"), "image/png", domain.DefaultSettings())
	require.Error(t, err)
	assert.Equal(t, domain.ECONVERT, domain.ErrorCode(err))
}

func TestConvertOne_InvalidSettings(t *testing.T) {
	conv := NewConverter(testLogger())
	source := testImageBytes(t, 10, 10, color.NRGBA{A: 255})

	_, err := conv.ConvertOne(context.Background(), source, "image/png", domain.ConversionSettings{
		OutputFormat: domain.FormatJPEG,
		Quality:      0.8,
		ResizeRatio:  -1,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ECONVERT, domain.ErrorCode(err))
}

func TestConvertOne_Deterministic(t *testing.T) {
	conv := NewConverter(testLogger())
	source := testImageBytes(t, 30, 30, color.NRGBA{R: 40, G: 80, B: 120, A: 255})

	settings := domain.ConversionSettings{
		OutputFormat: domain.FormatPNG,
		Quality:      0.8,
		ResizeRatio:  0.5,
	}

	a, err := conv.ConvertOne(context.Background(), source, "image/png", settings)
	require.NoError(t, err)
	b, err := conv.ConvertOne(context.Background(), source, "image/png", settings)
	require.NoError(t, err)
	assert.Equal(t, a.Bytes, b.Bytes)
}

func TestConvertOne_CanceledContext(t *testing.T) {
	conv := NewConverter(testLogger())
	source := testImageBytes(t, 10, 10, color.NRGBA{A: 255})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conv.ConvertOne(ctx, source, "image/png", domain.DefaultSettings())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderPreview(t *testing.T) {
	renderer := NewImagingRenderer()
	source := testImageBytes(t, 600, 400, color.NRGBA{R: 100, G: 150, B: 200, A: 255})

	preview, w, h, err := renderer.RenderPreview(bytes.NewReader(source))
	require.NoError(t, err)
	assert.Equal(t, 600, w)
	assert.Equal(t, 400, h)

	img, err := imaging.Decode(bytes.NewReader(preview))
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), PreviewMaxWidth)
	assert.LessOrEqual(t, img.Bounds().Dy(), PreviewMaxHeight)
}

func TestRenderPreview_InvalidInput(t *testing.T) {
	renderer := NewImagingRenderer()
	_, _, _, err := renderer.RenderPreview(strings.NewReader("not an image"))
	assert.Error(t, err)
}
