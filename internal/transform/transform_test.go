package transform

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/corvid/pixmill/internal/domain"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidImage returns a w x h buffer filled with a single color.
func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// pngBytes encodes an image as PNG for use as decoder input.
func pngBytes(t *testing.T, img *image.NRGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	red := solidImage(10, 8, color.NRGBA{R: 255, A: 255})

	t.Run("valid png", func(t *testing.T) {
		img, err := Decode(pngBytes(t, red), "image/png")
		require.NoError(t, err)
		assert.Equal(t, 10, img.Bounds().Dx())
		assert.Equal(t, 8, img.Bounds().Dy())
	})

	t.Run("valid jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, imaging.Encode(&buf, red, imaging.JPEG))
		_, err := Decode(buf.Bytes(), "image/jpeg")
		assert.NoError(t, err)
	})

	t.Run("garbage bytes", func(t *testing.T) {
		_, err := Decode([]byte("this is not an image at all, sorry"), "image/png")
		require.Error(t, err)
		assert.Equal(t, domain.EDECODE, domain.ErrorCode(err))
	})

	t.Run("empty bytes", func(t *testing.T) {
		_, err := Decode(nil, "image/png")
		require.Error(t, err)
		assert.Equal(t, domain.EDECODE, domain.ErrorCode(err))
	})
}

func TestResize(t *testing.T) {
	src := solidImage(100, 60, color.NRGBA{G: 255, A: 255})

	tests := []struct {
		name       string
		ratio      float64
		wantWidth  int
		wantHeight int
		wantErr    bool
	}{
		{"ratio one is a no-op that still succeeds", 1.0, 100, 60, false},
		{"downscale", 0.5, 50, 30, false},
		{"upscale", 2.0, 200, 120, false},
		{"rounding", 0.25, 25, 15, false},
		{"zero ratio", 0, 0, 0, true},
		{"negative ratio", -1, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Resize(src, tt.ratio)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, out.Bounds().Dx())
			assert.Equal(t, tt.wantHeight, out.Bounds().Dy())
		})
	}

	t.Run("tiny source never collapses to empty", func(t *testing.T) {
		out, err := Resize(solidImage(3, 3, color.NRGBA{A: 255}), 0.1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.Bounds().Dx(), 1)
		assert.GreaterOrEqual(t, out.Bounds().Dy(), 1)
	})
}

func TestEncode(t *testing.T) {
	src := solidImage(16, 16, color.NRGBA{B: 200, A: 255})

	t.Run("jpeg round trip", func(t *testing.T) {
		data, err := Encode(src, domain.FormatJPEG, 0.8)
		require.NoError(t, err)
		img, err := imaging.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 16, img.Bounds().Dx())
	})

	t.Run("png ignores quality without error", func(t *testing.T) {
		hi, err := Encode(src, domain.FormatPNG, 1.0)
		require.NoError(t, err)
		lo, err := Encode(src, domain.FormatPNG, 0.1)
		require.NoError(t, err)
		assert.Equal(t, hi, lo)
	})

	t.Run("webp round trip", func(t *testing.T) {
		data, err := Encode(src, domain.FormatWEBP, 0.8)
		require.NoError(t, err)
		img, err := Decode(data, "image/webp")
		require.NoError(t, err)
		assert.Equal(t, 16, img.Bounds().Dx())
	})

	t.Run("avif requires ffmpeg", func(t *testing.T) {
		data, err := Encode(src, domain.FormatAVIF, 0.8)
		if !FFmpegAvailable() {
			require.Error(t, err)
			assert.Equal(t, domain.EENCODE, domain.ErrorCode(err))
			return
		}
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("svg is not a raster encoding", func(t *testing.T) {
		_, err := Encode(src, domain.FormatSVG, 0.8)
		require.Error(t, err)
		assert.Equal(t, domain.EENCODE, domain.ErrorCode(err))
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := Encode(src, domain.Format("gif"), 0.8)
		require.Error(t, err)
		assert.Equal(t, domain.EENCODE, domain.ErrorCode(err))
	})
}

func TestEncode_Deterministic(t *testing.T) {
	src := solidImage(24, 24, color.NRGBA{R: 10, G: 120, B: 240, A: 255})

	for _, format := range []domain.Format{domain.FormatJPEG, domain.FormatPNG} {
		t.Run(string(format), func(t *testing.T) {
			a, err := Encode(src, format, 0.8)
			require.NoError(t, err)
			b, err := Encode(src, format, 0.8)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}
