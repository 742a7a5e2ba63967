package transform

import (
	"image"
	"image/color"
	"testing"

	"github.com/corvid/pixmill/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientImage returns a w x h buffer with smoothly varying colors.
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: uint8((x + y) * 255 / (w + h)),
				A: 255,
			})
		}
	}
	return img
}

func TestQuantize_SingleColor(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	q, err := Quantize(solidImage(100, 100, red), 8)
	require.NoError(t, err)

	// A single-color image quantizes to a single palette entry no matter
	// how large the color budget is.
	require.Len(t, q.Palette, 1)
	assert.Equal(t, red, q.Palette[0])
	assert.Equal(t, 100, q.Width)
	assert.Equal(t, 100, q.Height)
	for _, idx := range q.Index {
		assert.Equal(t, uint8(0), idx)
	}
}

func TestQuantize_PaletteBudget(t *testing.T) {
	src := gradientImage(64, 64)

	for _, colorCount := range []int{2, 4, 8, 16, 32, 64} {
		q, err := Quantize(src, colorCount)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(q.Palette), colorCount, "color count %d", colorCount)

		// Every pixel maps to exactly one palette entry.
		require.Len(t, q.Index, 64*64)
		for _, idx := range q.Index {
			assert.Less(t, int(idx), len(q.Palette))
		}
	}
}

func TestQuantize_Deterministic(t *testing.T) {
	src := gradientImage(48, 48)

	a, err := Quantize(src, 16)
	require.NoError(t, err)
	b, err := Quantize(src, 16)
	require.NoError(t, err)

	assert.Equal(t, a.Palette, b.Palette)
	assert.Equal(t, a.Index, b.Index)
}

func TestQuantize_InvalidColorCount(t *testing.T) {
	src := solidImage(4, 4, color.NRGBA{A: 255})

	for _, colorCount := range []int{0, 1, 65, -2} {
		_, err := Quantize(src, colorCount)
		require.Error(t, err, "color count %d", colorCount)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	}
}

func TestQuantize_TwoColors(t *testing.T) {
	// Left half black, right half white.
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := color.NRGBA{A: 255}
			if x >= 5 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	q, err := Quantize(img, 2)
	require.NoError(t, err)
	require.Len(t, q.Palette, 2)

	// Palette is sorted by packed RGB, so black comes first.
	assert.Equal(t, color.NRGBA{A: 255}, q.Palette[0])
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, q.Palette[1])
	assert.Equal(t, uint8(0), q.Index[0])
	assert.Equal(t, uint8(1), q.Index[9])
}

func TestQuantize_TransparencyFlattens(t *testing.T) {
	// Fully transparent pixels composite to white.
	q, err := Quantize(solidImage(4, 4, color.NRGBA{R: 50, G: 50, B: 50, A: 0}), 2)
	require.NoError(t, err)
	require.Len(t, q.Palette, 1)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, q.Palette[0])
}
