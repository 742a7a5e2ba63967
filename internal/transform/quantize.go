package transform

import (
	"image"
	"image/color"
	"sort"

	"github.com/corvid/pixmill/internal/domain"
)

// Quantized is a pixel buffer reduced to an indexed palette.
type Quantized struct {
	Palette []color.NRGBA // At most the requested color count, sorted by packed RGB
	Index   []uint8       // One palette index per pixel, row-major
	Width   int
	Height  int
}

// Quantize reduces the buffer to at most colorCount distinct colors using
// median-cut clustering. The algorithm is fully deterministic: identical
// input and color count always yield the identical palette and assignment.
// Pixels with partial transparency are composited over white first.
func Quantize(img *image.NRGBA, colorCount int) (*Quantized, error) {
	const op = "transform.quantize"

	if colorCount < domain.MinColorCount || colorCount > domain.MaxColorCount {
		return nil, domain.Errorf(domain.EINVALID, op, "color count %d out of range [%d, %d]",
			colorCount, domain.MinColorCount, domain.MaxColorCount)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Histogram of packed 24-bit RGB values.
	pixels := make([]uint32, 0, width*height)
	counts := make(map[uint32]int)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := flattenPixel(img.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y))
			pixels = append(pixels, c)
			counts[c]++
		}
	}

	// Unique colors in ascending packed order; the stable starting point for
	// every subsequent split.
	unique := make([]uint32, 0, len(counts))
	for c := range counts {
		unique = append(unique, c)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	boxes := medianCut(unique, counts, colorCount)

	// Palette entry per box: the pixel-weighted mean color. Boxes are sorted
	// by their packed mean so palette order is stable.
	type entry struct {
		packed uint32
		colors []uint32
	}
	entries := make([]entry, 0, len(boxes))
	for _, box := range boxes {
		entries = append(entries, entry{packed: meanColor(box, counts), colors: box})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].packed < entries[j].packed })

	palette := make([]color.NRGBA, len(entries))
	assign := make(map[uint32]uint8, len(counts))
	for i, e := range entries {
		palette[i] = unpack(e.packed)
		for _, c := range e.colors {
			assign[c] = uint8(i)
		}
	}

	index := make([]uint8, len(pixels))
	for i, c := range pixels {
		index[i] = assign[c]
	}

	return &Quantized{
		Palette: palette,
		Index:   index,
		Width:   width,
		Height:  height,
	}, nil
}

// flattenPixel composites the pixel over a white background and packs it
// into a 24-bit RGB value.
func flattenPixel(c color.NRGBA) uint32 {
	if c.A != 0xff {
		a := uint32(c.A)
		c.R = uint8((uint32(c.R)*a + 255*(255-a)) / 255)
		c.G = uint8((uint32(c.G)*a + 255*(255-a)) / 255)
		c.B = uint8((uint32(c.B)*a + 255*(255-a)) / 255)
	}
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func unpack(c uint32) color.NRGBA {
	return color.NRGBA{
		R: uint8(c >> 16),
		G: uint8(c >> 8),
		B: uint8(c),
		A: 0xff,
	}
}

func channel(c uint32, ch int) uint8 {
	return uint8(c >> (16 - 8*ch))
}

// medianCut repeatedly splits the box with the widest channel range at its
// weighted median until the palette budget is reached or every box holds a
// single color.
func medianCut(unique []uint32, counts map[uint32]int, colorCount int) [][]uint32 {
	boxes := [][]uint32{unique}

	for len(boxes) < colorCount {
		// Pick the splittable box with the widest channel range; ties go to
		// the lowest index so the choice is deterministic.
		best, bestRange, bestChannel := -1, -1, 0
		for i, box := range boxes {
			if len(box) < 2 {
				continue
			}
			for ch := 0; ch < 3; ch++ {
				lo, hi := uint8(0xff), uint8(0)
				for _, c := range box {
					v := channel(c, ch)
					if v < lo {
						lo = v
					}
					if v > hi {
						hi = v
					}
				}
				if r := int(hi) - int(lo); r > bestRange {
					best, bestRange, bestChannel = i, r, ch
				}
			}
		}
		if best < 0 {
			break // every box is a single color
		}

		box := boxes[best]
		ch := bestChannel
		sort.SliceStable(box, func(i, j int) bool {
			vi, vj := channel(box[i], ch), channel(box[j], ch)
			if vi != vj {
				return vi < vj
			}
			return box[i] < box[j]
		})

		// Split at the weighted median, keeping at least one color per side.
		total := 0
		for _, c := range box {
			total += counts[c]
		}
		cut, acc := 1, counts[box[0]]
		for cut < len(box)-1 && acc*2 < total {
			acc += counts[box[cut]]
			cut++
		}

		boxes[best] = box[:cut]
		boxes = append(boxes, box[cut:])
	}

	return boxes
}

// meanColor returns the pixel-weighted mean of a box, packed as 24-bit RGB.
func meanColor(box []uint32, counts map[uint32]int) uint32 {
	var r, g, b, n uint64
	for _, c := range box {
		w := uint64(counts[c])
		r += uint64(c>>16&0xff) * w
		g += uint64(c>>8&0xff) * w
		b += uint64(c&0xff) * w
		n += w
	}
	if n == 0 {
		return 0
	}
	return uint32((r+n/2)/n)<<16 | uint32((g+n/2)/n)<<8 | uint32((b+n/2)/n)
}
