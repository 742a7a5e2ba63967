package transform

import (
	"fmt"
	"image/color"
	"strings"
)

// SVGPath is one filled path element, covering every pixel assigned to a
// single palette entry.
type SVGPath struct {
	Fill color.NRGBA
	D    string
}

// SVGDocument is a path-based vector rendering of a quantized buffer.
// The viewbox matches the source dimensions.
type SVGDocument struct {
	Width  int
	Height int
	Paths  []SVGPath
}

// Vectorize traces the quantized buffer into closed paths, one path per
// palette entry that has at least one pixel. Contiguous same-color regions
// are decomposed into axis-aligned rectangles: horizontal runs per row,
// merged vertically when aligned. Single-pixel regions produce degenerate
// 1x1 rectangles, which are valid path data.
func Vectorize(q *Quantized) *SVGDocument {
	doc := &SVGDocument{Width: q.Width, Height: q.Height}

	for pi := range q.Palette {
		rects := traceRects(q, uint8(pi))
		if len(rects) == 0 {
			continue
		}

		var d strings.Builder
		for _, r := range rects {
			// One closed subpath per rectangle.
			fmt.Fprintf(&d, "M%d %dh%dv%dh-%dz", r.x, r.y, r.w, r.h, r.w)
		}

		doc.Paths = append(doc.Paths, SVGPath{
			Fill: q.Palette[pi],
			D:    d.String(),
		})
	}

	return doc
}

type svgRect struct {
	x, y, w, h int
}

// traceRects decomposes the pixels of one palette index into rectangles.
// Runs are scanned left to right, top to bottom; a run that exactly matches
// the run above extends it downward, so solid areas collapse into few rects.
// The scan order makes the output deterministic.
func traceRects(q *Quantized, index uint8) []svgRect {
	var rects []svgRect

	type span struct{ x, w int }
	open := make(map[span]int) // open rectangle per (x, width) from the previous row

	for y := 0; y < q.Height; y++ {
		next := make(map[span]int)
		row := q.Index[y*q.Width : (y+1)*q.Width]

		x := 0
		for x < q.Width {
			if row[x] != index {
				x++
				continue
			}
			start := x
			for x < q.Width && row[x] == index {
				x++
			}
			s := span{x: start, w: x - start}

			if ri, ok := open[s]; ok && rects[ri].y+rects[ri].h == y {
				rects[ri].h++
				next[s] = ri
			} else {
				rects = append(rects, svgRect{x: s.x, y: y, w: s.w, h: 1})
				next[s] = len(rects) - 1
			}
		}

		open = next
	}

	return rects
}

// Encode serializes the document as a standalone SVG file.
func (d *SVGDocument) Encode() []byte {
	var b strings.Builder

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		d.Width, d.Height, d.Width, d.Height)
	b.WriteByte('\n')

	for _, p := range d.Paths {
		fmt.Fprintf(&b, `<path fill="#%02x%02x%02x" d="%s"/>`, p.Fill.R, p.Fill.G, p.Fill.B, p.D)
		b.WriteByte('\n')
	}

	b.WriteString("</svg>\n")
	return []byte(b.String())
}
