package pipeline

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// Preview rendering bounds and quality.
const (
	PreviewMaxWidth    = 300
	PreviewMaxHeight   = 300
	PreviewJPEGQuality = 85
)

// =============================================================================
// Interface Definition
// =============================================================================

// PreviewRenderer produces the display-only rendering stored alongside each
// queue item.
type PreviewRenderer interface {
	// RenderPreview creates a JPEG preview from the provided image data.
	// Returns the preview bytes, original width, and original height.
	// The preview fits within PreviewMaxWidth x PreviewMaxHeight while
	// preserving aspect ratio.
	RenderPreview(data io.Reader) ([]byte, int, int, error)
}

// =============================================================================
// Implementation
// =============================================================================

// imagingRenderer implements PreviewRenderer using the imaging library.
type imagingRenderer struct{}

// NewImagingRenderer creates a preview renderer using the imaging library.
func NewImagingRenderer() PreviewRenderer {
	return &imagingRenderer{}
}

// RenderPreview creates a JPEG preview from the provided image data.
func (r *imagingRenderer) RenderPreview(data io.Reader) ([]byte, int, int, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()

	preview := imaging.Fit(img, PreviewMaxWidth, PreviewMaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, preview, imaging.JPEG, imaging.JPEGQuality(PreviewJPEGQuality)); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode preview: %w", err)
	}

	return buf.Bytes(), originalWidth, originalHeight, nil
}
