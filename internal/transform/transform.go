// Package transform implements the image transform primitives: decoding raw
// bytes to a pixel buffer, resizing, re-encoding to a target format, palette
// quantization and vector tracing.
//
// Raster decoding and encoding delegate to the imaging library and the codec
// packages registered below; quantization and vectorization are implemented
// here because no built-in codec covers them.
package transform

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/corvid/pixmill/internal/domain"
	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// =============================================================================
// Decode
// =============================================================================

// Decode converts raw image bytes into a pixel buffer.
// The format is detected from the content; mimeType is used for error context
// only. Returns a domain.EDECODE error for malformed or unsupported input.
func Decode(data []byte, mimeType string) (*image.NRGBA, error) {
	const op = "transform.decode"

	if len(data) == 0 {
		return nil, domain.DecodeFailed(nil, op, "empty image data")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.DecodeFailed(err, op, fmt.Sprintf("cannot decode image (%s)", mimeType))
	}

	return imaging.Clone(img), nil
}

// =============================================================================
// Resize
// =============================================================================

// Resize scales both dimensions of the buffer by ratio using Lanczos
// resampling. A ratio of 1 still runs through the resampler so the pipeline
// stays uniform. Ratio <= 0 returns a domain.EINVALID error.
func Resize(img *image.NRGBA, ratio float64) (*image.NRGBA, error) {
	const op = "transform.resize"

	if ratio <= 0 {
		return nil, domain.Errorf(domain.EINVALID, op, "resize ratio must be positive, got %.3f", ratio)
	}

	bounds := img.Bounds()
	width := int(math.Round(float64(bounds.Dx()) * ratio))
	height := int(math.Round(float64(bounds.Dy()) * ratio))

	// A tiny ratio on a small source must not collapse to an empty buffer.
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// =============================================================================
// Encode
// =============================================================================

// Encode serializes the pixel buffer to the target raster format. Quality is
// in [0.1, 1.0] and is ignored, without error, for lossless formats. SVG is
// not a raster encoding; requesting it here returns domain.EENCODE.
func Encode(img *image.NRGBA, format domain.Format, quality float64) ([]byte, error) {
	const op = "transform.encode"

	switch format {
	case domain.FormatJPEG:
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(qualityPercent(quality))); err != nil {
			return nil, domain.EncodeFailed(err, op, "jpeg encoding failed")
		}
		return buf.Bytes(), nil

	case domain.FormatPNG:
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, domain.EncodeFailed(err, op, "png encoding failed")
		}
		return buf.Bytes(), nil

	case domain.FormatWEBP:
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(qualityPercent(quality)))
		if err != nil {
			return nil, domain.EncodeFailed(err, op, "webp encoder options")
		}
		var buf bytes.Buffer
		if err := webp.Encode(&buf, img, opts); err != nil {
			return nil, domain.EncodeFailed(err, op, "webp encoding failed")
		}
		return buf.Bytes(), nil

	case domain.FormatAVIF:
		return encodeAVIF(img, quality)

	default:
		return nil, domain.Errorf(domain.EENCODE, op, "unsupported raster format %q", format)
	}
}

// qualityPercent maps the [0.1, 1.0] quality setting onto the 1-100 scale
// used by the jpeg and webp encoders.
func qualityPercent(quality float64) int {
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return q
}

// =============================================================================
// AVIF via ffmpeg
// =============================================================================

var (
	ffmpegOnce      sync.Once
	ffmpegAvailable bool
)

// FFmpegAvailable reports whether an ffmpeg binary was found on PATH.
// AVIF encoding is unavailable without it.
func FFmpegAvailable() bool {
	ffmpegOnce.Do(func() {
		_, err := exec.LookPath("ffmpeg")
		ffmpegAvailable = err == nil
	})
	return ffmpegAvailable
}

// encodeAVIF shells out to ffmpeg for AVIF encoding. Quality maps to the
// AV1 CRF scale where lower means better.
func encodeAVIF(img *image.NRGBA, quality float64) ([]byte, error) {
	const op = "transform.encode_avif"

	if !FFmpegAvailable() {
		return nil, domain.Errorf(domain.EENCODE, op, "avif encoding requires ffmpeg on PATH")
	}

	dir, err := os.MkdirTemp("", "pixmill-avif-")
	if err != nil {
		return nil, domain.EncodeFailed(err, op, "create temp dir")
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "in.png")
	dstPath := filepath.Join(dir, "out.avif")

	if err := imaging.Save(img, srcPath); err != nil {
		return nil, domain.EncodeFailed(err, op, "write intermediate png")
	}

	// CRF range is 0-63; quality 1.0 maps near-lossless, 0.1 maps heavily
	// compressed.
	crf := 63 - int(math.Round(quality*55))

	cmd := exec.Command("ffmpeg",
		"-y",
		"-i", srcPath,
		"-c:v", "libaom-av1",
		"-still-picture", "1",
		"-crf", fmt.Sprintf("%d", crf),
		dstPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, domain.EncodeFailed(fmt.Errorf("%w: %s", err, out), op, "ffmpeg avif encoding failed")
	}

	data, err := os.ReadFile(dstPath)
	if err != nil {
		return nil, domain.EncodeFailed(err, op, "read avif output")
	}
	return data, nil
}
