package domain

// Format identifies a supported output image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWEBP Format = "webp"
	FormatAVIF Format = "avif"
	FormatSVG  Format = "svg"
)

// Valid checks if the format is one of the supported output formats.
func (f Format) Valid() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatWEBP, FormatAVIF, FormatSVG:
		return true
	default:
		return false
	}
}

// Lossy reports whether the format uses lossy compression and therefore
// honors the quality setting.
func (f Format) Lossy() bool {
	switch f {
	case FormatJPEG, FormatWEBP, FormatAVIF:
		return true
	default:
		return false
	}
}

// Extension returns the file extension for the format, without the dot.
// The SVG MIME subtype is "svg+xml" but the extension is plain "svg".
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatPNG:
		return "png"
	case FormatWEBP:
		return "webp"
	case FormatAVIF:
		return "avif"
	case FormatSVG:
		return "svg"
	default:
		return string(f)
	}
}

// MIMEType returns the MIME type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWEBP:
		return "image/webp"
	case FormatAVIF:
		return "image/avif"
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// Quality bounds for lossy raster encoding.
const (
	MinQuality = 0.1
	MaxQuality = 1.0
)

// Color count bounds for vector quantization.
const (
	MinColorCount = 2
	MaxColorCount = 64
)

// ConversionSettings is the immutable per-run configuration shared read-only
// by every item in a batch. Callers pass it by value; the pipeline never
// mutates it.
type ConversionSettings struct {
	// OutputFormat is the target encoding for the raster pipeline.
	// Forced to FormatSVG when Vector is true.
	OutputFormat Format

	// Quality in [0.1, 1.0]; applies only to lossy raster formats.
	Quality float64

	// ResizeRatio multiplies both dimensions. Must be > 0; 1.0 is a no-op
	// that still runs through the resize primitive.
	ResizeRatio float64

	// Vector selects the quantize-and-trace pipeline instead of re-encoding.
	Vector bool

	// ColorCount is the palette budget for quantization, in [2, 64], step 2.
	// Used only when Vector is true.
	ColorCount int

	// UseAIAnalysis enables best-effort description and tagging per item.
	UseAIAnalysis bool
}

// Normalized returns a copy with the vector-pipeline format override applied:
// when Vector is set, the output format is always SVG.
func (s ConversionSettings) Normalized() ConversionSettings {
	if s.Vector {
		s.OutputFormat = FormatSVG
	}
	return s
}

// Validate checks all settings against their documented bounds.
func (s ConversionSettings) Validate() error {
	const op = "settings.validate"

	if !s.OutputFormat.Valid() {
		return Errorf(EINVALID, op, "unsupported output format %q", s.OutputFormat)
	}
	if s.Vector && s.OutputFormat != FormatSVG {
		return Invalid(op, "vector output must use the svg format")
	}
	if !s.Vector && s.OutputFormat == FormatSVG {
		return Invalid(op, "svg output requires the vector pipeline")
	}
	if s.Quality < MinQuality || s.Quality > MaxQuality {
		return Errorf(EINVALID, op, "quality %.2f out of range [%.1f, %.1f]", s.Quality, MinQuality, MaxQuality)
	}
	if s.ResizeRatio <= 0 {
		return Errorf(EINVALID, op, "resize ratio must be positive, got %.2f", s.ResizeRatio)
	}
	if s.Vector {
		if s.ColorCount < MinColorCount || s.ColorCount > MaxColorCount {
			return Errorf(EINVALID, op, "color count %d out of range [%d, %d]", s.ColorCount, MinColorCount, MaxColorCount)
		}
		if s.ColorCount%2 != 0 {
			return Errorf(EINVALID, op, "color count must be even, got %d", s.ColorCount)
		}
	}
	return nil
}

// DefaultSettings returns the settings used when nothing is configured:
// WebP at quality 0.8, no resize, raster pipeline, no AI analysis.
func DefaultSettings() ConversionSettings {
	return ConversionSettings{
		OutputFormat: FormatWEBP,
		Quality:      0.8,
		ResizeRatio:  1.0,
		Vector:       false,
		ColorCount:   16,
	}
}
