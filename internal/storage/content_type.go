package storage

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// AllowedImageTypes lists the MIME types accepted at intake. Anything
// outside this set is dropped before it reaches the queue.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// IsAllowedImageType reports whether the MIME type is accepted at intake.
// Parameters such as "; charset=..." are stripped before the lookup.
func IsAllowedImageType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return AllowedImageTypes[mediaType]
}

// DetectContentType determines the MIME type of an object.
//
// Priority order:
// 1. Explicit content type (if provided and not generic)
// 2. File extension mapping
// 3. Content sniffing of the first bytes
// 4. Fallback to application/octet-stream
func DetectContentType(key string, data []byte, explicit string) string {
	if explicit != "" && explicit != "application/octet-stream" {
		return explicit
	}

	if ext := filepath.Ext(key); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
		// mime.TypeByExtension misses a few types we care about on
		// minimal systems without a mime.types file.
		switch strings.ToLower(ext) {
		case ".webp":
			return "image/webp"
		case ".avif":
			return "image/avif"
		case ".svg":
			return "image/svg+xml"
		}
	}

	if len(data) > 0 {
		sniffLen := len(data)
		if sniffLen > 512 {
			sniffLen = 512
		}
		if sniffed := http.DetectContentType(data[:sniffLen]); sniffed != "application/octet-stream" {
			return sniffed
		}
	}

	return "application/octet-stream"
}
