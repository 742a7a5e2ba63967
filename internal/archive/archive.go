// Package archive packages converted outputs into a deterministic zip.
//
// The same entries in the same order always produce byte-identical archives:
// entry timestamps are fixed, names are NFC-normalized, and colliding names
// are disambiguated with a positional index suffix.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/corvid/pixmill/internal/domain"
	"github.com/corvid/pixmill/internal/metrics"
)

// FileName is the download name of the batch archive.
const FileName = "pixmill_batch.zip"

// entryTime is the fixed modification time stamped on every archive entry.
// The zip format cannot represent times before 1980.
var entryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Entry is one file to include in the archive.
type Entry struct {
	Name string // Download filename, e.g. "photo_converted.webp"
	Data []byte
}

// Build creates a zip archive containing the given entries in order.
//
// Entry names are normalized to NFC so the same logical filename always
// produces the same bytes regardless of how the source platform composed
// it. When two entries normalize to the same name, later entries get an
// index suffix before the extension: "photo_converted_2.webp".
func Build(entries []Entry) ([]byte, error) {
	const op = "archive.build"

	if len(entries) == 0 {
		return nil, domain.Errorf(domain.EINVALID, op, "no entries to archive")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]int, len(entries))
	for _, entry := range entries {
		name := uniqueName(norm.NFC.String(entry.Name), seen)

		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: entryTime,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			metrics.ArchiveBuildsTotal.WithLabelValues("error").Inc()
			return nil, domain.Wrap(err, domain.EARCHIVE, op, fmt.Sprintf("failed to add entry %q", name))
		}
		if _, err := w.Write(entry.Data); err != nil {
			metrics.ArchiveBuildsTotal.WithLabelValues("error").Inc()
			return nil, domain.Wrap(err, domain.EARCHIVE, op, fmt.Sprintf("failed to write entry %q", name))
		}
	}

	if err := zw.Close(); err != nil {
		metrics.ArchiveBuildsTotal.WithLabelValues("error").Inc()
		return nil, domain.Wrap(err, domain.EARCHIVE, op, "failed to finalize archive")
	}

	metrics.ArchiveBuildsTotal.WithLabelValues("success").Inc()

	return buf.Bytes(), nil
}

// uniqueName returns name if unseen, otherwise appends "_{n}" before the
// extension where n is the occurrence count. The chosen name is recorded
// too, so a literal "photo_2.webp" entry cannot collide silently.
func uniqueName(name string, seen map[string]int) string {
	count := seen[name]
	seen[name] = count + 1
	if count == 0 {
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := fmt.Sprintf("%s_%d%s", base, count+1, ext)
	for seen[candidate] > 0 {
		count++
		candidate = fmt.Sprintf("%s_%d%s", base, count+1, ext)
	}
	seen[candidate] = 1
	return candidate
}
