package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid/pixmill/internal/domain"
)

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = b
	}
	return out
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestBuildRoundTrip(t *testing.T) {
	entries := []Entry{
		{Name: "sunset_converted.webp", Data: []byte("webp bytes")},
		{Name: "portrait_converted.png", Data: []byte("png bytes")},
	}

	data, err := Build(entries)
	require.NoError(t, err)

	files := readZip(t, data)
	require.Len(t, files, 2)
	assert.Equal(t, []byte("webp bytes"), files["sunset_converted.webp"])
	assert.Equal(t, []byte("png bytes"), files["portrait_converted.png"])
}

func TestBuildEmpty(t *testing.T) {
	_, err := Build(nil)
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestBuildPreservesOrder(t *testing.T) {
	entries := []Entry{
		{Name: "z_converted.jpg", Data: []byte("z")},
		{Name: "a_converted.jpg", Data: []byte("a")},
		{Name: "m_converted.jpg", Data: []byte("m")},
	}

	data, err := Build(entries)
	require.NoError(t, err)

	assert.Equal(t, []string{"z_converted.jpg", "a_converted.jpg", "m_converted.jpg"}, zipNames(t, data))
}

func TestBuildDeterministic(t *testing.T) {
	entries := []Entry{
		{Name: "one_converted.webp", Data: []byte("one")},
		{Name: "two_converted.webp", Data: []byte("two")},
	}

	first, err := Build(entries)
	require.NoError(t, err)
	second, err := Build(entries)
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical input must produce byte-identical archives")
}

func TestBuildNameCollisions(t *testing.T) {
	entries := []Entry{
		{Name: "photo_converted.webp", Data: []byte("first")},
		{Name: "photo_converted.webp", Data: []byte("second")},
		{Name: "photo_converted.webp", Data: []byte("third")},
	}

	data, err := Build(entries)
	require.NoError(t, err)

	names := zipNames(t, data)
	assert.Equal(t, []string{
		"photo_converted.webp",
		"photo_converted_2.webp",
		"photo_converted_3.webp",
	}, names)

	files := readZip(t, data)
	assert.Equal(t, []byte("first"), files["photo_converted.webp"])
	assert.Equal(t, []byte("second"), files["photo_converted_2.webp"])
	assert.Equal(t, []byte("third"), files["photo_converted_3.webp"])
}

func TestBuildCollisionWithExistingSuffix(t *testing.T) {
	// A literal "_2" entry must not be silently overwritten by a
	// disambiguated duplicate.
	entries := []Entry{
		{Name: "photo_2.webp", Data: []byte("literal")},
		{Name: "photo.webp", Data: []byte("first")},
		{Name: "photo.webp", Data: []byte("second")},
	}

	data, err := Build(entries)
	require.NoError(t, err)

	names := zipNames(t, data)
	require.Len(t, names, 3)
	assert.Equal(t, "photo_2.webp", names[0])
	assert.Equal(t, "photo.webp", names[1])
	assert.NotEqual(t, "photo_2.webp", names[2])
}

func TestBuildNormalizesNames(t *testing.T) {
	// "café" in decomposed form (e + combining acute) must come out in
	// composed form.
	decomposed := "café_converted.jpg"
	composed := "café_converted.jpg"

	data, err := Build([]Entry{{Name: decomposed, Data: []byte("x")}})
	require.NoError(t, err)

	names := zipNames(t, data)
	require.Len(t, names, 1)
	assert.Equal(t, composed, names[0])
}
