package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()

	store, err := NewLocalStore(LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/artifacts",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return store
}

func TestLocalStorePutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	data := []byte("converted image bytes")
	err := store.Put(ctx, "items/abc/output.webp", bytes.NewReader(data), PutOptions{
		ContentType: "image/webp",
	})
	require.NoError(t, err)

	rc, info, err := store.Get(ctx, "items/abc/output.webp")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(len(data)), info.Size)
	assert.Equal(t, "image/webp", info.ContentType)
}

func TestLocalStorePutNoOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Put(ctx, "items/abc/preview.jpg", strings.NewReader("first"), PutOptions{})
	require.NoError(t, err)

	err = store.Put(ctx, "items/abc/preview.jpg", strings.NewReader("second"), PutOptions{})
	assert.ErrorIs(t, err, ErrKeyExists)

	err = store.Put(ctx, "items/abc/preview.jpg", strings.NewReader("second"), PutOptions{Overwrite: true})
	assert.NoError(t, err)
}

func TestLocalStorePutMaxSize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Put(ctx, "items/big/output.png", strings.NewReader("0123456789"), PutOptions{MaxSize: 4})
	assert.ErrorIs(t, err, ErrTooLarge)

	exists, err := store.Exists(ctx, "items/big/output.png")
	require.NoError(t, err)
	assert.False(t, exists, "oversized upload should be cleaned up")
}

func TestLocalStoreGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Get(context.Background(), "items/missing/output.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreDeleteIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Put(ctx, "items/abc/output.jpg", strings.NewReader("data"), PutOptions{})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "items/abc/output.jpg"))

	// Second delete of the same key must not error.
	assert.NoError(t, store.Delete(ctx, "items/abc/output.jpg"))

	exists, err := store.Exists(ctx, "items/abc/output.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorePathTraversal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		key  string
	}{
		{name: "parent escape", key: "../outside.txt"},
		{name: "nested escape", key: "items/../../outside.txt"},
		{name: "empty key", key: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Put(ctx, tt.key, strings.NewReader("data"), PutOptions{})
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestLocalStoreURL(t *testing.T) {
	store := newTestStore(t)

	url, err := store.URL(context.Background(), "items/abc/preview.jpg", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/artifacts/items/abc/preview.jpg", url)
}

func TestKeyHelpers(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	assert.Equal(t, "items/6ba7b810-9dad-11d1-80b4-00c04fd430c8/preview.jpg", PreviewKey(id))
	assert.Equal(t, "items/6ba7b810-9dad-11d1-80b4-00c04fd430c8/output.webp", OutputKey(id, "webp"))
	assert.Equal(t, "batches/6ba7b810-9dad-11d1-80b4-00c04fd430c8/pixmill_batch.zip", ArchiveKey(id))
}

func TestIsAllowedImageType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/jpeg", true},
		{"image/png", true},
		{"image/webp", true},
		{"image/tiff", true},
		{"image/jpeg; charset=utf-8", true},
		{"image/svg+xml", false},
		{"application/pdf", false},
		{"text/plain", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowedImageType(tt.contentType))
		})
	}
}
