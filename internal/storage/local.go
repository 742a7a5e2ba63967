package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// LocalStore Implementation
// =============================================================================

// LocalStore implements the Store interface using the local filesystem.
// It is the default backend for CLI runs, writing artifacts under a base
// directory.
//
// Security: Path traversal prevention is enforced in resolvePath().
type LocalStore struct {
	basePath string // Root directory for artifact storage
	baseURL  string // Base URL for artifact access
	logger   *slog.Logger
}

// NewLocalStore creates a new LocalStore instance.
//
// The base directory is created if it doesn't exist.
func NewLocalStore(cfg LocalConfig, logger *slog.Logger) (*LocalStore, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	logger.Info("initialized local store",
		"base_path", absPath,
		"base_url", baseURL,
	)

	return &LocalStore{
		basePath: absPath,
		baseURL:  baseURL,
		logger:   logger,
	}, nil
}

// =============================================================================
// Interface Implementation
// =============================================================================

// Put stores data at the specified key.
func (s *LocalStore) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return newError("put", key, err)
	}

	if !opts.Overwrite {
		if _, err := os.Stat(filePath); err == nil {
			return newError("put", key, ErrKeyExists)
		}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return newError("put", key, fmt.Errorf("failed to create directory: %w", err))
	}

	file, err := os.Create(filePath)
	if err != nil {
		return newError("put", key, fmt.Errorf("failed to create file: %w", err))
	}
	defer file.Close()

	var written int64
	if opts.MaxSize > 0 {
		// Read one extra byte past the limit to detect oversized input.
		lr := io.LimitReader(data, opts.MaxSize+1)
		written, err = io.Copy(file, lr)
		if err != nil {
			os.Remove(filePath)
			return newError("put", key, fmt.Errorf("failed to write file: %w", err))
		}
		if written > opts.MaxSize {
			os.Remove(filePath)
			return newError("put", key, ErrTooLarge)
		}
	} else {
		written, err = io.Copy(file, data)
		if err != nil {
			os.Remove(filePath)
			return newError("put", key, fmt.Errorf("failed to write file: %w", err))
		}
	}

	s.logger.Debug("stored artifact",
		"key", key,
		"path", filePath,
		"size", written,
		"content_type", opts.ContentType,
	)

	return nil
}

// Get retrieves the data at the specified key.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if ctx.Err() != nil {
		return nil, ObjectInfo{}, ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return nil, ObjectInfo{}, newError("get", key, err)
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, newError("get", key, ErrNotFound)
		}
		return nil, ObjectInfo{}, newError("get", key, fmt.Errorf("failed to stat file: %w", err))
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, ObjectInfo{}, newError("get", key, fmt.Errorf("failed to open file: %w", err))
	}

	info := ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  DetectContentType(key, nil, ""),
		LastModified: stat.ModTime(),
		ETag:         "", // Local storage doesn't generate ETags
	}

	return file, info, nil
}

// Delete removes the object at the specified key.
// Idempotent: deleting a missing key is not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return newError("delete", key, err)
	}

	err = os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		return newError("delete", key, fmt.Errorf("failed to delete file: %w", err))
	}

	s.logger.Debug("deleted artifact", "key", key, "path", filePath)

	return nil
}

// URL returns a URL for accessing the object.
// For local storage this is always a public URL; expires is ignored.
func (s *LocalStore) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if _, err := s.resolvePath(key); err != nil {
		return "", newError("url", key, err)
	}

	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}

// Exists checks if an object exists at the specified key.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return false, newError("exists", key, err)
	}

	_, err = os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, newError("exists", key, fmt.Errorf("failed to stat file: %w", err))
	}

	return true, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// resolvePath converts a storage key to an absolute file path.
//
// Keys containing ".." components are rejected, and the resolved path
// must remain within the base directory.
func (s *LocalStore) resolvePath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	cleanKey := filepath.Clean(key)
	if strings.Contains(cleanKey, "..") {
		return "", ErrInvalidKey
	}

	absPath := filepath.Join(s.basePath, cleanKey)
	if !strings.HasPrefix(absPath, s.basePath) {
		return "", ErrInvalidKey
	}

	return absPath, nil
}
