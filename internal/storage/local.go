package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"estate-market-backend/internal/logger"

	"github.com/google/uuid"
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// LocalStorage keeps uploads on the local filesystem and serves them through
// the API's /uploads route.
type LocalStorage struct {
	baseURL string
	dir     string
}

func NewLocalStorage(baseURL, uploadsDir string) (*LocalStorage, error) {
	dir := filepath.Join(uploadsDir, "images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}
	return &LocalStorage{baseURL: strings.TrimRight(baseURL, "/"), dir: dir}, nil
}

func (s *LocalStorage) Save(ctx context.Context, contentType string, r io.Reader) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", ErrUnsupported
	}
	key := uuid.NewString() + ext

	file, err := os.OpenFile(filepath.Join(s.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, r)
	if err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	logger.Debug("Stored upload", "key", key, "bytes", n)
	return key, nil
}

func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	return file, contentTypeOf(key), nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalStorage) URL(key string) string {
	return s.baseURL + "/uploads/" + key
}

// path rejects keys that could escape the upload directory.
func (s *LocalStorage) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, key), nil
}

func contentTypeOf(key string) string {
	for ct, ext := range extensions {
		if strings.HasSuffix(key, ext) {
			return ct
		}
	}
	return "application/octet-stream"
}
