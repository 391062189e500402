package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidKey  = errors.New("invalid storage key")
	ErrUnsupported = errors.New("unsupported content type")
)

// Storage is the image store behind listing uploads.
type Storage interface {
	// Save writes the content under a fresh key and returns the key.
	Save(ctx context.Context, contentType string, r io.Reader) (string, error)
	// Open returns the file for key and its content type.
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
	// URL is the public address clients fetch key from.
	URL(key string) string
}
