// Package storage holds the remote object stores media assets are pushed to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/vidtube/backend/internal/config"
)

// Store is implemented by every backend returned from Open.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

var errEmptyKey = errors.New("empty key")

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.StorageDriverS3:
		return NewS3Storage(ctx, cfg)
	case config.StorageDriverMinio:
		return NewMinioStorage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+strings.TrimSpace(key)), "/")
	if key == "" || key == "." {
		return "", errEmptyKey
	}
	return key, nil
}

func objectURL(baseURL, key string) string {
	if baseURL == "" {
		return key
	}
	return baseURL + "/" + key
}

var (
	_ Store = (*S3Storage)(nil)
	_ Store = (*MinioStorage)(nil)
)
