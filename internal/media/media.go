// Package media pushes staged uploads to the object store and cleans up
// superseded assets.
package media

import (
	"context"
	"errors"
	"io"
)

// Kind classifies an asset and prefixes its storage key.
type Kind string

const (
	KindAvatar     Kind = "avatar"
	KindCoverImage Kind = "cover-image"
	KindVideo      Kind = "video"
	KindThumbnail  Kind = "thumbnail"
)

// ObjectStore is the remote asset store.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Metadata is derived from an uploaded file at ingest time.
type Metadata struct {
	Duration float64
}

// Prober extracts metadata from a local media file.
type Prober interface {
	Probe(ctx context.Context, path string) (Metadata, error)
}

var (
	// ErrStoreUnavailable indicates no object store is configured.
	ErrStoreUnavailable = errors.New("object store unavailable")
	// ErrJanitorClosed is returned when cleanup is requested after shutdown.
	ErrJanitorClosed = errors.New("asset janitor closed")
	// ErrQueueFull is returned when the cleanup queue has no room.
	ErrQueueFull = errors.New("asset janitor queue full")
)
