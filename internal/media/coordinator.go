package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidtube/backend/internal/ids"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

// Coordinator moves staged uploads into the object store. An entity that
// replaces an asset uploads the new one, commits, and only then deletes the old.
type Coordinator struct {
	store   ObjectStore
	prober  Prober
	janitor *Janitor
	newID   func() string
}

// NewCoordinator wires the store, an optional prober and an optional janitor.
// Without a janitor removals run inline.
func NewCoordinator(store ObjectStore, prober Prober, janitor *Janitor) *Coordinator {
	return &Coordinator{store: store, prober: prober, janitor: janitor, newID: ids.New}
}

// Store uploads file as kind. Video files are probed for their duration first;
// a failed probe is logged and yields zero metadata. The staging copy is
// removed whatever the outcome.
func (c *Coordinator) Store(ctx context.Context, file StagedFile, kind Kind) (models.Asset, Metadata, error) {
	defer c.Discard(ctx, file)

	ctx, span := logging.StartSpan(ctx, "media.store")
	defer span.End()
	logger := logging.FromContext(ctx)

	if c.store == nil {
		span.Fail(ErrStoreUnavailable)
		return models.Asset{}, Metadata{}, ErrStoreUnavailable
	}

	var meta Metadata
	if kind == KindVideo && c.prober != nil {
		probed, err := c.prober.Probe(ctx, file.Path)
		if err != nil {
			logger.Warn("probe video metadata", "path", file.Path, "error", err)
		} else {
			meta = probed
		}
	}

	f, err := os.Open(file.Path)
	if err != nil {
		span.Fail(err)
		return models.Asset{}, Metadata{}, fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	size := file.Size
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	key := c.keyFor(kind, file)
	url, err := c.store.Put(ctx, key, f, size, file.ContentType)
	metrics.RecordUpload(string(kind), err)
	if err != nil {
		span.Fail(err)
		return models.Asset{}, Metadata{}, fmt.Errorf("upload %s: %w", kind, err)
	}

	logger.Info("asset stored", slog.String("kind", string(kind)), slog.String("key", key), slog.Int64("size", size))
	return models.Asset{URL: url, PublicID: key}, meta, nil
}

// Remove deletes asset on a best-effort basis. Errors are logged, never returned.
func (c *Coordinator) Remove(ctx context.Context, asset models.Asset, kind Kind) {
	if asset.PublicID == "" {
		return
	}
	logger := logging.FromContext(ctx)

	if c.janitor != nil {
		err := c.janitor.Enqueue(ctx, asset.PublicID, kind)
		if err == nil {
			return
		}
		logger.Warn("asset cleanup not queued, removing inline", "key", asset.PublicID, "error", err)
	}

	if c.store == nil {
		logger.Error("asset cleanup skipped", "key", asset.PublicID, "error", ErrStoreUnavailable)
		metrics.AssetCleanupFailures.WithLabelValues(string(kind)).Inc()
		return
	}
	cleanupCtx := context.WithoutCancel(ctx)
	if err := c.store.Delete(cleanupCtx, asset.PublicID); err != nil {
		logger.Error("asset cleanup failed", "key", asset.PublicID, "kind", kind, "error", err)
		metrics.AssetCleanupFailures.WithLabelValues(string(kind)).Inc()
	}
}

// Replace uploads file, hands the new asset to commit, and then removes old.
// When commit fails the freshly uploaded asset is removed instead and the
// commit error returned.
func (c *Coordinator) Replace(ctx context.Context, file StagedFile, kind Kind, old models.Asset, commit func(context.Context, models.Asset) error) (models.Asset, error) {
	ctx, span := logging.StartSpan(ctx, "media.replace")
	defer span.End()

	asset, _, err := c.Store(ctx, file, kind)
	if err != nil {
		span.Fail(err)
		return models.Asset{}, err
	}

	if err := commit(ctx, asset); err != nil {
		span.Fail(err)
		c.Remove(ctx, asset, kind)
		return models.Asset{}, err
	}

	if !old.IsZero() && old.PublicID != asset.PublicID {
		c.Remove(ctx, old, kind)
	}
	return asset, nil
}

// Discard deletes staging copies that will not be uploaded.
func (c *Coordinator) Discard(ctx context.Context, files ...StagedFile) {
	for _, file := range files {
		if file.Path == "" {
			continue
		}
		if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
			logging.FromContext(ctx).Warn("remove staged file", "path", file.Path, "error", err)
		}
	}
}

func (c *Coordinator) keyFor(kind Kind, file StagedFile) string {
	ext := strings.ToLower(filepath.Ext(file.OriginalName))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(file.Path))
	}
	return fmt.Sprintf("%s/%s%s", kind, c.newID(), ext)
}
