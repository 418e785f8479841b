// Package directory resolves opaque sender ids to display names.
// It is a read-shared cache over the users service and never a source of
// truth for message content.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"linguachat/client/internal/models"

	"github.com/samber/lo"
)

// Source is the bulk read of the users service.
type Source interface {
	ListUsers(ctx context.Context) ([]models.Identity, error)
}

// Cache keeps the last known mapping between client processes.
type Cache interface {
	LoadDirectory(ctx context.Context) (map[string]string, error)
	SaveDirectory(ctx context.Context, names map[string]string) error
}

// Directory maps sender ids to display names.
type Directory struct {
	source Source
	cache  Cache
	log    *slog.Logger

	mu    sync.RWMutex
	names map[string]string
}

// New creates an empty directory. cache may be nil.
func New(source Source, cache Cache, log *slog.Logger) *Directory {
	return &Directory{
		source: source,
		cache:  cache,
		log:    log,
		names:  make(map[string]string),
	}
}

// Resolve returns the display name of senderID, or senderID itself when no
// mapping is known.
func (d *Directory) Resolve(senderID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if name, ok := d.names[senderID]; ok && name != "" {
		return name
	}
	return senderID
}

// Len returns the number of known identities.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.names)
}

// Refresh reloads the directory from the source. When the source fails the
// cache is used instead, if it has anything, and the source error is still
// returned so the caller can report it. The current mapping is kept when
// neither yields data.
func (d *Directory) Refresh(ctx context.Context) error {
	identities, err := d.source.ListUsers(ctx)
	if err != nil {
		d.log.Warn("Directory refresh failed", "error", err)
		d.loadFromCache(ctx)
		return fmt.Errorf("refresh directory: %w", err)
	}

	names := lo.SliceToMap(identities, func(identity models.Identity) (string, string) {
		return string(identity.ID), identity.DisplayName
	})
	d.swap(names)
	d.log.Debug("Directory refreshed", "identities", len(names))

	if d.cache != nil {
		if err := d.cache.SaveDirectory(ctx, names); err != nil {
			d.log.Warn("Could not write directory cache", "error", err)
		}
	}
	return nil
}

func (d *Directory) loadFromCache(ctx context.Context) {
	if d.cache == nil {
		return
	}
	names, err := d.cache.LoadDirectory(ctx)
	if err != nil {
		d.log.Warn("Could not read directory cache", "error", err)
		return
	}
	if len(names) == 0 {
		return
	}
	d.swap(names)
	d.log.Info("Directory restored from cache", "identities", len(names))
}

func (d *Directory) swap(names map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names = names
}
