// internal/storage/reel_cache.go
package storage

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "github.com/Corphon/SocialGenius/internal/errors"
	"github.com/Corphon/SocialGenius/internal/models"
)

const reelCachePrefix = "reel-cache::"

// MsgCacheWriteFailed is the warning shown when scenes could not be persisted
const MsgCacheWriteFailed = "Could not save videos to cache. The cache may be full."

// ReelCache maps a script to the scene list generated for it
type ReelCache struct {
	store KeyValueStore
}

func NewReelCache(store KeyValueStore) *ReelCache {
	return &ReelCache{store: store}
}

// Key is "reel-cache::" + title + "::" + script
func (c *ReelCache) Key(script models.ReelScript) string {
	return reelCachePrefix + script.Title + "::" + script.Script
}

// Load returns the cached scenes for script, or nil when there is no entry.
// An unreadable or corrupt entry yields nil scenes plus a CacheError.
func (c *ReelCache) Load(ctx context.Context, script models.ReelScript) ([]models.ReelScene, error) {
	raw, err := c.store.Get(ctx, c.Key(script))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewCacheError("Failed to read from cache", err)
	}

	var scenes []models.ReelScene
	if err := json.Unmarshal([]byte(raw), &scenes); err != nil {
		return nil, apperrors.NewCacheError("Failed to read from cache", err)
	}
	return scenes, nil
}

// Save persists the full scene list for script
func (c *ReelCache) Save(ctx context.Context, script models.ReelScript, scenes []models.ReelScene) error {
	data, err := json.Marshal(scenes)
	if err != nil {
		return apperrors.NewCacheError(MsgCacheWriteFailed, err)
	}
	if err := c.store.Set(ctx, c.Key(script), string(data)); err != nil {
		return apperrors.NewCacheError(MsgCacheWriteFailed, err)
	}
	return nil
}

// Remove drops the entry for script
func (c *ReelCache) Remove(ctx context.Context, script models.ReelScript) error {
	if err := c.store.Delete(ctx, c.Key(script)); err != nil {
		return apperrors.NewCacheError("Failed to remove cache entry", err)
	}
	return nil
}
