package session

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/goliatone/go-errors"
)

// CacheKeyPrefix namespaces profile entries inside the KeyValueStore so the
// sign-out purge can enumerate them without touching unrelated keys.
const CacheKeyPrefix = "profile_"

// ProfileCache persists the last successfully resolved profile per user. It
// is best effort by contract: writes and reads never fail the caller, only
// the sign-out purge reports errors because leaving credentials-adjacent
// data behind is not acceptable.
type ProfileCache struct {
	kv     KeyValueStore
	logger Logger
}

// ProfileCacheOption customizes cache construction.
type ProfileCacheOption func(*ProfileCache)

// WithCacheLogger overrides the cache logger.
func WithCacheLogger(logger Logger) ProfileCacheOption {
	return func(c *ProfileCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewProfileCache builds a ProfileCache on top of any KeyValueStore.
func NewProfileCache(kv KeyValueStore, opts ...ProfileCacheOption) *ProfileCache {
	_, logger := ResolveLogger("session.cache", nil, nil)
	cache := &ProfileCache{
		kv:     kv,
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	return cache
}

// Put stores a freshly resolved profile. Persistence failures are logged and
// otherwise invisible; the fresh profile is already on its way to consumers.
func (c *ProfileCache) Put(ctx context.Context, profile *Profile) {
	if profile == nil || profile.UserID == "" {
		return
	}

	payload, err := json.Marshal(profile)
	if err != nil {
		c.logger.Warn("unable to encode profile for cache", "user_id", profile.UserID, "error", err)
		return
	}

	if err := c.kv.Set(ctx, CacheKeyPrefix+profile.UserID, string(payload)); err != nil {
		c.logger.Warn("unable to cache profile", "user_id", profile.UserID, "error", err)
		return
	}

	c.logger.Debug("profile cached", "user_id", profile.UserID)
}

// Get returns the cached profile for the user, or nil. Read failures and
// corrupt entries are treated as absent, never propagated.
func (c *ProfileCache) Get(ctx context.Context, userID string) *Profile {
	if userID == "" {
		return nil
	}

	raw, err := c.kv.Get(ctx, CacheKeyPrefix+userID)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			c.logger.Warn("unable to read cached profile", "user_id", userID, "error", err)
		}
		return nil
	}

	profile := &Profile{}
	if err := json.Unmarshal([]byte(raw), profile); err != nil {
		c.logger.Warn("discarding corrupt cached profile", "user_id", userID, "error", err)
		return nil
	}

	return profile
}

// PurgeAll removes every profile entry this cache owns. Used exclusively by
// sign-out. Individual removal failures are logged and also surfaced so the
// caller knows stale entries may remain.
func (c *ProfileCache) PurgeAll(ctx context.Context) error {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		c.logger.Error("unable to list cache keys for purge", "error", err)
		return errors.Wrap(err, errors.CategoryInternal, "failed to enumerate profile cache entries")
	}

	var failed []string
	for _, key := range keys {
		if !strings.HasPrefix(key, CacheKeyPrefix) {
			continue
		}
		if err := c.kv.Remove(ctx, key); err != nil {
			c.logger.Error("unable to remove cached profile", "key", key, "error", err)
			failed = append(failed, key)
		}
	}

	if len(failed) > 0 {
		return errors.New("failed to purge profile cache entries", errors.CategoryInternal).
			WithMetadata(map[string]any{"keys": failed})
	}

	return nil
}
