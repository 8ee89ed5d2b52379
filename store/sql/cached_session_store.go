package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-arcade/core"
)

const sessionCacheKeyPrefix = "go-arcade::save_session::v1"

// CachedSessionStore layers a read-through cache over a session store.
// Save sessions are read on every authorized write, so lookups dominate;
// mutations invalidate the affected key.
type CachedSessionStore struct {
	base  core.SessionStore
	cache repositorycache.CacheService
}

func NewCachedSessionStore(
	base core.SessionStore,
	cacheService repositorycache.CacheService,
) (*CachedSessionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base session store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: session cache service is required")
	}
	return &CachedSessionStore{base: base, cache: cacheService}, nil
}

// SessionCacheKey returns the deterministic cache key contract for session
// reads: go-arcade::save_session::v1::<user_id>::<token> with each segment
// URL-path escaped.
func SessionCacheKey(userID, token string) (string, error) {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return "", fmt.Errorf("sqlstore: user id and token are required for session cache key")
	}
	segments := []string{url.PathEscape(userID), url.PathEscape(token)}
	return strings.Join(append([]string{sessionCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedSessionStore) InsertSession(ctx context.Context, session core.SaveSession) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached session store is not configured")
	}
	if err := s.base.InsertSession(ctx, session); err != nil {
		return err
	}
	return s.invalidate(ctx, session.UserID, session.Token)
}

func (s *CachedSessionStore) GetSession(ctx context.Context, userID, token string) (core.SaveSession, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.SaveSession{}, fmt.Errorf("sqlstore: cached session store is not configured")
	}
	cacheKey, err := SessionCacheKey(userID, token)
	if err != nil {
		return core.SaveSession{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.SaveSession, error) {
		return s.base.GetSession(ctx, userID, token)
	})
}

func (s *CachedSessionStore) DeleteSession(ctx context.Context, userID, token string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached session store is not configured")
	}
	if err := s.base.DeleteSession(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID, token)
}

// DeleteExpiredSessions forwards to the base store. Stale cache entries
// age out through the cache TTL; expiry is checked by the session
// authority against the wall clock anyway.
func (s *CachedSessionStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.base == nil {
		return 0, fmt.Errorf("sqlstore: cached session store is not configured")
	}
	return s.base.DeleteExpiredSessions(ctx, now)
}

func (s *CachedSessionStore) invalidate(ctx context.Context, userID, token string) error {
	cacheKey, err := SessionCacheKey(userID, token)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.SessionStore = (*CachedSessionStore)(nil)
