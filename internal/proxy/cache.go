package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// CacheKey is the Redis key holding the cached proxy configuration.
const CacheKey = "proxyconsole:proxy-configuration"

// RedisClient is the subset of *redis.Client used by CachedService.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedService serves reads from Redis and falls back to the wrapped Service.
// Redis failures never fail a request.
type CachedService struct {
	next   Service
	client RedisClient
	ttl    time.Duration
}

// NewCachedService wraps next with a Redis read-through cache.
func NewCachedService(next Service, client RedisClient, ttl time.Duration) *CachedService {
	return &CachedService{next: next, client: client, ttl: ttl}
}

// GetProxy returns the cached configuration or loads and caches it.
func (s *CachedService) GetProxy(ctx context.Context) (Proxy, error) {
	raw, errGet := s.client.Get(ctx, CacheKey).Bytes()
	switch {
	case errGet == nil:
		var cached Proxy
		if errUnmarshal := json.Unmarshal(raw, &cached); errUnmarshal == nil {
			return cached, nil
		}
		log.Warn("proxy cache: discarding undecodable entry")
	case !errors.Is(errGet, redis.Nil):
		log.WithError(errGet).Warn("proxy cache: read failed")
	}

	p, errLoad := s.next.GetProxy(ctx)
	if errLoad != nil {
		return Proxy{}, errLoad
	}

	encoded, errMarshal := json.Marshal(p)
	if errMarshal != nil {
		return p, nil
	}
	// SetNX: an entry written by a concurrent update is newer than p.
	if errSet := s.client.SetNX(ctx, CacheKey, encoded, s.ttl).Err(); errSet != nil {
		log.WithError(errSet).Warn("proxy cache: write failed")
	}
	return p, nil
}

// UpdateProxy writes through, then replaces the cached entry.
// When the cache write fails the entry is dropped instead.
func (s *CachedService) UpdateProxy(ctx context.Context, p Proxy) error {
	if errUpdate := s.next.UpdateProxy(ctx, p); errUpdate != nil {
		return errUpdate
	}

	encoded, errMarshal := json.Marshal(p)
	if errMarshal == nil {
		errSet := s.client.Set(ctx, CacheKey, encoded, s.ttl).Err()
		if errSet == nil {
			return nil
		}
		log.WithError(errSet).Warn("proxy cache: refresh failed")
	}
	if errDel := s.client.Del(ctx, CacheKey).Err(); errDel != nil {
		log.WithError(errDel).Warn("proxy cache: invalidate failed")
	}
	return nil
}
