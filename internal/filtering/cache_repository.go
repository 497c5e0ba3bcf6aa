package filtering

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"sieve/internal/constants"
	"sieve/internal/logger"
	"sieve/pkg/metrics"
)

// CachedRepository serves Get from redis and falls through to the wrapped
// repository on a miss. Writes go to the wrapped repository first and then
// evict the cached entry. Redis failures are logged and never fail a call.
type CachedRepository struct {
	Repository
	client redis.UniversalClient
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedRepository(repo Repository, client redis.UniversalClient, ttl time.Duration, log logger.Logger) *CachedRepository {
	return &CachedRepository{
		Repository: repo,
		client:     client,
		ttl:        ttl,
		logger:     log,
	}
}

func cacheKey(id string) string {
	return constants.CacheKeyPrefixFilter + id
}

func (r *CachedRepository) Get(ctx context.Context, id string) (*SavedFilter, error) {
	val, err := r.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var f SavedFilter
		if jsonErr := json.Unmarshal(val, &f); jsonErr == nil {
			metrics.IncFilterCacheRequest("hit")
			return &f, nil
		}
		r.logger.WarnwCtx(ctx, "Discarding undecodable cached filter", "filter_id", id)
		metrics.IncFilterCacheRequest("error")
	case errors.Is(err, redis.Nil):
		metrics.IncFilterCacheRequest("miss")
	default:
		r.logger.WarnwCtx(ctx, "Filter cache read failed", "filter_id", id, "error", err)
		metrics.IncFilterCacheRequest("error")
	}

	f, err := r.Repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.store(ctx, f)
	return f, nil
}

func (r *CachedRepository) Update(ctx context.Context, f *SavedFilter) error {
	if err := r.Repository.Update(ctx, f); err != nil {
		return err
	}
	r.evict(ctx, f.ID)
	return nil
}

func (r *CachedRepository) Delete(ctx context.Context, id string) error {
	if err := r.Repository.Delete(ctx, id); err != nil {
		return err
	}
	r.evict(ctx, id)
	return nil
}

func (r *CachedRepository) store(ctx context.Context, f *SavedFilter) {
	data, err := json.Marshal(f)
	if err != nil {
		r.logger.WarnwCtx(ctx, "Failed to encode filter for cache", "filter_id", f.ID, "error", err)
		return
	}
	if err := r.client.Set(ctx, cacheKey(f.ID), data, r.ttl).Err(); err != nil {
		r.logger.WarnwCtx(ctx, "Filter cache write failed", "filter_id", f.ID, "error", err)
	}
}

func (r *CachedRepository) evict(ctx context.Context, id string) {
	if err := r.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		r.logger.WarnwCtx(ctx, "Filter cache eviction failed", "filter_id", id, "error", err)
	}
}
