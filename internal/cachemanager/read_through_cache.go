package cachemanager

import (
	"context"
	"time"
)

// LoadFunc fetches the value for input on a cache miss.
type LoadFunc[V any, I any] func(ctx context.Context, input I) (V, error)

// ReadThroughCache consults a CacheManager before calling a loader and stores
// successful loads. Errors are never cached.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache    CacheManager[K, V]
	load     LoadFunc[V, I]
	skip     bool
	onResult func(hit bool)
}

// NewReadThroughCache wraps load with cache. When skipCache is true every Get
// goes straight to the loader.
func NewReadThroughCache[K ~string, V any, I any](cache CacheManager[K, V], load LoadFunc[V, I], skipCache bool) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{cache: cache, load: load, skip: skipCache}
}

// OnResult registers a callback invoked after every lookup with whether it hit.
func (r *ReadThroughCache[K, V, I]) OnResult(fn func(hit bool)) {
	r.onResult = fn
}

// Get returns the cached value for key or loads it from input.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	return r.get(ctx, key, input, ttl, r.cache.Get)
}

// GetWithRefresh is Get, but a hit extends the entry's lifetime to ttl.
func (r *ReadThroughCache[K, V, I]) GetWithRefresh(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	return r.get(ctx, key, input, ttl, func(ctx context.Context, key K) (V, bool) {
		return r.cache.GetWithRefresh(ctx, key, ttl)
	})
}

func (r *ReadThroughCache[K, V, I]) get(
	ctx context.Context,
	key K,
	input I,
	ttl time.Duration,
	lookup func(context.Context, K) (V, bool),
) (V, error) {
	if r.skip {
		return r.load(ctx, input)
	}

	if v, ok := lookup(ctx, key); ok {
		r.report(true)
		return v, nil
	}
	r.report(false)

	v, err := r.load(ctx, input)
	if err != nil {
		return v, err
	}
	r.cache.Set(ctx, key, v, ttl)
	return v, nil
}

func (r *ReadThroughCache[K, V, I]) report(hit bool) {
	if r.onResult != nil {
		r.onResult(hit)
	}
}
