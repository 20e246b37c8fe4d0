package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) (cachedPost, bool) {
	args := m.Called(ctx, key)
	return args.Get(0).(cachedPost), args.Bool(1)
}

func (m *mockCache) GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (cachedPost, bool) {
	args := m.Called(ctx, key, ttl)
	return args.Get(0).(cachedPost), args.Bool(1)
}

func (m *mockCache) Set(ctx context.Context, key string, value cachedPost, ttl time.Duration) {
	m.Called(ctx, key, value, ttl)
}

func (m *mockCache) Delete(ctx context.Context, keys ...string) {
	m.Called(ctx, keys)
}

func (m *mockCache) Flush(ctx context.Context) {
	m.Called(ctx)
}

func loadPost(calls *int) LoadFunc[cachedPost, string] {
	return func(_ context.Context, id string) (cachedPost, error) {
		*calls++
		return cachedPost{ID: id, Title: "loaded"}, nil
	}
}

func TestReadThroughCache_SkipCache(t *testing.T) {
	m := &mockCache{}
	var calls int
	r := NewReadThroughCache[string, cachedPost, string](m, loadPost(&calls), true)

	got, err := r.Get(context.Background(), "t3_abc", "abc", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "abc", got.ID)
	require.Equal(t, 1, calls)
	m.AssertExpectations(t)
}

func TestReadThroughCache_Hit(t *testing.T) {
	m := &mockCache{}
	m.On("Get", mock.Anything, "t3_abc").Return(cachedPost{ID: "abc", Title: "cached"}, true)

	var calls int
	var hits []bool
	r := NewReadThroughCache[string, cachedPost, string](m, loadPost(&calls), false)
	r.OnResult(func(hit bool) { hits = append(hits, hit) })

	got, err := r.Get(context.Background(), "t3_abc", "abc", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "cached", got.Title)
	require.Zero(t, calls)
	require.Equal(t, []bool{true}, hits)
	m.AssertExpectations(t)
}

func TestReadThroughCache_MissStores(t *testing.T) {
	m := &mockCache{}
	m.On("Get", mock.Anything, "t3_abc").Return(cachedPost{}, false)
	m.On("Set", mock.Anything, "t3_abc", cachedPost{ID: "abc", Title: "loaded"}, time.Minute).Return()

	var calls int
	r := NewReadThroughCache[string, cachedPost, string](m, loadPost(&calls), false)

	got, err := r.Get(context.Background(), "t3_abc", "abc", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "loaded", got.Title)
	require.Equal(t, 1, calls)
	m.AssertExpectations(t)
}

func TestReadThroughCache_LoadErrorNotCached(t *testing.T) {
	m := &mockCache{}
	m.On("GetWithRefresh", mock.Anything, "t3_abc", time.Minute).Return(cachedPost{}, false)

	r := NewReadThroughCache[string, cachedPost, string](m,
		func(context.Context, string) (cachedPost, error) {
			return cachedPost{}, errors.New("reddit unavailable")
		}, false)

	_, err := r.GetWithRefresh(context.Background(), "t3_abc", "abc", time.Minute)
	require.EqualError(t, err, "reddit unavailable")
	m.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReadThroughCache_InMemoryRoundTrip(t *testing.T) {
	cache := NewInMemoryCacheManager[string, cachedPost]("posts", DefaultExpiration, DefaultCleanupInterval)
	var calls int
	r := NewReadThroughCache[string, cachedPost, string](cache, loadPost(&calls), false)
	ctx := context.Background()

	for range 3 {
		_, err := r.Get(ctx, "t3_abc", "abc", time.Minute)
		require.NoError(t, err)
	}
	require.Equal(t, 1, calls)
	require.Equal(t, uint64(2), cache.Stats().Hits)
}
