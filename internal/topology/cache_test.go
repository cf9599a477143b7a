package topology

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail2alert/internal/logger"
)

type fakeFetcher struct {
	mu     sync.Mutex
	groups []Group
	err    error
	calls  atomic.Int32
	block  chan struct{}
}

func (f *fakeFetcher) FetchGroups(ctx context.Context) ([]Group, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups, f.err
}

func (f *fakeFetcher) set(groups []Group, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups, f.err = groups, err
}

func groups(name string, pipelines ...string) []Group {
	g := Group{Name: name}
	for _, p := range pipelines {
		g.Pipelines = append(g.Pipelines, Pipeline{Name: p})
	}
	return []Group{g}
}

func TestSnapshotContains(t *testing.T) {
	snap := &Snapshot{Groups: []Group{
		{Name: "g1", Pipelines: []Pipeline{{Name: "p1"}, {Name: "p2"}}},
		{Name: "g2", Pipelines: []Pipeline{{Name: "p2"}, {Name: "p3"}}},
	}}

	assert.True(t, snap.Contains("g1", "p1"))
	assert.False(t, snap.Contains("g1", "p3"))
	assert.False(t, snap.Contains("missing", "p1"))
	assert.False(t, snap.Contains("g1", ""))
	assert.Equal(t, []string{"p1", "p2", "p3"}, snap.PipelineNames())
	assert.Equal(t, 4, snap.PipelineCount())

	var empty *Snapshot
	assert.Nil(t, empty.Members("g1"))
	assert.False(t, empty.Contains("g1", "p1"))
}

func TestCacheRefreshStoresSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{groups: groups("g1", "p1")}
	cache := NewCache(fetcher, time.Minute, logger.NopLogger())

	require.NoError(t, cache.Refresh(context.Background()))

	assert.True(t, cache.Current().Contains("g1", "p1"))
}

func TestCacheRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{groups: groups("g1", "p1")}
	cache := NewCache(fetcher, time.Minute, logger.NopLogger())
	require.NoError(t, cache.Refresh(context.Background()))

	fetcher.set(nil, errors.New("connection refused"))
	assert.Error(t, cache.Refresh(context.Background()))
	assert.True(t, cache.Current().Contains("g1", "p1"))

	fetcher.set([]Group{}, nil)
	assert.ErrorIs(t, cache.Refresh(context.Background()), errEmptyTopology)
	assert.True(t, cache.Current().Contains("g1", "p1"))
}

func TestCacheGetServesStaleWhileRefreshing(t *testing.T) {
	fetcher := &fakeFetcher{groups: groups("g1", "p1")}
	cache := NewCache(fetcher, time.Minute, logger.NopLogger())

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var clock atomic.Pointer[time.Time]
	clock.Store(&now)
	cache.now = func() time.Time { return *clock.Load() }

	require.NoError(t, cache.Refresh(context.Background()))
	require.Equal(t, int32(1), fetcher.calls.Load())

	assert.True(t, cache.Get().Contains("g1", "p1"))
	assert.Equal(t, int32(1), fetcher.calls.Load(), "fresh snapshot must not trigger a fetch")

	later := now.Add(2 * time.Minute)
	clock.Store(&later)
	fetcher.set(groups("g1", "p1", "p2"), nil)

	stale := cache.Get()
	assert.False(t, stale.Contains("g1", "p2"), "caller gets the previous snapshot immediately")

	assert.Eventually(t, func() bool {
		return cache.Current().Contains("g1", "p2")
	}, time.Second, 5*time.Millisecond)
}

func TestCacheStartsAtMostOneRefresh(t *testing.T) {
	fetcher := &fakeFetcher{groups: groups("g1", "p1"), block: make(chan struct{})}
	cache := NewCache(fetcher, time.Millisecond, logger.NopLogger())

	for i := 0; i < 20; i++ {
		cache.Get()
	}

	assert.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	for i := 0; i < 20; i++ {
		cache.Get()
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())

	close(fetcher.block)
	assert.Eventually(t, func() bool {
		return cache.Current().Contains("g1", "p1")
	}, time.Second, 5*time.Millisecond)
}

func TestCacheRunStopsOnCancel(t *testing.T) {
	fetcher := &fakeFetcher{groups: groups("g1", "p1")}
	cache := NewCache(fetcher, 10*time.Millisecond, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cache.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return cache.Current().Contains("g1", "p1")
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	calls := fetcher.calls.Load()
	cache.Get()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, fetcher.calls.Load(), "no refresh after shutdown")
}
