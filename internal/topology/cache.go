package topology

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"mail2alert/internal/logger"
	"mail2alert/pkg/metrics"
)

const (
	DefaultTTL            = 30 * time.Second
	defaultRefreshTimeout = 20 * time.Second
)

var errEmptyTopology = errors.New("fetched topology contains no pipeline groups")

type Fetcher interface {
	FetchGroups(ctx context.Context) ([]Group, error)
}

// Cache serves the latest topology snapshot and refreshes it in the background
// once it is older than the TTL. Readers never wait for a refresh; they get the
// previous snapshot until the new one is swapped in.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	logger  logger.Logger
	now     func() time.Time

	snapshot   atomic.Pointer[Snapshot]
	refreshing atomic.Bool
	flight     singleflight.Group

	ctxMu   sync.RWMutex
	baseCtx context.Context
	stopped bool
}

func NewCache(fetcher Fetcher, ttl time.Duration, log logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		logger:  log,
		now:     time.Now,
		baseCtx: context.Background(),
	}
	c.snapshot.Store(&Snapshot{})
	return c
}

// Get returns the current snapshot and kicks off an asynchronous refresh when it is stale.
func (c *Cache) Get() *Snapshot {
	snap := c.snapshot.Load()
	if c.now().Sub(snap.FetchedAt) > c.ttl {
		c.refreshAsync()
	}
	return snap
}

// Current returns the snapshot without triggering a refresh.
func (c *Cache) Current() *Snapshot {
	return c.snapshot.Load()
}

// Set replaces the snapshot; used to seed the cache from a static source.
func (c *Cache) Set(groups []Group) {
	c.store(groups)
}

func (c *Cache) refreshAsync() {
	c.ctxMu.RLock()
	ctx, stopped := c.baseCtx, c.stopped
	c.ctxMu.RUnlock()

	if stopped || !c.refreshing.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer c.refreshing.Store(false)
		refreshCtx, cancel := context.WithTimeout(ctx, defaultRefreshTimeout)
		defer cancel()
		_ = c.Refresh(refreshCtx)
	}()
}

// Refresh fetches the topology now. On failure the previous snapshot is kept.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.flight.Do("refresh", func() (interface{}, error) {
		c.logger.DebugwCtx(ctx, "Fetching pipeline groups")
		groups, err := c.fetcher.FetchGroups(ctx)
		if err == nil && len(groups) == 0 {
			err = errEmptyTopology
		}
		if err != nil {
			metrics.TopologyRefreshTotal.WithLabelValues("failure").Inc()
			c.logger.WarnwCtx(ctx, "Failed to refresh pipeline groups, keeping previous snapshot",
				"error", err,
				"snapshot_age", c.now().Sub(c.snapshot.Load().FetchedAt).String(),
			)
			return nil, err
		}

		c.store(groups)
		metrics.TopologyRefreshTotal.WithLabelValues("success").Inc()
		c.logger.DebugwCtx(ctx, "Set pipeline groups",
			"groups", len(groups),
		)
		return nil, nil
	})
	return err
}

func (c *Cache) store(groups []Group) {
	snap := &Snapshot{Groups: groups, FetchedAt: c.now()}
	c.snapshot.Store(snap)
	metrics.TopologyPipelines.Set(float64(snap.PipelineCount()))
}

// Run refreshes on every TTL tick until ctx is cancelled. After Run returns, Get no
// longer starts refreshes and any in-flight fetch is abandoned through ctx.
func (c *Cache) Run(ctx context.Context) error {
	c.ctxMu.Lock()
	c.baseCtx = ctx
	c.ctxMu.Unlock()

	defer func() {
		c.ctxMu.Lock()
		c.stopped = true
		c.ctxMu.Unlock()
	}()

	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.Refresh(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
