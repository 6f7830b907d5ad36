package tenant

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/orderline-app/orderline/platform/go/metrics"
)

// PoolOpener is the slice of the pool registry the cache needs: open (or
// reuse) a pool for a target, and close one target's pool. The registry
// deduplicates pools per target, so a racing duplicate resolution can never
// leak a second pool.
type PoolOpener interface {
	Get(ctx context.Context, target string) (*pgxpool.Pool, error)
	CloseTarget(target string)
}

// TargetResolver resolves a store id to a connection target on every cache
// miss.
type TargetResolver interface {
	Resolve(ctx context.Context, storeID int64) (Target, error)
}

// Conn is a live routing entry: the resolved target plus the pool serving it.
type Conn struct {
	Target Target
	Pool   *pgxpool.Pool
}

// ConnCache memoizes resolved store connections keyed by store id. Hits are
// served without re-querying the registry or re-validating store activity;
// staleness is accepted until an explicit Invalidate.
type ConnCache struct {
	mu       sync.RWMutex
	entries  map[int64]Conn
	resolver TargetResolver
	pools    PoolOpener
	logger   *zap.Logger
}

func NewConnCache(resolver TargetResolver, pools PoolOpener, logger *zap.Logger) *ConnCache {
	if resolver == nil {
		panic("conn cache requires resolver")
	}
	if pools == nil {
		panic("conn cache requires pool opener")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnCache{
		entries:  make(map[int64]Conn),
		resolver: resolver,
		pools:    pools,
		logger:   logger,
	}
}

// Get returns the cached connection for storeID, resolving and opening one on
// miss. Two concurrent misses for the same store may both resolve; the second
// write wins, which is harmless because both resolutions map to the same pool.
func (c *ConnCache) Get(ctx context.Context, storeID int64) (Conn, error) {
	c.mu.RLock()
	conn, ok := c.entries[storeID]
	c.mu.RUnlock()
	if ok {
		metrics.StoreCacheHits.Inc()
		return conn, nil
	}

	metrics.StoreCacheMisses.Inc()
	target, err := c.resolver.Resolve(ctx, storeID)
	if err != nil {
		return Conn{}, err
	}

	pool, err := c.pools.Get(ctx, target.ConnString)
	if err != nil {
		return Conn{}, err
	}

	conn = Conn{Target: target, Pool: pool}

	c.mu.Lock()
	c.entries[storeID] = conn
	c.mu.Unlock()

	if !target.Dedicated {
		c.logger.Warn("store routed to master schema; not yet migrated",
			zap.Int64("store_id", storeID),
		)
	}
	return conn, nil
}

// Invalidate closes the underlying pool before removing the cache entry so no
// handle is left dangling. Unmigrated stores share the master target, so every
// entry routed to the same target is evicted together; otherwise a sibling
// entry would keep serving the closed pool. Calling it for a store with no
// cached entry is a no-op.
func (c *ConnCache) Invalidate(storeID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[storeID]
	if !ok {
		return
	}
	for id, sibling := range c.entries {
		if sibling.Target.ConnString == entry.Target.ConnString {
			delete(c.entries, id)
			metrics.StoreCacheInvalidations.Inc()
			c.logger.Info("invalidated store connection", zap.Int64("store_id", id))
		}
	}
	c.pools.CloseTarget(entry.Target.ConnString)
}

// InvalidateAll drops every cached entry, closing each target's pool once.
func (c *ConnCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	targets := make(map[string]struct{})
	for storeID, entry := range c.entries {
		targets[entry.Target.ConnString] = struct{}{}
		delete(c.entries, storeID)
	}
	for target := range targets {
		c.pools.CloseTarget(target)
	}
}

// Len reports the number of cached store connections.
func (c *ConnCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
