package persistence

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/orderline-app/orderline/platform/go/metrics"
	"github.com/orderline-app/orderline/platform/go/tenant"
)

// PoolRegistry owns one pgx pool per distinct connection target (the master
// URL, or the master URL with a per-store search_path option). Pools are never
// shared across targets even when they point at the same physical server.
type PoolRegistry struct {
	mu     sync.Mutex
	pools  map[string]*pgxpool.Pool
	cfg    PoolConfig
	logger *zap.Logger
}

// NewPoolRegistry creates an empty registry. cfg.ConnString is ignored; the
// per-target connection string is supplied on each Get call while the sizing
// knobs apply to every pool the registry opens.
func NewPoolRegistry(cfg PoolConfig, logger *zap.Logger) *PoolRegistry {
	if logger == nil {
		panic("pool registry requires logger")
	}
	return &PoolRegistry{
		pools:  make(map[string]*pgxpool.Pool),
		cfg:    cfg,
		logger: logger,
	}
}

// Get returns the pool for the given target, opening it on first use. The
// registry mutex is held across pool creation so two concurrent first
// requests for the same target still end up with exactly one pool.
func (r *PoolRegistry) Get(ctx context.Context, target string) (*pgxpool.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pool, ok := r.pools[target]; ok {
		return pool, nil
	}

	cfg := r.cfg
	cfg.ConnString = target
	pool, err := NewPool(ctx, cfg, r.logger)
	if err != nil {
		return nil, err
	}

	r.pools[target] = pool
	r.logger.Info("opened connection pool", zap.Int("registered_pools", len(r.pools)))
	return pool, nil
}

// CloseTarget terminates and forgets the pool for one target. No-op when the
// target has no open pool.
func (r *PoolRegistry) CloseTarget(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.pools[target]
	if !ok {
		return
	}
	pool.Close()
	delete(r.pools, target)
}

// CloseAll terminates every owned pool. Idempotent: safe to call when nothing
// is open and safe to call repeatedly.
func (r *PoolRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for target, pool := range r.pools {
		pool.Close()
		delete(r.pools, target)
	}
}

// Len reports how many pools are currently registered.
func (r *PoolRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}

// Stats snapshots pgxpool statistics per target for metrics exposition.
func (r *PoolRegistry) Stats() map[string]*pgxpool.Stat {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make(map[string]*pgxpool.Stat, len(r.pools))
	for target, pool := range r.pools {
		stats[target] = pool.Stat()
	}
	return stats
}

// StatLabels snapshots pool statistics keyed by a redacted target label.
// Connection strings carry credentials and never leave the process, so the
// label is the schema the target selects, or "master" for the bare URL.
func (r *PoolRegistry) StatLabels(_ context.Context) map[string]metrics.PoolStat {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make(map[string]metrics.PoolStat, len(r.pools))
	for target, pool := range r.pools {
		stats[targetLabel(target)] = pool.Stat()
	}
	return stats
}

func targetLabel(target string) string {
	schema, dedicated := tenant.SchemaFromDatabaseURL(&target, "")
	if !dedicated {
		return "master"
	}
	return schema
}
