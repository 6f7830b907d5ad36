package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	DBRetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ol_db_retry_attempts_total",
			Help: "Database operation attempts by outcome",
		},
		[]string{"label", "outcome"},
	)
	DBRetryExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ol_db_retry_exhausted_total",
			Help: "Operations that failed after all retry attempts",
		},
		[]string{"label"},
	)
	StoreCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ol_store_cache_hits_total",
			Help: "Store connection cache hits",
		},
	)
	StoreCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ol_store_cache_misses_total",
			Help: "Store connection cache misses",
		},
	)
	StoreCacheInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ol_store_cache_invalidations_total",
			Help: "Store connection cache invalidations",
		},
	)
	PoolTotalConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ol_pool_total_conns",
			Help: "Total connections per pool target",
		},
		[]string{"target"},
	)
	PoolIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ol_pool_idle_conns",
			Help: "Idle connections per pool target",
		},
		[]string{"target"},
	)
	PoolAcquiredConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ol_pool_acquired_conns",
			Help: "Acquired connections per pool target",
		},
		[]string{"target"},
	)
	EcosystemIssues = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ol_ecosystem_issues",
			Help: "Open ecosystem issues per store by severity",
		},
		[]string{"store", "severity"},
	)
	MessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ol_messages_processed_total",
			Help: "WhatsApp messages processed by direction",
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(
		DBRetryAttempts,
		DBRetryExhausted,
		StoreCacheHits,
		StoreCacheMisses,
		StoreCacheInvalidations,
		PoolTotalConns,
		PoolIdleConns,
		PoolAcquiredConns,
		EcosystemIssues,
		MessagesProcessed,
	)
}

// PoolStat is the subset of pgxpool.Stat the gauges consume.
type PoolStat interface {
	TotalConns() int32
	IdleConns() int32
	AcquiredConns() int32
}

// PoolStatser reports per-target pool statistics, keyed by an opaque target label.
type PoolStatser interface {
	StatLabels(ctx context.Context) map[string]PoolStat
}

// StartPoolGauge updates the pool gauges every 15 seconds until ctx is done.
func StartPoolGauge(ctx context.Context, pools PoolStatser, logger *zap.Logger) {
	if pools == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := pools.StatLabels(ctx)
				for target, s := range stats {
					PoolTotalConns.WithLabelValues(target).Set(float64(s.TotalConns()))
					PoolIdleConns.WithLabelValues(target).Set(float64(s.IdleConns()))
					PoolAcquiredConns.WithLabelValues(target).Set(float64(s.AcquiredConns()))
				}
				if logger != nil {
					logger.Debug("pool gauges updated", zap.Int("targets", len(stats)))
				}
			}
		}
	}()
}
