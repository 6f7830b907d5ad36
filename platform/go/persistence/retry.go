package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/orderline-app/orderline/platform/go/metrics"
)

// ErrAttemptTimeout marks an attempt that did not settle within the configured
// bound. It is distinct from any error the operation itself produces. The
// client stops waiting; the server-side statement is only cancelled
// best-effort through context cancellation.
var ErrAttemptTimeout = errors.New("operation timed out")

// Conn is the slice of *pgxpool.Conn the retry executor hands to operations.
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Release()
}

// Acquirer abstracts pool acquisition so tests can count borrow/return pairs.
type Acquirer interface {
	Acquire(ctx context.Context) (Conn, error)
}

type poolAcquirer struct {
	pool *pgxpool.Pool
}

func (p poolAcquirer) Acquire(ctx context.Context) (Conn, error) {
	return p.pool.Acquire(ctx)
}

// RetryConfig tunes the resilient execution wrapper.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	BackoffFactor  float64
	AttemptTimeout time.Duration
}

// DefaultRetryConfig returns the production retry policy: three attempts,
// exponential backoff (1s, then x1.5, no jitter), 30s per-attempt bound.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		BackoffFactor:  1.5,
		AttemptTimeout: 30 * time.Second,
	}
}

// Executor runs database operations against one pool with timeout and
// retry-on-transient-error semantics. A fresh connection is borrowed for each
// attempt and released only after the operation returns, even when the
// attempt itself has already timed out.
type Executor struct {
	pool   Acquirer
	logger *zap.Logger
	cfg    RetryConfig
}

// NewExecutor wraps a pgx pool with the default retry policy.
func NewExecutor(pool *pgxpool.Pool, logger *zap.Logger) *Executor {
	if pool == nil {
		panic("executor requires pool")
	}
	return NewExecutorWithConfig(poolAcquirer{pool: pool}, logger, DefaultRetryConfig())
}

// NewExecutorWithConfig builds an Executor over any Acquirer with an explicit
// retry policy. Intended for wiring fakes in tests.
func NewExecutorWithConfig(pool Acquirer, logger *zap.Logger, cfg RetryConfig) *Executor {
	if pool == nil {
		panic("executor requires pool")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Executor{pool: pool, logger: logger, cfg: cfg}
}

// Execute runs op with retry semantics. Retryable failures consume attempts
// with growing delays in between; fatal errors abort immediately. When every
// attempt fails the last observed error is returned and the caller decides
// final disposition.
func (e *Executor) Execute(ctx context.Context, label string, op func(ctx context.Context, conn Conn) error) error {
	delay := e.cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		err := e.attempt(ctx, op)
		if err == nil {
			metrics.DBRetryAttempts.WithLabelValues(label, "success").Inc()
			if attempt > 1 {
				e.logger.Info("operation recovered",
					zap.String("operation", label),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}

		lastErr = err
		if !IsRetryableError(err) {
			metrics.DBRetryAttempts.WithLabelValues(label, "fatal").Inc()
			e.logger.Debug("operation failed with non-retryable error",
				zap.String("operation", label),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}

		metrics.DBRetryAttempts.WithLabelValues(label, "retryable").Inc()
		e.logger.Warn("operation failed, will retry",
			zap.String("operation", label),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.cfg.MaxAttempts),
			zap.Error(err),
		)

		if attempt < e.cfg.MaxAttempts {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay = time.Duration(float64(delay) * e.cfg.BackoffFactor)
		}
	}

	metrics.DBRetryExhausted.WithLabelValues(label).Inc()
	e.logger.Error("operation exhausted retries",
		zap.String("operation", label),
		zap.Int("attempts", e.cfg.MaxAttempts),
		zap.Error(lastErr),
	)
	return lastErr
}

func (e *Executor) attempt(ctx context.Context, op func(ctx context.Context, conn Conn) error) error {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	release := func() {
		// Releasing must never take the request down, even if the pool
		// implementation panics on a broken connection.
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("connection release panicked", zap.Any("panic", r))
			}
		}()
		conn.Release()
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()

	// The connection is released by the operation goroutine, never here: a
	// timed-out attempt abandons the wait but the handle stays borrowed until
	// op actually returns, so the pool never re-lends a connection that is
	// still in use.
	done := make(chan error, 1)
	go func() {
		err := op(attemptCtx, conn)
		release()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrAttemptTimeout
		}
		return attemptCtx.Err()
	}
}

// retryableSQLStates covers transport/connection-class failures a serverless
// Postgres endpoint produces during scale-to-zero and backend recycling.
var retryableSQLStates = map[string]struct{}{
	"57P01": {}, // admin_shutdown
	"57P02": {}, // crash_shutdown
	"57P03": {}, // cannot_connect_now
	"57014": {}, // query_canceled (statement timeout)
	"08000": {}, // connection_exception
	"08001": {}, // sqlclient_unable_to_establish_sqlconnection
	"08003": {}, // connection_does_not_exist
	"08004": {}, // sqlserver_rejected_establishment_of_sqlconnection
	"08006": {}, // connection_failure
	"53300": {}, // too_many_connections
}

var retryableFragments = []string{"connection", "timeout", "websocket", "network"}

// IsRetryableError reports whether an error is transient enough to justify
// another attempt. Anything else is fatal and aborts immediately.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, ErrAttemptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryableSQLStates[pgErr.Code]
		return ok
	}

	if pgconn.Timeout(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
