package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn counts releases so tests can assert every borrow is returned.
type fakeConn struct {
	mu       sync.Mutex
	released int
}

func (c *fakeConn) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
}

func (c *fakeConn) releaseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// fakeAcquirer hands out one fakeConn per Acquire and counts borrows.
type fakeAcquirer struct {
	mu       sync.Mutex
	acquired int
	conns    []*fakeConn
}

func (a *fakeAcquirer) Acquire(ctx context.Context) (Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acquired++
	conn := &fakeConn{}
	a.conns = append(a.conns, conn)
	return conn, nil
}

func (a *fakeAcquirer) releasedTotal() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, c := range a.conns {
		total += c.releaseCount()
	}
	return total
}

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		BackoffFactor:  1.5,
		AttemptTimeout: time.Second,
	}
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	acq := &fakeAcquirer{}
	exec := NewExecutorWithConfig(acq, zap.NewNop(), testRetryConfig())

	calls := 0
	err := exec.Execute(context.Background(), "test-op", func(ctx context.Context, conn Conn) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, acq.acquired)
	require.Equal(t, 1, acq.releasedTotal())
}

func TestExecuteFatalErrorDoesNotRetry(t *testing.T) {
	acq := &fakeAcquirer{}
	exec := NewExecutorWithConfig(acq, zap.NewNop(), testRetryConfig())

	fatal := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	calls := 0
	err := exec.Execute(context.Background(), "test-op", func(ctx context.Context, conn Conn) error {
		calls++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, acq.acquired)
	require.Equal(t, 1, acq.releasedTotal())
}

func TestExecuteRetriesTransientThenRecovers(t *testing.T) {
	acq := &fakeAcquirer{}
	exec := NewExecutorWithConfig(acq, zap.NewNop(), testRetryConfig())

	transient := &pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"}
	calls := 0
	err := exec.Execute(context.Background(), "test-op", func(ctx context.Context, conn Conn) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	// A fresh connection is borrowed and released on every attempt.
	require.Equal(t, 3, acq.acquired)
	require.Equal(t, 3, acq.releasedTotal())
}

func TestExecuteExhaustsRetriesAndReturnsLastError(t *testing.T) {
	acq := &fakeAcquirer{}
	exec := NewExecutorWithConfig(acq, zap.NewNop(), testRetryConfig())

	transient := errors.New("unexpected network failure")
	calls := 0
	err := exec.Execute(context.Background(), "test-op", func(ctx context.Context, conn Conn) error {
		calls++
		return transient
	})
	require.ErrorIs(t, err, transient)
	require.Equal(t, 3, calls)
	require.Equal(t, 3, acq.releasedTotal())
}

func TestExecuteAttemptTimeout(t *testing.T) {
	acq := &fakeAcquirer{}
	cfg := testRetryConfig()
	cfg.MaxAttempts = 1
	cfg.AttemptTimeout = 10 * time.Millisecond
	exec := NewExecutorWithConfig(acq, zap.NewNop(), cfg)

	err := exec.Execute(context.Background(), "test-op", func(ctx context.Context, conn Conn) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return ctx.Err()
	})
	require.ErrorIs(t, err, ErrAttemptTimeout)
}

func TestExecuteTimeoutKeepsConnectionUntilOperationReturns(t *testing.T) {
	acq := &fakeAcquirer{}
	cfg := testRetryConfig()
	cfg.MaxAttempts = 1
	cfg.AttemptTimeout = 10 * time.Millisecond
	exec := NewExecutorWithConfig(acq, zap.NewNop(), cfg)

	unblock := make(chan struct{})
	err := exec.Execute(context.Background(), "test-op", func(ctx context.Context, conn Conn) error {
		// Ignores cancellation and keeps using the connection after the
		// attempt gives up on it.
		<-unblock
		return nil
	})
	require.ErrorIs(t, err, ErrAttemptTimeout)

	// The handle must not go back to the pool while the operation still
	// holds it.
	require.Equal(t, 0, acq.releasedTotal())

	close(unblock)
	require.Eventually(t, func() bool {
		return acq.releasedTotal() == 1
	}, time.Second, time.Millisecond)
}

func TestExecuteStopsWaitingWhenCallerCancels(t *testing.T) {
	acq := &fakeAcquirer{}
	exec := NewExecutorWithConfig(acq, zap.NewNop(), RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   time.Minute,
		BackoffFactor:  1.5,
		AttemptTimeout: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	transient := errors.New("connection reset")
	err := exec.Execute(ctx, "test-op", func(ctx context.Context, conn Conn) error {
		return transient
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"no rows", pgx.ErrNoRows, false},
		{"not found", ErrNotFound, false},
		{"attempt timeout", ErrAttemptTimeout, true},
		{"deadline", context.DeadlineExceeded, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"connection fragment", errors.New("read: connection reset by peer"), true},
		{"websocket fragment", errors.New("websocket closed unexpectedly"), true},
		{"plain failure", errors.New("syntax error"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.retryable, IsRetryableError(tc.err))
		})
	}
}
