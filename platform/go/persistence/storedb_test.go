package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingTx satisfies pgx.Tx and records Exec statements plus arguments.
type recordingTx struct {
	stmts      []string
	args       [][]any
	committed  bool
	rolledBack bool
}

func (f *recordingTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("not implemented")
}
func (f *recordingTx) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}
func (f *recordingTx) Rollback(ctx context.Context) error {
	f.rolledBack = true
	return nil
}
func (f *recordingTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (f *recordingTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (f *recordingTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (f *recordingTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return &pgconn.StatementDescription{}, errors.New("not implemented")
}
func (f *recordingTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (f *recordingTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (f *recordingTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.stmts = append(f.stmts, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, nil
}
func (f *recordingTx) Conn() *pgx.Conn { return nil }

// txConn is a Conn whose Begin returns a preconstructed transaction.
type txConn struct {
	tx *recordingTx
}

func (c *txConn) Begin(ctx context.Context) (pgx.Tx, error) { return c.tx, nil }
func (c *txConn) Release()                                  {}

type txAcquirer struct {
	tx *recordingTx
}

func (a *txAcquirer) Acquire(ctx context.Context) (Conn, error) {
	return &txConn{tx: a.tx}, nil
}

func newTestStoreDB(tx *recordingTx, schema string) *StoreDB {
	exec := NewExecutorWithConfig(&txAcquirer{tx: tx}, zap.NewNop(), RetryConfig{
		MaxAttempts:    1,
		InitialDelay:   time.Millisecond,
		BackoffFactor:  1.5,
		AttemptTimeout: time.Second,
	})
	return NewStoreDB(exec, schema)
}

func TestWithTxScopesSearchPathToSchema(t *testing.T) {
	tx := &recordingTx{}
	db := newTestStoreDB(tx, "store_12")

	err := db.WithTx(context.Background(), "test-op", func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `SELECT 1`)
		return err
	})
	require.NoError(t, err)

	require.Len(t, tx.stmts, 2)
	require.Contains(t, tx.stmts[0], "set_config('search_path'")
	require.Equal(t, []any{"store_12"}, tx.args[0])
	require.True(t, tx.committed)
}

func TestWithTxMasterSchema(t *testing.T) {
	tx := &recordingTx{}
	db := newTestStoreDB(tx, MasterSchema)

	err := db.WithTx(context.Background(), "test-op", func(ctx context.Context, tx pgx.Tx) error {
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []any{"public"}, tx.args[0])
}

func TestWithTxRollsBackOnError(t *testing.T) {
	tx := &recordingTx{}
	db := newTestStoreDB(tx, "store_3")

	boom := errors.New("boom")
	err := db.WithTx(context.Background(), "test-op", func(ctx context.Context, tx pgx.Tx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
}
