package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// StoreDB executes transactions scoped to one schema: the master (public)
// schema or a single store's dedicated schema. The per-store pool already
// carries search_path in its connection options; the transaction-local
// set_config repeats the scoping so a query can never run against the wrong
// schema on a connection whose session state was disturbed.
type StoreDB struct {
	exec   *Executor
	schema string
}

// MasterSchema is where the store registry, platform users and the legacy
// shared tables live.
const MasterSchema = "public"

func NewStoreDB(exec *Executor, schema string) *StoreDB {
	if exec == nil {
		panic("StoreDB requires executor")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		panic("StoreDB requires schema")
	}
	return &StoreDB{exec: exec, schema: schema}
}

// Schema returns the schema this StoreDB is bound to.
func (db *StoreDB) Schema() string {
	return db.schema
}

// WithTx runs fn inside a transaction with search_path set to the bound
// schema. The transaction goes through the retry executor, so fn must be safe
// to re-run after a transient failure (it either committed or it did not).
func (db *StoreDB) WithTx(ctx context.Context, label string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return db.exec.Execute(ctx, label, func(ctx context.Context, conn Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx) // nolint:errcheck

		if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, db.schema); err != nil {
			return fmt.Errorf("set search_path: %w", err)
		}

		if err := fn(ctx, tx); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}
