package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/orderline-app/orderline/database"
)

// BootstrapMasterSchema applies the master-database DDL and default seed data
// in a single transaction, in this order:
//  1. master/stores.sql (store registry)
//  2. master/platform_users.sql
//  3. master/shared_tables.sql (legacy shared tables + platform defaults)
//  4. master/defaults_seed.sql
//
// SQL is embedded at build time so binaries stay self-contained. The helper is
// idempotent and intended for CLI bootstrap and tests.
func BootstrapMasterSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap master schema: pool is required")
	}

	var statements []string
	statements = append(statements, SplitStatements(sqlassets.StoresSQL)...)
	statements = append(statements, SplitStatements(sqlassets.PlatformUsersSQL)...)
	statements = append(statements, SplitStatements(sqlassets.SharedTablesSQL)...)
	statements = append(statements, SplitStatements(sqlassets.DefaultsSeedSQL)...)

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, false)`, MasterSchema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// SplitStatements breaks an embedded SQL asset into individual statements.
// Assumes the assets never embed literal semicolons inside string constants.
func SplitStatements(asset string) []string {
	raw := strings.Split(asset, ";")
	statements := make([]string, 0, len(raw))
	for _, candidate := range raw {
		stmt := strings.TrimSpace(candidate)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}
