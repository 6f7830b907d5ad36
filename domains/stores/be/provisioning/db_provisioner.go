package provisioning

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/orderline-app/orderline/database"
	"github.com/orderline-app/orderline/domains/stores/be/service"
	"github.com/orderline-app/orderline/platform/go/persistence"
	"github.com/orderline-app/orderline/platform/go/tenant"
)

// DBProvisioner creates the per-store schema and its base tables, and seeds
// the default auto-responses every new store starts with.
type DBProvisioner struct {
	pool *pgxpool.Pool
}

func NewDBProvisioner(pool *pgxpool.Pool) *DBProvisioner {
	if pool == nil {
		panic("db provisioner requires pool")
	}
	return &DBProvisioner{pool: pool}
}

// Ensure is idempotent: CREATE SCHEMA IF NOT EXISTS plus IF NOT EXISTS table
// DDL, so re-running after a partial failure completes the remainder.
func (p *DBProvisioner) Ensure(ctx context.Context, storeID int64) (service.DBProvisionResult, error) {
	schemaName := tenant.BuildSchemaName(storeID)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return service.DBProvisionResult{}, fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return service.DBProvisionResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	createSchema := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schemaName}.Sanitize())
	if _, err := tx.Exec(ctx, createSchema); err != nil {
		return service.DBProvisionResult{}, fmt.Errorf("create schema: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, schemaName); err != nil {
		return service.DBProvisionResult{}, fmt.Errorf("set search_path: %w", err)
	}

	for _, stmt := range persistence.SplitStatements(sqlassets.StoreTablesSQL) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return service.DBProvisionResult{}, fmt.Errorf("create store tables: %w", err)
		}
	}

	if err := p.seedAutoResponses(ctx, tx, schemaName); err != nil {
		return service.DBProvisionResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return service.DBProvisionResult{}, fmt.Errorf("commit: %w", err)
	}

	return service.DBProvisionResult{SchemaName: schemaName, Ready: true}, nil
}

// Check reports whether the store schema exists and carries every base table.
func (p *DBProvisioner) Check(ctx context.Context, storeID int64) (service.DBProvisionResult, error) {
	schemaName := tenant.BuildSchemaName(storeID)

	var exists bool
	err := p.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		schemaName,
	).Scan(&exists)
	if err != nil {
		return service.DBProvisionResult{}, fmt.Errorf("check schema: %w", err)
	}
	if !exists {
		return service.DBProvisionResult{SchemaName: schemaName, Ready: false}, nil
	}

	for _, table := range persistence.StoreOwnedTables {
		var tableExists bool
		err := p.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1
				FROM pg_class c
				JOIN pg_namespace n ON n.oid = c.relnamespace
				WHERE n.nspname = $1 AND c.relname = $2
			)`, schemaName, table).Scan(&tableExists)
		if err != nil {
			return service.DBProvisionResult{}, fmt.Errorf("check table %s: %w", table, err)
		}
		if !tableExists {
			return service.DBProvisionResult{SchemaName: schemaName, Ready: false}, nil
		}
	}

	return service.DBProvisionResult{SchemaName: schemaName, Ready: true}, nil
}

// seedAutoResponses copies the platform default auto-responses into the store
// schema. Existing triggers are left alone so re-provisioning never clobbers
// store customizations.
func (p *DBProvisioner) seedAutoResponses(ctx context.Context, tx pgx.Tx, schemaName string) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s.auto_responses (trigger_keyword, response_text, is_enabled)
		SELECT d.trigger_keyword, d.response_text, TRUE
		FROM public.default_auto_responses d
		WHERE NOT EXISTS (
			SELECT 1 FROM %s.auto_responses a
			WHERE a.trigger_keyword = d.trigger_keyword
		)`, pgx.Identifier{schemaName}.Sanitize(), pgx.Identifier{schemaName}.Sanitize())
	if _, err := tx.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("seed auto responses: %w", err)
	}
	return nil
}

var _ service.DBProvisioner = (*DBProvisioner)(nil)
