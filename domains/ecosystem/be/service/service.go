package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	storessvc "github.com/orderline-app/orderline/domains/stores/be/service"
	"github.com/orderline-app/orderline/platform/go/metrics"
	"github.com/orderline-app/orderline/platform/go/persistence"
	"github.com/orderline-app/orderline/platform/go/tenant"
)

// ErrNotFound is returned when the audited store does not exist.
var ErrNotFound = errors.New("store not found")

// Report is the per-store validation result served to the admin UI.
type Report struct {
	StoreID         int64          `json:"storeId"`
	StoreName       string         `json:"storeName"`
	IsValid         bool           `json:"isValid"`
	Issues          []string       `json:"issues"`
	Recommendations []string       `json:"recommendations"`
	Architecture    Architecture   `json:"architecture"`
	Tables          Tables         `json:"tables"`
	Configurations  Configurations `json:"configurations"`
}

type Architecture struct {
	HasSeparateDatabase bool    `json:"hasSeparateDatabase"`
	UsingGlobalDatabase bool    `json:"usingGlobalDatabase"`
	DatabaseURL         *string `json:"databaseUrl"`
}

type Tables struct {
	Global []string `json:"global"`
	Tenant []string `json:"tenant"`
}

type Configurations struct {
	AutoResponses int64 `json:"autoResponses"`
	Products      int64 `json:"products"`
	Settings      bool  `json:"settings"`
}

// RepairResult aggregates everything one repair run did and everything that
// went wrong. Success means zero errors across all steps.
type RepairResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Actions []string `json:"actions"`
	Errors  []string `json:"errors"`
}

// Registry is the slice of the master store the auditor reads.
type Registry interface {
	Get(ctx context.Context, id int64) (persistence.StoreRecord, error)
	List(ctx context.Context, includeInactive bool) ([]persistence.StoreRecord, error)
	SetDatabaseURL(ctx context.Context, id int64, databaseURL string) (persistence.StoreRecord, error)
}

// ConnInvalidator drops a store's cached connection after repair rewired it.
type ConnInvalidator interface {
	Invalidate(storeID int64)
}

// Service audits and repairs store schema placement.
type Service interface {
	Validate(ctx context.Context, storeID int64) (Report, error)
	Repair(ctx context.Context, storeID int64) (RepairResult, error)
	ValidateAll(ctx context.Context) ([]Report, error)
}

type service struct {
	pool        *pgxpool.Pool
	registry    Registry
	provisioner storessvc.DBProvisioner
	cache       ConnInvalidator
	masterURL   string
	logger      *zap.Logger
}

// New builds the ecosystem Service over the master pool. Every cross-schema
// query runs on this pool; the store's own routed pool is never involved.
func New(pool *pgxpool.Pool, registry Registry, provisioner storessvc.DBProvisioner, cache ConnInvalidator, masterURL string, logger *zap.Logger) Service {
	if pool == nil {
		panic("ecosystem service requires pool")
	}
	if registry == nil {
		panic("ecosystem service requires registry")
	}
	if provisioner == nil {
		panic("ecosystem service requires provisioner")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		pool:        pool,
		registry:    registry,
		provisioner: provisioner,
		cache:       cache,
		masterURL:   masterURL,
		logger:      logger,
	}
}

// orphanTables maps each legacy shared table to the copy statement that moves
// one store's rows into its schema. Serial ids are regenerated on copy;
// orders dedupe on public_id so a partially repaired store never duplicates.
var orphanTables = []struct {
	name    string
	copySQL string
}{
	{
		name: "products",
		copySQL: `INSERT INTO %s.products (name, description, price_cents, currency, image_url, is_available, created_at, updated_at)
			SELECT name, description, price_cents, currency, image_url, is_available, created_at, updated_at
			FROM public.products WHERE store_id = $1`,
	},
	{
		name: "orders",
		copySQL: `INSERT INTO %s.orders (public_id, customer_phone, status, total_cents, notes, created_at, updated_at)
			SELECT public_id, customer_phone, status, total_cents, notes, created_at, updated_at
			FROM public.orders WHERE store_id = $1
			ON CONFLICT (public_id) DO NOTHING`,
	},
	{
		name: "conversations",
		copySQL: `INSERT INTO %s.conversations (customer_phone, status, last_message_at, created_at)
			SELECT customer_phone, status, last_message_at, created_at
			FROM public.conversations WHERE store_id = $1`,
	},
}

func (s *service) Validate(ctx context.Context, storeID int64) (Report, error) {
	record, err := s.registry.Get(ctx, storeID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}

	schema, dedicated := tenant.SchemaFromDatabaseURL(record.DatabaseURL, s.masterURL)

	report := Report{
		StoreID:         record.ID,
		StoreName:       record.Name,
		Issues:          []string{},
		Recommendations: []string{},
		Architecture: Architecture{
			HasSeparateDatabase: dedicated,
			UsingGlobalDatabase: !dedicated,
			DatabaseURL:         record.DatabaseURL,
		},
		Tables: Tables{Global: []string{}, Tenant: []string{}},
	}

	if !dedicated {
		report.Issues = append(report.Issues, "CRITICAL: store uses the global database; no dedicated schema is configured")
		report.Recommendations = append(report.Recommendations, "Run repair to provision a dedicated schema and migrate the store's data")
	}

	globalTables, err := s.listStoreOwnedTables(ctx, persistence.MasterSchema)
	if err != nil {
		return Report{}, fmt.Errorf("inspect global schema: %w", err)
	}
	report.Tables.Global = globalTables

	if dedicated {
		tenantTables, err := s.listStoreOwnedTables(ctx, schema)
		if err != nil {
			return Report{}, fmt.Errorf("inspect store schema: %w", err)
		}
		report.Tables.Tenant = tenantTables

		present := make(map[string]bool, len(tenantTables))
		for _, table := range tenantTables {
			present[table] = true
		}
		for _, table := range persistence.StoreOwnedTables {
			if !present[table] {
				report.Issues = append(report.Issues, fmt.Sprintf("store schema is missing table %q", table))
				report.Recommendations = append(report.Recommendations, "Run repair to re-apply the store schema baseline")
			}
		}

		// Configuration counts need the tables to exist; a schema missing
		// them already carries the stronger missing-table issue.
		config := Configurations{}
		if present["auto_responses"] && present["products"] && present["settings"] {
			config, err = s.inspectConfigurations(ctx, schema)
			if err != nil {
				return Report{}, fmt.Errorf("inspect configurations: %w", err)
			}
		}
		report.Configurations = config

		if config.AutoResponses == 0 {
			report.Issues = append(report.Issues, "store has no auto-responses configured")
			report.Recommendations = append(report.Recommendations, "Run repair to seed the default auto-responses")
		}
		if config.Products == 0 {
			report.Issues = append(report.Issues, "store has no products")
			report.Recommendations = append(report.Recommendations, "Run repair to seed baseline products, or add products manually")
		}
		if !config.Settings {
			report.Issues = append(report.Issues, "store has no settings row")
			report.Recommendations = append(report.Recommendations, "Run repair to create the default settings")
		}
	}

	for _, table := range orphanTables {
		count, err := s.countOrphans(ctx, table.name, storeID)
		if err != nil {
			return Report{}, fmt.Errorf("count orphaned %s: %w", table.name, err)
		}
		if count > 0 {
			report.Issues = append(report.Issues, fmt.Sprintf("CRITICAL: %d %s row(s) for this store remain in the global schema", count, table.name))
			report.Recommendations = append(report.Recommendations, fmt.Sprintf("Run repair to migrate %s rows into the store schema", table.name))
		}
	}

	report.IsValid = len(report.Issues) == 0
	s.publishIssueMetrics(report)
	return report, nil
}

// Repair re-validates and fixes what it can. Steps never short-circuit: one
// failing step is recorded and the remaining fixes still run.
func (s *service) Repair(ctx context.Context, storeID int64) (RepairResult, error) {
	report, err := s.Validate(ctx, storeID)
	if err != nil {
		return RepairResult{}, err
	}

	result := RepairResult{Actions: []string{}, Errors: []string{}}
	if report.IsValid {
		result.Success = true
		result.Message = "store ecosystem is valid; no action needed"
		return result, nil
	}

	schema := tenant.BuildSchemaName(storeID)

	if !report.Architecture.HasSeparateDatabase {
		if err := s.provisionSchema(ctx, storeID, schema); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("provision schema: %v", err))
		} else {
			result.Actions = append(result.Actions, fmt.Sprintf("provisioned dedicated schema %s", schema))
		}
	} else {
		// Re-applying the baseline is a no-op for healthy schemas and
		// restores any missing table.
		if _, err := s.provisioner.Ensure(ctx, storeID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("re-apply schema baseline: %v", err))
		}
	}

	if n, err := s.seedDefaults(ctx, schema); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("seed defaults: %v", err))
	} else if len(n) > 0 {
		result.Actions = append(result.Actions, n...)
	}

	for _, table := range orphanTables {
		moved, err := s.migrateOrphans(ctx, table.name, table.copySQL, schema, storeID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("migrate %s: %v", table.name, err))
			continue
		}
		if moved > 0 {
			result.Actions = append(result.Actions, fmt.Sprintf("migrated %d %s row(s) from the global schema", moved, table.name))
		}
	}

	if s.cache != nil {
		s.cache.Invalidate(storeID)
	}

	result.Success = len(result.Errors) == 0
	switch {
	case result.Success && len(result.Actions) == 0:
		result.Message = "no action needed"
	case result.Success:
		result.Message = "repair completed"
	default:
		result.Message = "repair completed with errors"
	}
	return result, nil
}

func (s *service) ValidateAll(ctx context.Context) ([]Report, error) {
	records, err := s.registry.List(ctx, false)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(records))
	for _, record := range records {
		report, err := s.Validate(ctx, record.ID)
		if err != nil {
			s.logger.Error("store validation failed",
				zap.Int64("store_id", record.ID),
				zap.Error(err),
			)
			reports = append(reports, Report{
				StoreID:         record.ID,
				StoreName:       record.Name,
				IsValid:         false,
				Issues:          []string{fmt.Sprintf("validation failed: %v", err)},
				Recommendations: []string{},
				Tables:          Tables{Global: []string{}, Tenant: []string{}},
			})
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *service) provisionSchema(ctx context.Context, storeID int64, schema string) error {
	if _, err := s.provisioner.Ensure(ctx, storeID); err != nil {
		return err
	}
	connString, err := tenant.BuildConnString(s.masterURL, schema)
	if err != nil {
		return err
	}
	if _, err := s.registry.SetDatabaseURL(ctx, storeID, connString); err != nil {
		return fmt.Errorf("persist database url: %w", err)
	}
	return nil
}

// seedDefaults copies the platform defaults into an empty store schema. Each
// copy skips entirely when the store already has rows, so re-running never
// duplicates.
func (s *service) seedDefaults(ctx context.Context, schema string) ([]string, error) {
	ident := pgx.Identifier{schema}.Sanitize()
	var actions []string

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.auto_responses (trigger_keyword, response_text, is_enabled)
		SELECT trigger_keyword, response_text, is_enabled
		FROM public.default_auto_responses
		WHERE NOT EXISTS (SELECT 1 FROM %s.auto_responses)`, ident, ident))
	if err != nil {
		return actions, fmt.Errorf("auto responses: %w", err)
	}
	if tag.RowsAffected() > 0 {
		actions = append(actions, fmt.Sprintf("seeded %d default auto-response(s)", tag.RowsAffected()))
	}

	tag, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.products (name, description, price_cents, currency)
		SELECT name, description, price_cents, currency
		FROM public.default_products
		WHERE NOT EXISTS (SELECT 1 FROM %s.products)`, ident, ident))
	if err != nil {
		return actions, fmt.Errorf("products: %w", err)
	}
	if tag.RowsAffected() > 0 {
		actions = append(actions, fmt.Sprintf("seeded %d baseline product(s)", tag.RowsAffected()))
	}

	tag, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.settings (payload)
		SELECT '{}'::jsonb
		WHERE NOT EXISTS (SELECT 1 FROM %s.settings)`, ident, ident))
	if err != nil {
		return actions, fmt.Errorf("settings: %w", err)
	}
	if tag.RowsAffected() > 0 {
		actions = append(actions, "created default settings")
	}

	return actions, nil
}

// migrateOrphans copies one table's rows for the store out of the global
// schema and deletes the originals. Copy and delete share a transaction and
// the delete only runs after the copy count matches, so an abort leaves the
// global rows untouched.
func (s *service) migrateOrphans(ctx context.Context, table, copySQL, schema string, storeID int64) (int64, error) {
	var moved int64
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var pending int64
	query := fmt.Sprintf("SELECT count(*) FROM public.%s WHERE store_id = $1", pgx.Identifier{table}.Sanitize())
	if err := tx.QueryRow(ctx, query, storeID).Scan(&pending); err != nil {
		return 0, fmt.Errorf("count source rows: %w", err)
	}
	if pending == 0 {
		return 0, tx.Commit(ctx)
	}

	tag, err := tx.Exec(ctx, fmt.Sprintf(copySQL, pgx.Identifier{schema}.Sanitize()), storeID)
	if err != nil {
		return 0, fmt.Errorf("copy rows: %w", err)
	}
	moved = tag.RowsAffected()

	del := fmt.Sprintf("DELETE FROM public.%s WHERE store_id = $1", pgx.Identifier{table}.Sanitize())
	if _, err := tx.Exec(ctx, del, storeID); err != nil {
		return 0, fmt.Errorf("delete source rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit migration: %w", err)
	}
	return moved, nil
}

func (s *service) listStoreOwnedTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = ANY($2)
		ORDER BY table_name`, schema, persistence.StoreOwnedTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *service) inspectConfigurations(ctx context.Context, schema string) (Configurations, error) {
	ident := pgx.Identifier{schema}.Sanitize()
	var config Configurations

	query := fmt.Sprintf(`
		SELECT
			(SELECT count(*) FROM %s.auto_responses),
			(SELECT count(*) FROM %s.products),
			EXISTS (SELECT 1 FROM %s.settings)`, ident, ident, ident)
	err := s.pool.QueryRow(ctx, query).Scan(&config.AutoResponses, &config.Products, &config.Settings)
	return config, err
}

func (s *service) countOrphans(ctx context.Context, table string, storeID int64) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM public.%s WHERE store_id = $1", pgx.Identifier{table}.Sanitize())
	err := s.pool.QueryRow(ctx, query, storeID).Scan(&count)
	return count, err
}

func (s *service) publishIssueMetrics(report Report) {
	store := strconv.FormatInt(report.StoreID, 10)
	var critical, warning float64
	for _, issue := range report.Issues {
		if len(issue) >= 8 && issue[:8] == "CRITICAL" {
			critical++
		} else {
			warning++
		}
	}
	metrics.EcosystemIssues.WithLabelValues(store, "critical").Set(critical)
	metrics.EcosystemIssues.WithLabelValues(store, "warning").Set(warning)
}
