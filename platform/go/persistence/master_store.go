package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/orderline-app/orderline/platform/go/tenant"
)

// StoreRecord represents one row of the store registry in the master database.
// Stores are soft-deleted by flipping is_active; rows are never removed.
type StoreRecord struct {
	ID             int64
	Name           string
	Slug           string
	WhatsAppNumber *string
	DatabaseURL    *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PlatformUser is a cross-store user account held in the master database.
// AccessLevel "global" grants access without a bound store.
type PlatformUser struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     *string
	AccessLevel  string
	StoreID      *int64
	IsActive     bool
}

// SystemMetrics aggregates counts the admin dashboard reads from the master
// database.
type SystemMetrics struct {
	ActiveStores   int64 `json:"activeStores"`
	InactiveStores int64 `json:"inactiveStores"`
	PlatformUsers  int64 `json:"platformUsers"`
	LegacyOrders   int64 `json:"legacyOrders"`
}

// MasterStore exposes registry, authentication and metrics operations that
// execute only against the master database.
type MasterStore struct {
	db *StoreDB
}

func NewMasterStore(db *StoreDB) *MasterStore {
	if db == nil {
		panic("master store requires db")
	}
	if db.Schema() != MasterSchema {
		panic("master store must be bound to the master schema")
	}
	return &MasterStore{db: db}
}

// CreateStoreParams carries the fields required to register a new store.
type CreateStoreParams struct {
	Name           string
	Slug           string
	WhatsAppNumber *string
}

const storeColumns = "id, name, slug, whatsapp_number, database_url, is_active, created_at, updated_at"

func (s *MasterStore) CreateStore(ctx context.Context, params CreateStoreParams) (StoreRecord, error) {
	slug, err := NormalizeSlug(params.Slug)
	if err != nil {
		return StoreRecord{}, err
	}

	var rec StoreRecord
	err = s.db.WithTx(ctx, "stores.create", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO stores (name, slug, whatsapp_number)
            VALUES ($1, $2, $3)
            RETURNING `+storeColumns,
			params.Name, slug, params.WhatsAppNumber,
		)
		rec, err = scanStoreRecord(row)
		return err
	})
	return rec, err
}

// GetStore returns the registry row regardless of activation state; callers
// that require an active store check IsActive themselves.
func (s *MasterStore) GetStore(ctx context.Context, id int64) (StoreRecord, error) {
	var rec StoreRecord
	err := s.db.WithTx(ctx, "stores.get", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id)
		var scanErr error
		rec, scanErr = scanStoreRecord(row)
		return scanErr
	})
	return rec, err
}

func (s *MasterStore) ListStores(ctx context.Context, includeInactive bool) ([]StoreRecord, error) {
	query := `SELECT ` + storeColumns + ` FROM stores`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	var records []StoreRecord
	err := s.db.WithTx(ctx, "stores.list", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		records = records[:0]
		for rows.Next() {
			rec, err := scanStoreRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	return records, err
}

// UpdateStoreDatabaseURL persists the connection string after a store has been
// migrated to a dedicated schema.
func (s *MasterStore) UpdateStoreDatabaseURL(ctx context.Context, id int64, databaseURL string) (StoreRecord, error) {
	var rec StoreRecord
	err := s.db.WithTx(ctx, "stores.update_database_url", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            UPDATE stores SET database_url = $2, updated_at = now()
            WHERE id = $1
            RETURNING `+storeColumns,
			id, databaseURL,
		)
		var scanErr error
		rec, scanErr = scanStoreRecord(row)
		return scanErr
	})
	return rec, err
}

// DeactivateStore soft-deletes the registry entry. Hard deletion is never
// performed on stores.
func (s *MasterStore) DeactivateStore(ctx context.Context, id int64) error {
	return s.db.WithTx(ctx, "stores.deactivate", func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE stores SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("store %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// StoreRegistry adapts MasterStore lookups for the tenant resolver.
// Satisfies tenant.Registry.
type StoreRegistry struct {
	master *MasterStore
}

func NewStoreRegistry(master *MasterStore) *StoreRegistry {
	if master == nil {
		panic("store registry requires master store")
	}
	return &StoreRegistry{master: master}
}

func (r *StoreRegistry) GetStore(ctx context.Context, id int64) (tenant.RegistryEntry, error) {
	rec, err := r.master.GetStore(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return tenant.RegistryEntry{}, fmt.Errorf("store %d: %w", id, tenant.ErrStoreNotFound)
		}
		return tenant.RegistryEntry{}, err
	}
	return tenant.RegistryEntry{
		ID:          rec.ID,
		Name:        rec.Name,
		Slug:        rec.Slug,
		DatabaseURL: rec.DatabaseURL,
		IsActive:    rec.IsActive,
	}, nil
}

// GetPlatformUserByEmail returns the active account for cross-store
// authentication.
func (s *MasterStore) GetPlatformUserByEmail(ctx context.Context, email string) (PlatformUser, error) {
	var user PlatformUser
	err := s.db.WithTx(ctx, "platform_users.get_by_email", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            SELECT id, email, password_hash, full_name, access_level, store_id, is_active
            FROM platform_users
            WHERE email = $1 AND is_active = TRUE`,
			email,
		)
		if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &user.AccessLevel, &user.StoreID, &user.IsActive); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	return user, err
}

// CreatePlatformUser registers an account; used by bootstrap tooling.
func (s *MasterStore) CreatePlatformUser(ctx context.Context, user PlatformUser) (PlatformUser, error) {
	err := s.db.WithTx(ctx, "platform_users.create", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO platform_users (email, password_hash, full_name, access_level, store_id)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, is_active`,
			user.Email, user.PasswordHash, user.FullName, user.AccessLevel, user.StoreID,
		)
		return row.Scan(&user.ID, &user.IsActive)
	})
	return user, err
}

// Metrics aggregates system-wide counts from the master database.
func (s *MasterStore) Metrics(ctx context.Context) (SystemMetrics, error) {
	var m SystemMetrics
	err := s.db.WithTx(ctx, "master.metrics", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            SELECT
                (SELECT COUNT(*) FROM stores WHERE is_active = TRUE),
                (SELECT COUNT(*) FROM stores WHERE is_active = FALSE),
                (SELECT COUNT(*) FROM platform_users WHERE is_active = TRUE),
                (SELECT COUNT(*) FROM orders)`,
		)
		return row.Scan(&m.ActiveStores, &m.InactiveStores, &m.PlatformUsers, &m.LegacyOrders)
	})
	return m, err
}

func scanStoreRecord(row pgx.Row) (StoreRecord, error) {
	var rec StoreRecord
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Slug, &rec.WhatsAppNumber, &rec.DatabaseURL, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoreRecord{}, ErrNotFound
		}
		return StoreRecord{}, err
	}
	return rec, nil
}
