package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Customer is a WhatsApp contact known to one store. The phone number is the
// natural key used to attach inbound messages and orders.
type Customer struct {
	ID        int64
	Phone     string
	FullName  *string
	Address   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerStore provides customer access bound to exactly one store schema.
type CustomerStore struct {
	db *StoreDB
}

func NewCustomerStore(db *StoreDB) *CustomerStore {
	if db == nil {
		panic("customer store requires db")
	}
	return &CustomerStore{db: db}
}

const customerColumns = "id, phone, full_name, address, created_at, updated_at"

// UpsertByPhone creates the customer on first contact or refreshes the name
// on subsequent ones. Inbound webhook traffic uses this path.
func (s *CustomerStore) UpsertByPhone(ctx context.Context, phone string, fullName *string) (Customer, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Customer{}, errors.New("phone is required")
	}

	var customer Customer
	err := s.db.WithTx(ctx, "customers.upsert", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO customers (phone, full_name)
            VALUES ($1, $2)
            ON CONFLICT (phone) DO UPDATE
                SET full_name = COALESCE(EXCLUDED.full_name, customers.full_name),
                    updated_at = now()
            RETURNING `+customerColumns,
			phone, fullName,
		)
		var scanErr error
		customer, scanErr = scanCustomer(row)
		return scanErr
	})
	return customer, err
}

func (s *CustomerStore) Get(ctx context.Context, id int64) (Customer, error) {
	var customer Customer
	err := s.db.WithTx(ctx, "customers.get", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
		var scanErr error
		customer, scanErr = scanCustomer(row)
		return scanErr
	})
	return customer, err
}

func (s *CustomerStore) GetByPhone(ctx context.Context, phone string) (Customer, error) {
	var customer Customer
	err := s.db.WithTx(ctx, "customers.get_by_phone", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone)
		var scanErr error
		customer, scanErr = scanCustomer(row)
		return scanErr
	})
	return customer, err
}

// UpdateAddress records the delivery address captured during order intake.
func (s *CustomerStore) UpdateAddress(ctx context.Context, id int64, address string) (Customer, error) {
	var customer Customer
	err := s.db.WithTx(ctx, "customers.update_address", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            UPDATE customers SET address = $2, updated_at = now()
            WHERE id = $1
            RETURNING `+customerColumns,
			id, address,
		)
		var scanErr error
		customer, scanErr = scanCustomer(row)
		return scanErr
	})
	return customer, err
}

// Search matches on phone or name, newest first.
func (s *CustomerStore) Search(ctx context.Context, term string, limit int) ([]Customer, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var customers []Customer
	err := s.db.WithTx(ctx, "customers.search", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
            SELECT `+customerColumns+` FROM customers
            WHERE phone ILIKE $1 OR full_name ILIKE $1
            ORDER BY updated_at DESC
            LIMIT $2`,
			"%"+term+"%", limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		customers = customers[:0]
		for rows.Next() {
			customer, err := scanCustomer(rows)
			if err != nil {
				return err
			}
			customers = append(customers, customer)
		}
		return rows.Err()
	})
	return customers, err
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Phone, &c.FullName, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	return c, nil
}
