package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Order statuses follow the WhatsApp order flow; transitions are enforced in
// the orders service, not here.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order lives inside one store's schema. PublicID is what customers see in
// confirmation messages.
type Order struct {
	ID            int64
	PublicID      uuid.UUID
	CustomerID    *int64
	CustomerPhone string
	Status        string
	TotalCents    int64
	Notes         *string
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem snapshots the product name and price at order time so later
// catalog edits do not rewrite order history.
type OrderItem struct {
	ID             int64
	OrderID        int64
	ProductID      *int64
	ProductName    string
	Quantity       int
	UnitPriceCents int64
}

// OrderStore provides order access bound to exactly one store schema.
type OrderStore struct {
	db *StoreDB
}

func NewOrderStore(db *StoreDB) *OrderStore {
	if db == nil {
		panic("order store requires db")
	}
	return &OrderStore{db: db}
}

// CreateOrderParams carries the order header plus its items.
type CreateOrderParams struct {
	CustomerID    *int64
	CustomerPhone string
	Notes         *string
	Items         []OrderItemParams
}

type OrderItemParams struct {
	ProductID      *int64
	ProductName    string
	Quantity       int
	UnitPriceCents int64
}

const orderColumns = "id, public_id, customer_id, customer_phone, status, total_cents, notes, created_at, updated_at"

// Create inserts the order and its items, then reads the full order back in
// the same transaction so the caller observes the just-written rows with
// computed fields attached.
func (s *OrderStore) Create(ctx context.Context, params CreateOrderParams) (Order, error) {
	if params.CustomerPhone == "" {
		return Order{}, errors.New("customer phone is required")
	}
	if len(params.Items) == 0 {
		return Order{}, errors.New("order requires at least one item")
	}

	var total int64
	for _, item := range params.Items {
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		total += int64(quantity) * item.UnitPriceCents
	}

	publicID := uuid.New()

	var order Order
	err := s.db.WithTx(ctx, "orders.create", func(ctx context.Context, tx pgx.Tx) error {
		var orderID int64
		row := tx.QueryRow(ctx, `
            INSERT INTO orders (public_id, customer_id, customer_phone, total_cents, notes)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id`,
			publicID, params.CustomerID, params.CustomerPhone, total, params.Notes,
		)
		if err := row.Scan(&orderID); err != nil {
			return err
		}

		for _, item := range params.Items {
			quantity := item.Quantity
			if quantity < 1 {
				quantity = 1
			}
			if _, err := tx.Exec(ctx, `
                INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price_cents)
                VALUES ($1, $2, $3, $4, $5)`,
				orderID, item.ProductID, item.ProductName, quantity, item.UnitPriceCents,
			); err != nil {
				return err
			}
		}

		var err error
		order, err = getOrderTx(ctx, tx, orderID)
		return err
	})
	return order, err
}

func (s *OrderStore) Get(ctx context.Context, id int64) (Order, error) {
	var order Order
	err := s.db.WithTx(ctx, "orders.get", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		order, err = getOrderTx(ctx, tx, id)
		return err
	})
	return order, err
}

// UpdateStatus moves the order through its lifecycle. A missing id surfaces
// as ErrNotFound, distinct from connectivity failures.
func (s *OrderStore) UpdateStatus(ctx context.Context, id int64, status string) (Order, error) {
	var order Order
	err := s.db.WithTx(ctx, "orders.update_status", func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		order, err = getOrderTx(ctx, tx, id)
		return err
	})
	return order, err
}

// ListOrdersParams controls filtering and pagination.
type ListOrdersParams struct {
	Status        *string
	CustomerPhone *string
	Limit         int
	Offset        int
}

func (s *OrderStore) List(ctx context.Context, params ListOrdersParams) ([]Order, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE TRUE`
	args := []any{}
	if params.Status != nil {
		args = append(args, *params.Status)
		query += ` AND status = $` + itoa(len(args))
	}
	if params.CustomerPhone != nil {
		args = append(args, *params.CustomerPhone)
		query += ` AND customer_phone = $` + itoa(len(args))
	}
	args = append(args, limit, params.Offset)
	query += ` ORDER BY created_at DESC LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	var orders []Order
	err := s.db.WithTx(ctx, "orders.list", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		orders = orders[:0]
		for rows.Next() {
			order, err := scanOrder(rows)
			if err != nil {
				return err
			}
			orders = append(orders, order)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for i := range orders {
			items, err := listOrderItemsTx(ctx, tx, orders[i].ID)
			if err != nil {
				return err
			}
			orders[i].Items = items
		}
		return nil
	})
	return orders, err
}

func getOrderTx(ctx context.Context, tx pgx.Tx, id int64) (Order, error) {
	order, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, err
	}
	order.Items, err = listOrderItemsTx(ctx, tx, id)
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func listOrderItemsTx(ctx context.Context, tx pgx.Tx, orderID int64) ([]OrderItem, error) {
	rows, err := tx.Query(ctx, `
        SELECT id, order_id, product_id, product_name, quantity, unit_price_cents
        FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.PublicID, &o.CustomerID, &o.CustomerPhone, &o.Status, &o.TotalCents, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}
