package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/orderline-app/orderline/domains/orders/be/repo"
	"github.com/orderline-app/orderline/platform/go/persistence"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

// ValidationError captures input validation problems surfaced by the service.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain-level error sentinel values.
var (
	ErrNotFound          = errors.New("order not found")
	ErrNoStore           = errors.New("no store selected")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Order is the orders domain model.
type Order struct {
	ID            int64       `json:"id"`
	PublicID      uuid.UUID   `json:"publicId"`
	CustomerID    *int64      `json:"customerId"`
	CustomerPhone string      `json:"customerPhone"`
	Status        string      `json:"status"`
	TotalCents    int64       `json:"totalCents"`
	Notes         *string     `json:"notes"`
	Items         []OrderItem `json:"items"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type OrderItem struct {
	ID             int64  `json:"id"`
	ProductID      *int64 `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

// Customer is the WhatsApp contact attached to orders.
type Customer struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	FullName  *string   `json:"fullName"`
	Address   *string   `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateInput is the payload for placing an order.
type CreateInput struct {
	CustomerPhone string
	CustomerName  *string
	Notes         *string
	Items         []ItemInput
}

type ItemInput struct {
	ProductID      *int64
	ProductName    string
	Quantity       int
	UnitPriceCents int64
}

// ListOptions controls order listing.
type ListOptions struct {
	Status        *string
	CustomerPhone *string
	Limit         int
	Offset        int
}

// Service exposes the orders domain operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) (Order, error)
	List(ctx context.Context, opts ListOptions) ([]Order, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	UpdateCustomerAddress(ctx context.Context, id int64, address string) (Customer, error)
	SearchCustomers(ctx context.Context, term string, limit int) ([]Customer, error)
}

type service struct {
	repo domainrepo.Repository
}

func New(repo domainrepo.Repository) Service {
	if repo == nil {
		panic("orders repository is required")
	}
	return &service{repo: repo}
}

// allowedTransitions encodes the order lifecycle. Delivered and cancelled are
// terminal.
var allowedTransitions = map[string][]string{
	persistence.OrderStatusPending:   {persistence.OrderStatusConfirmed, persistence.OrderStatusCancelled},
	persistence.OrderStatusConfirmed: {persistence.OrderStatusDelivered, persistence.OrderStatusCancelled},
}

// Create upserts the customer by phone, then writes the order with its items.
func (s *service) Create(ctx context.Context, input CreateInput) (Order, error) {
	errs := FieldErrors{}

	phone := strings.TrimSpace(input.CustomerPhone)
	if phone == "" {
		errs.add("customerPhone", "customer phone is required")
	}
	if len(input.Items) == 0 {
		errs.add("items", "an order needs at least one item")
	}
	items := make([]persistence.OrderItemParams, 0, len(input.Items))
	for _, item := range input.Items {
		if strings.TrimSpace(item.ProductName) == "" {
			errs.add("items", "item product name is required")
			continue
		}
		if item.Quantity <= 0 {
			errs.add("items", "item quantity must be positive")
			continue
		}
		if item.UnitPriceCents < 0 {
			errs.add("items", "item price must not be negative")
			continue
		}
		items = append(items, persistence.OrderItemParams{
			ProductID:      item.ProductID,
			ProductName:    strings.TrimSpace(item.ProductName),
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	if len(errs) > 0 {
		return Order{}, &ValidationError{Fields: errs}
	}

	customer, err := s.repo.UpsertCustomer(ctx, phone, input.CustomerName)
	if err != nil {
		return Order{}, mapError(err)
	}

	record, err := s.repo.CreateOrder(ctx, persistence.CreateOrderParams{
		CustomerID:    &customer.ID,
		CustomerPhone: phone,
		Notes:         input.Notes,
		Items:         items,
	})
	if err != nil {
		return Order{}, mapError(err)
	}
	return mapOrder(record), nil
}

func (s *service) Get(ctx context.Context, id int64) (Order, error) {
	record, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, mapError(err)
	}
	return mapOrder(record), nil
}

func (s *service) UpdateStatus(ctx context.Context, id int64, status string) (Order, error) {
	status = strings.ToLower(strings.TrimSpace(status))

	current, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, mapError(err)
	}

	if !transitionAllowed(current.Status, status) {
		return Order{}, ErrInvalidTransition
	}

	record, err := s.repo.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return Order{}, mapError(err)
	}
	return mapOrder(record), nil
}

func (s *service) List(ctx context.Context, opts ListOptions) ([]Order, error) {
	records, err := s.repo.ListOrders(ctx, persistence.ListOrdersParams{
		Status:        opts.Status,
		CustomerPhone: opts.CustomerPhone,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}

	orders := make([]Order, 0, len(records))
	for _, record := range records {
		orders = append(orders, mapOrder(record))
	}
	return orders, nil
}

func (s *service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	record, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, mapError(err)
	}
	return mapCustomer(record), nil
}

func (s *service) UpdateCustomerAddress(ctx context.Context, id int64, address string) (Customer, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Customer{}, &ValidationError{Fields: FieldErrors{"address": {"address is required"}}}
	}

	record, err := s.repo.UpdateCustomerAddress(ctx, id, address)
	if err != nil {
		return Customer{}, mapError(err)
	}
	return mapCustomer(record), nil
}

func (s *service) SearchCustomers(ctx context.Context, term string, limit int) ([]Customer, error) {
	records, err := s.repo.SearchCustomers(ctx, strings.TrimSpace(term), limit)
	if err != nil {
		return nil, mapError(err)
	}

	customers := make([]Customer, 0, len(records))
	for _, record := range records {
		customers = append(customers, mapCustomer(record))
	}
	return customers, nil
}

func transitionAllowed(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func mapError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrNoStoreSelected):
		return ErrNoStore
	default:
		return err
	}
}

func mapOrder(record persistence.Order) Order {
	items := make([]OrderItem, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, OrderItem{
			ID:             item.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return Order{
		ID:            record.ID,
		PublicID:      record.PublicID,
		CustomerID:    record.CustomerID,
		CustomerPhone: record.CustomerPhone,
		Status:        record.Status,
		TotalCents:    record.TotalCents,
		Notes:         record.Notes,
		Items:         items,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func mapCustomer(record persistence.Customer) Customer {
	return Customer{
		ID:        record.ID,
		Phone:     record.Phone,
		FullName:  record.FullName,
		Address:   record.Address,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}
