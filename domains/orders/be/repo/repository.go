package repo

import (
	"context"

	"github.com/orderline-app/orderline/platform/go/persistence"
)

// Repository exposes order and customer persistence for the active store.
// Customers ride along because the order flow upserts the WhatsApp contact
// placing each order.
type Repository interface {
	CreateOrder(ctx context.Context, params persistence.CreateOrderParams) (persistence.Order, error)
	GetOrder(ctx context.Context, id int64) (persistence.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (persistence.Order, error)
	ListOrders(ctx context.Context, params persistence.ListOrdersParams) ([]persistence.Order, error)
	UpsertCustomer(ctx context.Context, phone string, fullName *string) (persistence.Customer, error)
	GetCustomer(ctx context.Context, id int64) (persistence.Customer, error)
	UpdateCustomerAddress(ctx context.Context, id int64, address string) (persistence.Customer, error)
	SearchCustomers(ctx context.Context, term string, limit int) ([]persistence.Customer, error)
}

type contextRepository struct{}

func New() Repository {
	return contextRepository{}
}

func (contextRepository) CreateOrder(ctx context.Context, params persistence.CreateOrderParams) (persistence.Order, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Order{}, err
	}
	return facade.Orders.Create(ctx, params)
}

func (contextRepository) GetOrder(ctx context.Context, id int64) (persistence.Order, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Order{}, err
	}
	return facade.Orders.Get(ctx, id)
}

func (contextRepository) UpdateOrderStatus(ctx context.Context, id int64, status string) (persistence.Order, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Order{}, err
	}
	return facade.Orders.UpdateStatus(ctx, id, status)
}

func (contextRepository) ListOrders(ctx context.Context, params persistence.ListOrdersParams) ([]persistence.Order, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return nil, err
	}
	return facade.Orders.List(ctx, params)
}

func (contextRepository) UpsertCustomer(ctx context.Context, phone string, fullName *string) (persistence.Customer, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Customer{}, err
	}
	return facade.Customers.UpsertByPhone(ctx, phone, fullName)
}

func (contextRepository) GetCustomer(ctx context.Context, id int64) (persistence.Customer, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Customer{}, err
	}
	return facade.Customers.Get(ctx, id)
}

func (contextRepository) UpdateCustomerAddress(ctx context.Context, id int64, address string) (persistence.Customer, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Customer{}, err
	}
	return facade.Customers.UpdateAddress(ctx, id, address)
}

func (contextRepository) SearchCustomers(ctx context.Context, term string, limit int) ([]persistence.Customer, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return nil, err
	}
	return facade.Customers.Search(ctx, term, limit)
}
