package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orderline-app/orderline/platform/go/persistence"
)

// inMemoryRepo is a minimal in-memory impl of Repository for tests.
type inMemoryRepo struct {
	orders      map[int64]persistence.Order
	customers   map[string]persistence.Customer
	nextOrderID int64
	nextCustID  int64
}

func newInMemoryRepo() *inMemoryRepo {
	return &inMemoryRepo{
		orders:      make(map[int64]persistence.Order),
		customers:   make(map[string]persistence.Customer),
		nextOrderID: 1,
		nextCustID:  1,
	}
}

func (r *inMemoryRepo) CreateOrder(ctx context.Context, params persistence.CreateOrderParams) (persistence.Order, error) {
	var total int64
	items := make([]persistence.OrderItem, 0, len(params.Items))
	for i, item := range params.Items {
		total += int64(item.Quantity) * item.UnitPriceCents
		items = append(items, persistence.OrderItem{
			ID:             int64(i + 1),
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	order := persistence.Order{
		ID:            r.nextOrderID,
		PublicID:      uuid.New(),
		CustomerID:    params.CustomerID,
		CustomerPhone: params.CustomerPhone,
		Status:        persistence.OrderStatusPending,
		TotalCents:    total,
		Notes:         params.Notes,
		Items:         items,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	r.orders[order.ID] = order
	r.nextOrderID++
	return order, nil
}

func (r *inMemoryRepo) GetOrder(ctx context.Context, id int64) (persistence.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return persistence.Order{}, persistence.ErrNotFound
	}
	return order, nil
}

func (r *inMemoryRepo) UpdateOrderStatus(ctx context.Context, id int64, status string) (persistence.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return persistence.Order{}, persistence.ErrNotFound
	}
	order.Status = status
	r.orders[id] = order
	return order, nil
}

func (r *inMemoryRepo) ListOrders(ctx context.Context, params persistence.ListOrdersParams) ([]persistence.Order, error) {
	var out []persistence.Order
	for _, order := range r.orders {
		if params.Status != nil && order.Status != *params.Status {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (r *inMemoryRepo) UpsertCustomer(ctx context.Context, phone string, fullName *string) (persistence.Customer, error) {
	if c, ok := r.customers[phone]; ok {
		if fullName != nil {
			c.FullName = fullName
			r.customers[phone] = c
		}
		return r.customers[phone], nil
	}
	c := persistence.Customer{ID: r.nextCustID, Phone: phone, FullName: fullName}
	r.customers[phone] = c
	r.nextCustID++
	return c, nil
}

func (r *inMemoryRepo) GetCustomer(ctx context.Context, id int64) (persistence.Customer, error) {
	for _, c := range r.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return persistence.Customer{}, persistence.ErrNotFound
}

func (r *inMemoryRepo) UpdateCustomerAddress(ctx context.Context, id int64, address string) (persistence.Customer, error) {
	for phone, c := range r.customers {
		if c.ID == id {
			c.Address = &address
			r.customers[phone] = c
			return c, nil
		}
	}
	return persistence.Customer{}, persistence.ErrNotFound
}

func (r *inMemoryRepo) SearchCustomers(ctx context.Context, term string, limit int) ([]persistence.Customer, error) {
	var out []persistence.Customer
	for _, c := range r.customers {
		out = append(out, c)
	}
	return out, nil
}

func validCreateInput() CreateInput {
	return CreateInput{
		CustomerPhone: "+15550001111",
		Items: []ItemInput{
			{ProductName: "Arepa", Quantity: 2, UnitPriceCents: 350},
			{ProductName: "Jugo", Quantity: 1, UnitPriceCents: 500},
		},
	}
}

func TestCreateOrderUpsertsCustomerAndTotals(t *testing.T) {
	repo := newInMemoryRepo()
	svc := New(repo)

	order, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	require.Equal(t, persistence.OrderStatusPending, order.Status)
	require.Equal(t, int64(1200), order.TotalCents)
	require.Len(t, order.Items, 2)
	require.NotNil(t, order.CustomerID)

	customer, err := svc.GetCustomer(context.Background(), *order.CustomerID)
	require.NoError(t, err)
	require.Equal(t, "+15550001111", customer.Phone)
}

func TestCreateOrderValidation(t *testing.T) {
	svc := New(newInMemoryRepo())

	cases := []struct {
		name  string
		input CreateInput
		field string
	}{
		{"missing phone", CreateInput{Items: []ItemInput{{ProductName: "x", Quantity: 1}}}, "customerPhone"},
		{"no items", CreateInput{CustomerPhone: "+1555"}, "items"},
		{"zero quantity", CreateInput{CustomerPhone: "+1555", Items: []ItemInput{{ProductName: "x", Quantity: 0}}}, "items"},
		{"negative price", CreateInput{CustomerPhone: "+1555", Items: []ItemInput{{ProductName: "x", Quantity: 1, UnitPriceCents: -1}}}, "items"},
		{"blank item name", CreateInput{CustomerPhone: "+1555", Items: []ItemInput{{ProductName: "  ", Quantity: 1}}}, "items"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, verr.Fields, tc.field)
		})
	}
}

func TestUpdateStatusLifecycle(t *testing.T) {
	repo := newInMemoryRepo()
	svc := New(repo)

	order, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	confirmed, err := svc.UpdateStatus(context.Background(), order.ID, "confirmed")
	require.NoError(t, err)
	require.Equal(t, persistence.OrderStatusConfirmed, confirmed.Status)

	delivered, err := svc.UpdateStatus(context.Background(), order.ID, "DELIVERED")
	require.NoError(t, err)
	require.Equal(t, persistence.OrderStatusDelivered, delivered.Status)
}

func TestUpdateStatusRejectsInvalidTransitions(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
	}{
		{"pending to delivered", persistence.OrderStatusPending, "delivered"},
		{"delivered is terminal", persistence.OrderStatusDelivered, "pending"},
		{"cancelled is terminal", persistence.OrderStatusCancelled, "confirmed"},
		{"unknown status", persistence.OrderStatusPending, "shipped"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newInMemoryRepo()
			svc := New(repo)

			order, err := svc.Create(context.Background(), validCreateInput())
			require.NoError(t, err)
			repo.orders[order.ID] = func() persistence.Order {
				o := repo.orders[order.ID]
				o.Status = tc.from
				return o
			}()

			_, err = svc.UpdateStatus(context.Background(), order.ID, tc.to)
			require.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	svc := New(newInMemoryRepo())

	_, err := svc.UpdateStatus(context.Background(), 99, "confirmed")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNoStoreSelectedSurfacesAsDomainError(t *testing.T) {
	svc := New(errRepo{err: persistence.ErrNoStoreSelected})

	_, err := svc.Get(context.Background(), 1)
	require.ErrorIs(t, err, ErrNoStore)
}

func TestUpdateCustomerAddress(t *testing.T) {
	repo := newInMemoryRepo()
	svc := New(repo)

	order, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	customer, err := svc.UpdateCustomerAddress(context.Background(), *order.CustomerID, "Calle 10 #4-32")
	require.NoError(t, err)
	require.NotNil(t, customer.Address)
	require.Equal(t, "Calle 10 #4-32", *customer.Address)

	_, err = svc.UpdateCustomerAddress(context.Background(), *order.CustomerID, "   ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

// errRepo fails every call with a fixed error.
type errRepo struct{ err error }

func (r errRepo) CreateOrder(context.Context, persistence.CreateOrderParams) (persistence.Order, error) {
	return persistence.Order{}, r.err
}
func (r errRepo) GetOrder(context.Context, int64) (persistence.Order, error) {
	return persistence.Order{}, r.err
}
func (r errRepo) UpdateOrderStatus(context.Context, int64, string) (persistence.Order, error) {
	return persistence.Order{}, r.err
}
func (r errRepo) ListOrders(context.Context, persistence.ListOrdersParams) ([]persistence.Order, error) {
	return nil, r.err
}
func (r errRepo) UpsertCustomer(context.Context, string, *string) (persistence.Customer, error) {
	return persistence.Customer{}, r.err
}
func (r errRepo) GetCustomer(context.Context, int64) (persistence.Customer, error) {
	return persistence.Customer{}, r.err
}
func (r errRepo) UpdateCustomerAddress(context.Context, int64, string) (persistence.Customer, error) {
	return persistence.Customer{}, r.err
}
func (r errRepo) SearchCustomers(context.Context, string, int) ([]persistence.Customer, error) {
	return nil, r.err
}
