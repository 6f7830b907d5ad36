package persistence

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/orderline-app/orderline/platform/go/tenant"
)

// StoreFacade bundles every store-scoped entity store over one resolved
// connection. A facade is constructed bound to exactly one store and must
// never be reused across stores; the tenant middleware builds a fresh one per
// request from the cached connection.
type StoreFacade struct {
	Space         tenant.Space
	Products      *ProductStore
	Customers     *CustomerStore
	Orders        *OrderStore
	Conversations *ConversationStore
	Settings      *SettingsStore
}

// NewStoreFacade wires the entity stores over the store's pool. The executor
// gives every operation timeout and retry semantics; the StoreDB scopes every
// transaction to the store schema.
func NewStoreFacade(conn tenant.Conn, validator *SettingsValidator, logger *zap.Logger) *StoreFacade {
	exec := NewExecutor(conn.Pool, logger)
	db := NewStoreDB(exec, conn.Target.SchemaName)

	return &StoreFacade{
		Space: tenant.Space{
			StoreID:    conn.Target.StoreID,
			Slug:       conn.Target.Slug,
			SchemaName: conn.Target.SchemaName,
			Dedicated:  conn.Target.Dedicated,
			BasePrefix: tenant.BuildBasePrefix("stores", conn.Target.Slug, conn.Target.StoreID),
		},
		Products:      NewProductStore(db),
		Customers:     NewCustomerStore(db),
		Orders:        NewOrderStore(db),
		Conversations: NewConversationStore(db),
		Settings:      NewSettingsStore(db, validator),
	}
}

type facadeCtxKey struct{}

// WithStoreFacade attaches the request's store facade to the context.
func WithStoreFacade(ctx context.Context, facade *StoreFacade) context.Context {
	return context.WithValue(ctx, facadeCtxKey{}, facade)
}

// StoreFacadeFromContext extracts the facade attached by the tenant
// middleware. Absent means the request runs master-only.
func StoreFacadeFromContext(ctx context.Context) (*StoreFacade, bool) {
	facade, ok := ctx.Value(facadeCtxKey{}).(*StoreFacade)
	return facade, ok && facade != nil
}

// ErrNoStoreSelected is returned by store-scoped repositories when the
// request carries no resolved store.
var ErrNoStoreSelected = errors.New("no store selected")

// RequireStoreFacade is the repository-side guard for store-scoped
// operations.
func RequireStoreFacade(ctx context.Context) (*StoreFacade, error) {
	facade, ok := StoreFacadeFromContext(ctx)
	if !ok {
		return nil, ErrNoStoreSelected
	}
	return facade, nil
}
