package repo

import (
	"context"

	"github.com/orderline-app/orderline/platform/go/persistence"
)

// Repository exposes the registry operations the stores service needs.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateStoreParams) (persistence.StoreRecord, error)
	Get(ctx context.Context, id int64) (persistence.StoreRecord, error)
	List(ctx context.Context, includeInactive bool) ([]persistence.StoreRecord, error)
	SetDatabaseURL(ctx context.Context, id int64, databaseURL string) (persistence.StoreRecord, error)
	Deactivate(ctx context.Context, id int64) error
	Metrics(ctx context.Context) (persistence.SystemMetrics, error)
}

type masterRepository struct {
	master *persistence.MasterStore
}

// NewMasterRepository builds a Repository backed by the master database.
func NewMasterRepository(master *persistence.MasterStore) Repository {
	if master == nil {
		panic("master store is required")
	}
	return &masterRepository{master: master}
}

func (r *masterRepository) Create(ctx context.Context, params persistence.CreateStoreParams) (persistence.StoreRecord, error) {
	return r.master.CreateStore(ctx, params)
}

func (r *masterRepository) Get(ctx context.Context, id int64) (persistence.StoreRecord, error) {
	return r.master.GetStore(ctx, id)
}

func (r *masterRepository) List(ctx context.Context, includeInactive bool) ([]persistence.StoreRecord, error) {
	return r.master.ListStores(ctx, includeInactive)
}

func (r *masterRepository) SetDatabaseURL(ctx context.Context, id int64, databaseURL string) (persistence.StoreRecord, error) {
	return r.master.UpdateStoreDatabaseURL(ctx, id, databaseURL)
}

func (r *masterRepository) Deactivate(ctx context.Context, id int64) error {
	return r.master.DeactivateStore(ctx, id)
}

func (r *masterRepository) Metrics(ctx context.Context) (persistence.SystemMetrics, error) {
	return r.master.Metrics(ctx)
}
