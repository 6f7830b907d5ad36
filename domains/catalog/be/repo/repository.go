package repo

import (
	"context"

	"github.com/orderline-app/orderline/platform/go/persistence"
)

// Repository exposes product and category persistence for the active store.
type Repository interface {
	CreateProduct(ctx context.Context, params persistence.CreateProductParams) (persistence.Product, error)
	GetProduct(ctx context.Context, id int64) (persistence.Product, error)
	UpdateProduct(ctx context.Context, id int64, params persistence.UpdateProductParams) (persistence.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context, params persistence.ListProductsParams) ([]persistence.Product, error)
	CreateCategory(ctx context.Context, name, slug string, sortOrder int) (persistence.Category, error)
	ListCategories(ctx context.Context) ([]persistence.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// contextRepository reads the store facade the tenant middleware attached to
// each request, so one repository value serves every store.
type contextRepository struct{}

func New() Repository {
	return contextRepository{}
}

func (contextRepository) CreateProduct(ctx context.Context, params persistence.CreateProductParams) (persistence.Product, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Product{}, err
	}
	return facade.Products.Create(ctx, params)
}

func (contextRepository) GetProduct(ctx context.Context, id int64) (persistence.Product, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Product{}, err
	}
	return facade.Products.Get(ctx, id)
}

func (contextRepository) UpdateProduct(ctx context.Context, id int64, params persistence.UpdateProductParams) (persistence.Product, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Product{}, err
	}
	return facade.Products.Update(ctx, id, params)
}

func (contextRepository) DeleteProduct(ctx context.Context, id int64) error {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return err
	}
	return facade.Products.Delete(ctx, id)
}

func (contextRepository) ListProducts(ctx context.Context, params persistence.ListProductsParams) ([]persistence.Product, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return nil, err
	}
	return facade.Products.List(ctx, params)
}

func (contextRepository) CreateCategory(ctx context.Context, name, slug string, sortOrder int) (persistence.Category, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Category{}, err
	}
	return facade.Products.CreateCategory(ctx, name, slug, sortOrder)
}

func (contextRepository) ListCategories(ctx context.Context) ([]persistence.Category, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return nil, err
	}
	return facade.Products.ListCategories(ctx)
}

func (contextRepository) DeleteCategory(ctx context.Context, id int64) error {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return err
	}
	return facade.Products.DeleteCategory(ctx, id)
}
