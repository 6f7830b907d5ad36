package service

import (
	"context"
	"errors"
	"strings"
	"time"

	domainrepo "github.com/orderline-app/orderline/domains/catalog/be/repo"
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
	ErrNotFound = errors.New("product not found")
	ErrNoStore  = errors.New("no store selected")
)

// Product is the catalog domain model.
type Product struct {
	ID          int64     `json:"id"`
	CategoryID  *int64    `json:"categoryId"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	PriceCents  int64     `json:"priceCents"`
	Currency    string    `json:"currency"`
	ImageURL    *string   `json:"imageUrl"`
	IsAvailable bool      `json:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Category groups products on the store menu.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateProductInput is the payload for creating a product.
type CreateProductInput struct {
	CategoryID  *int64
	Name        string
	Description *string
	PriceCents  int64
	Currency    string
	ImageURL    *string
}

// UpdateProductInput applies partial updates; nil fields are left untouched.
type UpdateProductInput struct {
	CategoryID  *int64
	Name        *string
	Description *string
	PriceCents  *int64
	ImageURL    *string
	IsAvailable *bool
}

// ListOptions controls catalog listing.
type ListOptions struct {
	CategoryID    *int64
	OnlyAvailable bool
	Search        *string
	Limit         int
	Offset        int
}

// CreateCategoryInput is the payload for creating a category.
type CreateCategoryInput struct {
	Name      string
	Slug      string
	SortOrder int
}

// Service exposes the catalog domain operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context, opts ListOptions) ([]Product, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

type service struct {
	repo domainrepo.Repository
}

func New(repo domainrepo.Repository) Service {
	if repo == nil {
		panic("catalog repository is required")
	}
	return &service{repo: repo}
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	errs := FieldErrors{}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		errs.add("name", "name is required")
	}
	if input.PriceCents < 0 {
		errs.add("priceCents", "price must not be negative")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if len(currency) != 3 {
		errs.add("currency", "currency must be a 3-letter code")
	}
	if len(errs) > 0 {
		return Product{}, &ValidationError{Fields: errs}
	}

	record, err := s.repo.CreateProduct(ctx, persistence.CreateProductParams{
		CategoryID:  input.CategoryID,
		Name:        name,
		Description: input.Description,
		PriceCents:  input.PriceCents,
		Currency:    currency,
		ImageURL:    input.ImageURL,
	})
	if err != nil {
		return Product{}, mapError(err)
	}
	return mapProduct(record), nil
}

func (s *service) GetProduct(ctx context.Context, id int64) (Product, error) {
	record, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, mapError(err)
	}
	return mapProduct(record), nil
}

func (s *service) UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (Product, error) {
	errs := FieldErrors{}

	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		errs.add("name", "name must not be empty")
	}
	if input.PriceCents != nil && *input.PriceCents < 0 {
		errs.add("priceCents", "price must not be negative")
	}
	if input.Name == nil && input.CategoryID == nil && input.Description == nil &&
		input.PriceCents == nil && input.ImageURL == nil && input.IsAvailable == nil {
		errs.add("body", "at least one field must be provided")
	}
	if len(errs) > 0 {
		return Product{}, &ValidationError{Fields: errs}
	}

	record, err := s.repo.UpdateProduct(ctx, id, persistence.UpdateProductParams{
		CategoryID:  input.CategoryID,
		Name:        input.Name,
		Description: input.Description,
		PriceCents:  input.PriceCents,
		ImageURL:    input.ImageURL,
		IsAvailable: input.IsAvailable,
	})
	if err != nil {
		return Product{}, mapError(err)
	}
	return mapProduct(record), nil
}

func (s *service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *service) ListProducts(ctx context.Context, opts ListOptions) ([]Product, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	records, err := s.repo.ListProducts(ctx, persistence.ListProductsParams{
		CategoryID:    opts.CategoryID,
		OnlyAvailable: opts.OnlyAvailable,
		Search:        opts.Search,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return nil, mapError(err)
	}

	products := make([]Product, 0, len(records))
	for _, record := range records {
		products = append(products, mapProduct(record))
	}
	return products, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (Category, error) {
	errs := FieldErrors{}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		errs.add("name", "name is required")
	}

	rawSlug := input.Slug
	if strings.TrimSpace(rawSlug) == "" {
		rawSlug = name
	}
	slug, err := persistence.NormalizeSlug(rawSlug)
	if err != nil {
		errs.add("slug", err.Error())
	}

	if len(errs) > 0 {
		return Category{}, &ValidationError{Fields: errs}
	}

	record, err := s.repo.CreateCategory(ctx, name, slug, input.SortOrder)
	if err != nil {
		return Category{}, mapError(err)
	}
	return mapCategory(record), nil
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	records, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	categories := make([]Category, 0, len(records))
	for _, record := range records {
		categories = append(categories, mapCategory(record))
	}
	return categories, nil
}

func (s *service) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return mapError(err)
	}
	return nil
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

func mapProduct(record persistence.Product) Product {
	return Product{
		ID:          record.ID,
		CategoryID:  record.CategoryID,
		Name:        record.Name,
		Description: record.Description,
		PriceCents:  record.PriceCents,
		Currency:    record.Currency,
		ImageURL:    record.ImageURL,
		IsAvailable: record.IsAvailable,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func mapCategory(record persistence.Category) Category {
	return Category{
		ID:        record.ID,
		Name:      record.Name,
		Slug:      record.Slug,
		SortOrder: record.SortOrder,
		CreatedAt: record.CreatedAt,
	}
}
