package persistence

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

func itoa(n int) string { return strconv.Itoa(n) }

// Product is a catalog item inside one store's schema. No store id column:
// isolation comes from the schema the bound StoreDB operates in.
type Product struct {
	ID          int64
	CategoryID  *int64
	Name        string
	Description *string
	PriceCents  int64
	Currency    string
	ImageURL    *string
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Category groups catalog items for the store menu.
type Category struct {
	ID        int64
	Name      string
	Slug      string
	SortOrder int
	CreatedAt time.Time
}

// ProductStore provides catalog access bound to exactly one store schema.
type ProductStore struct {
	db *StoreDB
}

func NewProductStore(db *StoreDB) *ProductStore {
	if db == nil {
		panic("product store requires db")
	}
	return &ProductStore{db: db}
}

// CreateProductParams carries the fields accepted on product creation.
type CreateProductParams struct {
	CategoryID  *int64
	Name        string
	Description *string
	PriceCents  int64
	Currency    string
	ImageURL    *string
}

// UpdateProductParams applies partial updates; nil fields are left untouched.
type UpdateProductParams struct {
	CategoryID  *int64
	Name        *string
	Description *string
	PriceCents  *int64
	ImageURL    *string
	IsAvailable *bool
}

// ListProductsParams controls filtering and pagination.
type ListProductsParams struct {
	CategoryID    *int64
	OnlyAvailable bool
	Search        *string
	Limit         int
	Offset        int
}

const productColumns = "id, category_id, name, description, price_cents, currency, image_url, is_available, created_at, updated_at"

func (s *ProductStore) Create(ctx context.Context, params CreateProductParams) (Product, error) {
	currency := params.Currency
	if currency == "" {
		currency = "USD"
	}

	var product Product
	err := s.db.WithTx(ctx, "products.create", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO products (category_id, name, description, price_cents, currency, image_url)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING `+productColumns,
			params.CategoryID, params.Name, params.Description, params.PriceCents, currency, params.ImageURL,
		)
		var scanErr error
		product, scanErr = scanProduct(row)
		return scanErr
	})
	return product, err
}

func (s *ProductStore) Get(ctx context.Context, id int64) (Product, error) {
	var product Product
	err := s.db.WithTx(ctx, "products.get", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
		var scanErr error
		product, scanErr = scanProduct(row)
		return scanErr
	})
	return product, err
}

func (s *ProductStore) Update(ctx context.Context, id int64, params UpdateProductParams) (Product, error) {
	var product Product
	err := s.db.WithTx(ctx, "products.update", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            UPDATE products SET
                category_id = COALESCE($2, category_id),
                name = COALESCE($3, name),
                description = COALESCE($4, description),
                price_cents = COALESCE($5, price_cents),
                image_url = COALESCE($6, image_url),
                is_available = COALESCE($7, is_available),
                updated_at = now()
            WHERE id = $1
            RETURNING `+productColumns,
			id, params.CategoryID, params.Name, params.Description, params.PriceCents, params.ImageURL, params.IsAvailable,
		)
		var scanErr error
		product, scanErr = scanProduct(row)
		return scanErr
	})
	return product, err
}

func (s *ProductStore) Delete(ctx context.Context, id int64) error {
	return s.db.WithTx(ctx, "products.delete", func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *ProductStore) List(ctx context.Context, params ListProductsParams) ([]Product, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE TRUE`
	args := []any{}
	if params.CategoryID != nil {
		args = append(args, *params.CategoryID)
		query += ` AND category_id = $1`
	}
	if params.OnlyAvailable {
		query += ` AND is_available = TRUE`
	}
	if params.Search != nil && *params.Search != "" {
		args = append(args, "%"+*params.Search+"%")
		query += ` AND name ILIKE $` + itoa(len(args))
	}
	args = append(args, limit, params.Offset)
	query += ` ORDER BY name ASC LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	var products []Product
	err := s.db.WithTx(ctx, "products.list", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		products = products[:0]
		for rows.Next() {
			product, err := scanProduct(rows)
			if err != nil {
				return err
			}
			products = append(products, product)
		}
		return rows.Err()
	})
	return products, err
}

func (s *ProductStore) CreateCategory(ctx context.Context, name, slug string, sortOrder int) (Category, error) {
	normalized, err := NormalizeSlug(slug)
	if err != nil {
		return Category{}, err
	}

	var category Category
	err = s.db.WithTx(ctx, "categories.create", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO categories (name, slug, sort_order)
            VALUES ($1, $2, $3)
            RETURNING id, name, slug, sort_order, created_at`,
			name, normalized, sortOrder,
		)
		return row.Scan(&category.ID, &category.Name, &category.Slug, &category.SortOrder, &category.CreatedAt)
	})
	return category, err
}

func (s *ProductStore) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := s.db.WithTx(ctx, "categories.list", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id, name, slug, sort_order, created_at FROM categories ORDER BY sort_order, name`)
		if err != nil {
			return err
		}
		defer rows.Close()

		categories = categories[:0]
		for rows.Next() {
			var category Category
			if err := rows.Scan(&category.ID, &category.Name, &category.Slug, &category.SortOrder, &category.CreatedAt); err != nil {
				return err
			}
			categories = append(categories, category)
		}
		return rows.Err()
	})
	return categories, err
}

func (s *ProductStore) DeleteCategory(ctx context.Context, id int64) error {
	return s.db.WithTx(ctx, "categories.delete", func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &p.ImageURL, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}
