package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

const productColumns = `p.id, p.shop_id, p.name, p.description, p.price, p.category, p.stock_quantity,
	p.image_url, p.is_active, p.created_at`

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (id, shop_id, name, description, price, category, stock_quantity,
	          image_url, is_active, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.ShopID,
		p.Name,
		p.Description,
		p.Price.StringFixed(2),
		p.Category,
		p.StockQuantity,
		p.ImageURL,
		p.IsActive,
		p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProducts loads the products with the given ids. Missing ids are absent
// from the result.
func (r *Repository) GetProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id IN (` + placeholders(1, len(ids)) + `)`

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (r *Repository) ListProductsByShop(ctx context.Context, shopID string) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.shop_id = $1 ORDER BY p.name, p.id`
	return r.queryProducts(ctx, query, shopID)
}

// SearchProducts matches active products by case-insensitive text over name
// and description, category, and the location of the owning shop.
func (r *Repository) SearchProducts(ctx context.Context, q domain.ProductQuery) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + `
	          FROM products p JOIN shops s ON s.id = p.shop_id
	          WHERE p.is_active = $1`
	args := []any{true}

	if q.Text != "" {
		args = append(args, "%"+strings.ToLower(q.Text)+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (LOWER(p.name) LIKE $%d OR LOWER(p.description) LIKE $%d)", n, n)
	}
	if q.Category != "" {
		args = append(args, strings.ToLower(q.Category))
		query += fmt.Sprintf(" AND LOWER(p.category) = $%d", len(args))
	}
	if q.District != "" {
		args = append(args, q.District)
		query += fmt.Sprintf(" AND s.district = $%d", len(args))
	}
	if q.Taluk != "" {
		args = append(args, q.Taluk)
		query += fmt.Sprintf(" AND s.taluk = $%d", len(args))
	}
	query += " ORDER BY p.name, p.id LIMIT 50"

	return r.queryProducts(ctx, query, args...)
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.ShopID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Category,
		&p.StockQuantity,
		&p.ImageURL,
		&p.IsActive,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return p, nil
}
