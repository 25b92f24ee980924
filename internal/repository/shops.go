package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

const shopColumns = `id, owner_id, name, description, district, taluk, village_city, is_open,
	opening_time, closing_time, rating, total_ratings, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) CreateShop(ctx context.Context, s *domain.Shop) error {
	query := `INSERT INTO shops (` + shopColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.OwnerID,
		s.Name,
		s.Description,
		s.District,
		s.Taluk,
		s.VillageCity,
		s.IsOpen,
		s.OpeningTime,
		s.ClosingTime,
		s.Rating,
		s.TotalRatings,
		s.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert shop: %w", err)
	}
	return nil
}

func (r *Repository) GetShop(ctx context.Context, id string) (*domain.Shop, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, id)
	s, err := scanShop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shop %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListShops returns shops matching every level set in filter exactly.
func (r *Repository) ListShops(ctx context.Context, filter domain.Location) ([]*domain.Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops WHERE 1 = 1`
	var args []any
	if filter.District != "" {
		args = append(args, filter.District)
		query += fmt.Sprintf(" AND district = $%d", len(args))
	}
	if filter.Taluk != "" {
		args = append(args, filter.Taluk)
		query += fmt.Sprintf(" AND taluk = $%d", len(args))
	}
	if filter.VillageCity != "" {
		args = append(args, filter.VillageCity)
		query += fmt.Sprintf(" AND village_city = $%d", len(args))
	}
	query += " ORDER BY name, id"

	return r.queryShops(ctx, query, args...)
}

func (r *Repository) ListShopsByOwner(ctx context.Context, ownerID string) ([]*domain.Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops WHERE owner_id = $1 ORDER BY created_at, id`
	return r.queryShops(ctx, query, ownerID)
}

func (r *Repository) SetShopOpen(ctx context.Context, id string, open bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE shops SET is_open = $1 WHERE id = $2`, open, id)
	if err != nil {
		return fmt.Errorf("update shop: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("shop %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) queryShops(ctx context.Context, query string, args ...any) ([]*domain.Shop, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shops: %w", err)
	}
	defer rows.Close()

	shops := []*domain.Shop{}
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		shops = append(shops, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return shops, nil
}

func scanShop(row rowScanner) (*domain.Shop, error) {
	s := &domain.Shop{}
	err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.Name,
		&s.Description,
		&s.District,
		&s.Taluk,
		&s.VillageCity,
		&s.IsOpen,
		&s.OpeningTime,
		&s.ClosingTime,
		&s.Rating,
		&s.TotalRatings,
		&s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan shop: %w", err)
	}
	return s, nil
}
