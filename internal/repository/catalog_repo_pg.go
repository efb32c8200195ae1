package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rushrental/carbooking/internal/domain"
)

// CatalogRepository is the read-only view of cars, locations and the add-on
// catalog the wizard prices against.
type CatalogRepository interface {
	GetCar(ctx context.Context, id int64) (*domain.Car, error)
	LocationExists(ctx context.Context, id int64) (bool, error)
	ListOptions(ctx context.Context) (map[int64]domain.Option, error)
}

type PGCatalogRepository struct {
	db *pgxpool.Pool
}

func NewCatalogRepository(db *pgxpool.Pool) CatalogRepository {
	return &PGCatalogRepository{db: db}
}

func (r *PGCatalogRepository) GetCar(ctx context.Context, id int64) (*domain.Car, error) {
	row := r.db.QueryRow(ctx, `SELECT id, make, model, year, daily_rate_cents, seats, transmission, is_available, created_at, updated_at FROM cars WHERE id=$1`, id)
	var c domain.Car
	if err := row.Scan(&c.ID, &c.Make, &c.Model, &c.Year, &c.DailyRateCents, &c.Seats, &c.Transmission, &c.IsAvailable, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCarNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PGCatalogRepository) LocationExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM locations WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PGCatalogRepository) ListOptions(ctx context.Context) (map[int64]domain.Option, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, pricing, unit_price_cents, max_quantity FROM booking_options ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := make(map[int64]domain.Option)
	for rows.Next() {
		var o domain.Option
		if err := rows.Scan(&o.ID, &o.Name, &o.Pricing, &o.UnitPriceCents, &o.MaxQuantity); err != nil {
			return nil, err
		}
		options[o.ID] = o
	}
	return options, rows.Err()
}

var _ CatalogRepository = (*PGCatalogRepository)(nil)
