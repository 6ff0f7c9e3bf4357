package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LocationRepository struct {
	*base.Repository
}

func NewLocationRepository(pool *pgxpool.Pool) *LocationRepository {
	return &LocationRepository{Repository: base.NewRepository(pool)}
}

// GetByCity ищет локацию по названию города
func (r *LocationRepository) GetByCity(ctx context.Context, city string) (*model.Location, error) {
	query := `SELECT id, city, created_at FROM locations WHERE LOWER(city) = LOWER($1)`

	var loc model.Location
	err := r.QueryRow(ctx, query, city).Scan(&loc.ID, &loc.City, &loc.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get location by city: %w", err)
	}

	return &loc, nil
}

// Ensure возвращает локацию города, создавая её при необходимости
func (r *LocationRepository) Ensure(ctx context.Context, city string) (*model.Location, error) {
	query := `
		INSERT INTO locations (city)
		VALUES ($1)
		ON CONFLICT (city) DO UPDATE SET city = EXCLUDED.city
		RETURNING id, city, created_at
	`

	var loc model.Location
	err := r.QueryRow(ctx, query, city).Scan(&loc.ID, &loc.City, &loc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure location: %w", err)
	}

	return &loc, nil
}
