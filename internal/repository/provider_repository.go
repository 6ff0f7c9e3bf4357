package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProviderRepository struct {
	*base.Repository
}

func NewProviderRepository(pool *pgxpool.Pool) *ProviderRepository {
	return &ProviderRepository{Repository: base.NewRepository(pool)}
}

const providerSelect = `
	SELECT p.id, p.user_id, p.service_type, p.experience, p.description, p.cert_file_path,
	       p.rating::float8, p.location_id, u.full_name, u.phone, u.email, u.address,
	       COALESCE(l.city, '')
	FROM providers p
	JOIN users u ON u.id = p.user_id
	LEFT JOIN locations l ON l.id = p.location_id
`

func scanProvider(row pgx.Row) (*model.Provider, error) {
	var p model.Provider
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.ServiceType,
		&p.Experience,
		&p.Description,
		&p.CertFilePath,
		&p.Rating,
		&p.LocationID,
		&p.FullName,
		&p.Phone,
		&p.Email,
		&p.Address,
		&p.City,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create создаёт профиль исполнителя
func (r *ProviderRepository) Create(ctx context.Context, provider *model.Provider) error {
	query := `
		INSERT INTO providers (user_id, service_type, experience, description, cert_file_path, location_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, rating::float8
	`

	err := r.QueryRow(
		ctx, query,
		provider.UserID,
		provider.ServiceType,
		provider.Experience,
		provider.Description,
		provider.CertFilePath,
		provider.LocationID,
	).Scan(&provider.ID, &provider.Rating)

	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	return nil
}

// GetByID получает исполнителя по ID
func (r *ProviderRepository) GetByID(ctx context.Context, id int64) (*model.Provider, error) {
	p, err := scanProvider(r.QueryRow(ctx, providerSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get provider by id: %w", err)
	}
	return p, nil
}

// GetByUserID получает профиль исполнителя по ID пользователя
func (r *ProviderRepository) GetByUserID(ctx context.Context, userID int64) (*model.Provider, error) {
	p, err := scanProvider(r.QueryRow(ctx, providerSelect+` WHERE p.user_id = $1`, userID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get provider by user id: %w", err)
	}
	return p, nil
}

// Lock блокирует строку исполнителя до конца транзакции. Добавление слотов и
// бронирование по времени у одного исполнителя выполняются по очереди
func (r *ProviderRepository) Lock(ctx context.Context, providerID int64) error {
	query := `SELECT id FROM providers WHERE id = $1 FOR UPDATE`

	if _, err := r.ExecAffected(ctx, query, providerID); err != nil {
		return fmt.Errorf("lock provider: %w", err)
	}

	return nil
}

// Update обновляет профиль исполнителя
func (r *ProviderRepository) Update(ctx context.Context, provider *model.Provider) error {
	query := `
		UPDATE providers
		SET service_type = $1, experience = $2, description = $3, cert_file_path = $4, location_id = $5
		WHERE id = $6
	`

	affected, err := r.ExecAffected(
		ctx, query,
		provider.ServiceType,
		provider.Experience,
		provider.Description,
		provider.CertFilePath,
		provider.LocationID,
		provider.ID,
	)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}

	if affected == 0 {
		return errors.New("provider not found")
	}

	return nil
}

// ListAvailableAt возвращает исполнителей указанного типа, у которых нет
// брони в одном из blocking статусов ровно на момент at
func (r *ProviderRepository) ListAvailableAt(ctx context.Context, serviceType string, at time.Time, blocking []model.BookingStatus) ([]*model.ProviderSummary, error) {
	query := `
		SELECT p.id, u.full_name, p.service_type, p.experience, p.description, p.rating::float8
		FROM providers p
		JOIN users u ON u.id = p.user_id
		WHERE p.service_type = $1
		  AND NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.provider_id = p.id
			  AND b.service_date = $2
			  AND b.status = ANY($3)
		  )
		ORDER BY p.rating DESC, p.id
	`

	rows, err := r.Query(ctx, query, serviceType, at, statusStrings(blocking))
	if err != nil {
		return nil, fmt.Errorf("list available providers: %w", err)
	}
	defer rows.Close()

	var providers []*model.ProviderSummary
	for rows.Next() {
		var p model.ProviderSummary
		err := rows.Scan(
			&p.ProviderID,
			&p.FullName,
			&p.ServiceType,
			&p.Experience,
			&p.Description,
			&p.Rating,
		)
		if err != nil {
			return nil, fmt.Errorf("scan provider summary: %w", err)
		}
		providers = append(providers, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}

	return providers, nil
}

// RecomputeRating пересчитывает средний рейтинг исполнителя по отзывам
func (r *ProviderRepository) RecomputeRating(ctx context.Context, providerID int64) (float64, error) {
	query := `
		UPDATE providers
		SET rating = COALESCE((
			SELECT ROUND(AVG(rv.rating)::numeric, 2)
			FROM reviews rv
			JOIN bookings b ON b.id = rv.booking_id
			WHERE b.provider_id = $1
		), 0)
		WHERE id = $1
		RETURNING rating::float8
	`

	var rating float64
	if err := r.QueryRow(ctx, query, providerID).Scan(&rating); err != nil {
		return 0, fmt.Errorf("recompute provider rating: %w", err)
	}

	return rating, nil
}

func statusStrings(statuses []model.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
