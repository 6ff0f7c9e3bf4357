package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReviewRepository struct {
	*base.Repository
}

func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{Repository: base.NewRepository(pool)}
}

// Create сохраняет отзыв. Один отзыв на бронь
func (r *ReviewRepository) Create(ctx context.Context, review *model.Review) error {
	query := `
		INSERT INTO reviews (booking_id, rating, comment)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query, review.BookingID, review.Rating, review.Comment).
		Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		if name, ok := base.UniqueViolation(err); ok && name == constraintReviewPerBooking {
			return ErrReviewExists
		}
		return fmt.Errorf("create review: %w", err)
	}

	return nil
}

// ListByProvider получает отзывы об исполнителе, новые первыми
func (r *ReviewRepository) ListByProvider(ctx context.Context, providerID int64) ([]*model.Review, error) {
	query := `
		SELECT rv.id, rv.booking_id, rv.rating, rv.comment, rv.created_at, u.full_name
		FROM reviews rv
		JOIN bookings b ON b.id = rv.booking_id
		JOIN users u ON u.id = b.user_id
		WHERE b.provider_id = $1
		ORDER BY rv.created_at DESC, rv.id DESC
	`

	rows, err := r.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("get reviews by provider: %w", err)
	}
	defer rows.Close()

	var reviews []*model.Review
	for rows.Next() {
		var review model.Review
		err := rows.Scan(
			&review.ID,
			&review.BookingID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
			&review.CustomerName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, &review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}

	return reviews, nil
}
