package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/repository"
	"go.uber.org/zap"
)

type ReviewService struct {
	tx        Transactor
	bookings  BookingStore
	reviews   ReviewStore
	providers ProviderStore
	logger    *zap.Logger
}

func NewReviewService(
	tx Transactor,
	bookings BookingStore,
	reviews ReviewStore,
	providers ProviderStore,
	logger *zap.Logger,
) *ReviewService {
	return &ReviewService{
		tx:        tx,
		bookings:  bookings,
		reviews:   reviews,
		providers: providers,
		logger:    logger,
	}
}

// CreateReview сохраняет отзыв клиента о завершённой брони и пересчитывает рейтинг исполнителя
func (s *ReviewService) CreateReview(ctx context.Context, actor model.Actor, bookingID int64, rating int, comment string) (*model.Review, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("%w: only customers can leave reviews", ErrForbidden)
	}
	if rating < model.MinReviewRating || rating > model.MaxReviewRating {
		return nil, NewValidationError("rating", fmt.Sprintf("rating must be between %d and %d", model.MinReviewRating, model.MaxReviewRating))
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, storeErr("get booking", err)
	}
	if booking == nil {
		return nil, errBookingNotFound
	}
	if booking.CustomerID != actor.UserID {
		return nil, fmt.Errorf("%w: booking belongs to another customer", ErrForbidden)
	}
	if booking.Status != model.BookingStatusCompleted {
		return nil, invalidState("review", booking.Status)
	}

	review := &model.Review{
		BookingID: bookingID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	}

	var newRating float64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.reviews.Create(ctx, review); err != nil {
			if errors.Is(err, repository.ErrReviewExists) {
				return NewValidationError("booking_id", "booking already reviewed")
			}
			return storeErr("create review", err)
		}

		r, err := s.providers.RecomputeRating(ctx, booking.ProviderID)
		if err != nil {
			return storeErr("recompute rating", err)
		}
		newRating = r
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStore) {
			s.logger.Error("Failed to create review", zap.Int64("booking_id", bookingID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Review created",
		zap.Int64("review_id", review.ID),
		zap.Int64("booking_id", bookingID),
		zap.Int64("provider_id", booking.ProviderID),
		zap.Float64("provider_rating", newRating),
	)

	return review, nil
}
