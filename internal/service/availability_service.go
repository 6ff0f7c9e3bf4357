package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"go.uber.org/zap"
)

type AvailabilityService struct {
	tx        Transactor
	providers ProviderStore
	slots     SlotStore
	bookings  BookingStore
	metrics   Metrics
	retry     ReadRetry
	logger    *zap.Logger
}

func NewAvailabilityService(
	tx Transactor,
	providers ProviderStore,
	slots SlotStore,
	bookings BookingStore,
	metrics Metrics,
	retry ReadRetry,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		tx:        tx,
		providers: providers,
		slots:     slots,
		bookings:  bookings,
		metrics:   metrics,
		retry:     retry,
		logger:    logger,
	}
}

// AddSlot добавляет свободный слот исполнителю, от имени которого действует actor
func (s *AvailabilityService) AddSlot(ctx context.Context, actor model.Actor, start, end time.Time) (*model.TimeSlot, error) {
	if !actor.IsProvider() {
		return nil, fmt.Errorf("%w: only providers can add availability", ErrForbidden)
	}

	verr := &ValidationError{}
	if start.IsZero() {
		verr.Add("start", "slot start is required")
	}
	if end.IsZero() {
		verr.Add("end", "slot end is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		verr.Add("end", "slot end must be after slot start")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	provider, err := s.providers.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, storeErr("get provider", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider profile %w", ErrNotFound)
	}

	slot := &model.TimeSlot{
		ProviderID: provider.ID,
		Start:      start,
		End:        end,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.providers.Lock(ctx, provider.ID); err != nil {
			return storeErr("lock provider", err)
		}

		// Бронь без слота на это время уже занимает исполнителя
		busy, err := s.bookings.ExistsActiveAt(ctx, provider.ID, start)
		if err != nil {
			return storeErr("check provider booking", err)
		}
		if busy {
			return NewValidationError("start", "provider already has a booking at this time")
		}

		if err := s.slots.Create(ctx, slot); err != nil {
			return storeErr("create slot", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStore) {
			s.logger.Error("Failed to create slot",
				zap.Int64("provider_id", provider.ID),
				zap.Error(err))
		}
		return nil, err
	}

	s.metrics.SlotAdded()
	s.logger.Info("Slot added",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("provider_id", provider.ID),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	return slot, nil
}

// ListSlots возвращает все слоты исполнителя по возрастанию начала
func (s *AvailabilityService) ListSlots(ctx context.Context, providerID int64) ([]*model.TimeSlot, error) {
	slots, err := readWithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.TimeSlot, error) {
		return s.slots.ListByProvider(ctx, providerID)
	})
	if err != nil {
		return nil, storeErr("list slots", err)
	}
	return slots, nil
}

// ListOwnSlots возвращает слоты исполнителя, от имени которого действует actor
func (s *AvailabilityService) ListOwnSlots(ctx context.Context, actor model.Actor) ([]*model.TimeSlot, error) {
	if !actor.IsProvider() {
		return nil, ErrForbidden
	}

	provider, err := s.providers.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, storeErr("get provider", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider profile %w", ErrNotFound)
	}

	return s.ListSlots(ctx, provider.ID)
}

// Reserve атомарно переводит слот в занятые. Проигравший в гонке получает ErrSlotUnavailable
func (s *AvailabilityService) Reserve(ctx context.Context, slotID int64) error {
	ok, err := s.slots.Reserve(ctx, slotID)
	if err != nil {
		return storeErr("reserve slot", err)
	}
	if !ok {
		return ErrSlotUnavailable
	}
	return nil
}

// Release освобождает слот. Освобождение свободного слота не ошибка
func (s *AvailabilityService) Release(ctx context.Context, slotID int64) error {
	if err := s.slots.Release(ctx, slotID); err != nil {
		return storeErr("release slot", err)
	}
	return nil
}
