package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/repository"
	"go.uber.org/zap"
)

var errBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)

type BookingService struct {
	tx           Transactor
	providers    ProviderStore
	slots        SlotStore
	bookings     BookingStore
	availability *AvailabilityService
	notifier     Notifier
	metrics      Metrics
	retry        ReadRetry
	logger       *zap.Logger
}

func NewBookingService(
	tx Transactor,
	providers ProviderStore,
	slots SlotStore,
	bookings BookingStore,
	availability *AvailabilityService,
	notifier Notifier,
	metrics Metrics,
	retry ReadRetry,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		tx:           tx,
		providers:    providers,
		slots:        slots,
		bookings:     bookings,
		availability: availability,
		notifier:     notifier,
		metrics:      metrics,
		retry:        retry,
		logger:       logger,
	}
}

// CreateBooking бронирует слот для клиента. Проверка слота, его резервирование
// и вставка брони выполняются в одной транзакции
func (s *BookingService) CreateBooking(ctx context.Context, actor model.Actor, slotID int64, address *string) (*model.Booking, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("%w: only customers can book", ErrForbidden)
	}

	var booking *model.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		slot, err := s.slots.GetByID(ctx, slotID)
		if err != nil {
			return storeErr("get slot", err)
		}
		if slot == nil {
			return ErrSlotNotFound
		}
		if !slot.IsAvailable {
			return ErrSlotUnavailable
		}

		// Условный UPDATE: из параллельных запросов успеет только один
		if err := s.availability.Reserve(ctx, slot.ID); err != nil {
			return err
		}

		b := &model.Booking{
			CustomerID:     actor.UserID,
			ProviderID:     slot.ProviderID,
			SlotID:         &slot.ID,
			ServiceDate:    slot.Start,
			Status:         model.BookingStatusPending,
			ServiceAddress: address,
		}
		if err := s.bookings.Create(ctx, b); err != nil {
			return bookingInsertErr(err)
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, s.rejected("create booking", err, zap.Int64("slot_id", slotID), zap.Int64("customer_id", actor.UserID))
	}

	s.created(ctx, booking)
	return booking, nil
}

// CreateBookingAt бронирует исполнителя на конкретное время. Если у исполнителя
// есть слот, начинающийся в это время, он резервируется той же транзакцией
func (s *BookingService) CreateBookingAt(ctx context.Context, actor model.Actor, providerID int64, serviceDate time.Time, address *string) (*model.Booking, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("%w: only customers can book", ErrForbidden)
	}
	if serviceDate.IsZero() {
		return nil, NewValidationError("service_date", "service date is required")
	}

	provider, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, storeErr("get provider", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider %w", ErrNotFound)
	}

	// Быстрая проверка. Окончательно дубль отсекает уникальный индекс
	exists, err := s.bookings.ExistsActive(ctx, actor.UserID, providerID, serviceDate)
	if err != nil {
		return nil, storeErr("check duplicate booking", err)
	}
	if exists {
		s.metrics.BookingRejected(rejectReason(ErrDuplicateBooking))
		return nil, ErrDuplicateBooking
	}

	var booking *model.Booking
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Не даёт AddSlot завести свободный слот на это же время параллельно
		if err := s.providers.Lock(ctx, providerID); err != nil {
			return storeErr("lock provider", err)
		}

		b := &model.Booking{
			CustomerID:     actor.UserID,
			ProviderID:     providerID,
			ServiceDate:    serviceDate,
			Status:         model.BookingStatusPending,
			ServiceAddress: address,
		}

		slot, err := s.slots.FindByStart(ctx, providerID, serviceDate)
		if err != nil {
			return storeErr("find slot", err)
		}
		if slot != nil {
			if !slot.IsAvailable {
				return ErrSlotUnavailable
			}
			if err := s.availability.Reserve(ctx, slot.ID); err != nil {
				return err
			}
			b.SlotID = &slot.ID
		}

		if err := s.bookings.Create(ctx, b); err != nil {
			return bookingInsertErr(err)
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, s.rejected("create booking", err, zap.Int64("provider_id", providerID), zap.Int64("customer_id", actor.UserID))
	}

	s.created(ctx, booking)
	return booking, nil
}

// CancelBooking отменяет бронь клиента и освобождает её слот
func (s *BookingService) CancelBooking(ctx context.Context, actor model.Actor, bookingID int64) error {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return storeErr("get booking", err)
	}
	if booking == nil {
		return errBookingNotFound
	}
	if !actor.IsCustomer() || booking.CustomerID != actor.UserID {
		return fmt.Errorf("%w: booking belongs to another customer", ErrForbidden)
	}
	if !booking.Status.CanTransition(model.BookingStatusCancelled) {
		return invalidState("cancel", booking.Status)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.bookings.Transition(ctx, bookingID, model.BookingStatusCancelled, model.AllowedFrom(model.BookingStatusCancelled))
		if err != nil {
			return storeErr("cancel booking", err)
		}
		if !ok {
			return fmt.Errorf("%w: booking changed concurrently", ErrInvalidState)
		}

		if booking.SlotID != nil {
			return s.availability.Release(ctx, *booking.SlotID)
		}

		// Старые брони без ссылки на слот: ищем по исполнителю и времени
		released, err := s.slots.ReleaseByStart(ctx, booking.ProviderID, booking.ServiceDate)
		if err != nil {
			return storeErr("release slot", err)
		}
		if !released {
			s.logger.Warn("No slot matched cancelled booking",
				zap.Int64("booking_id", bookingID),
				zap.Int64("provider_id", booking.ProviderID),
				zap.Time("service_date", booking.ServiceDate),
			)
		}
		return nil
	})
	if err != nil {
		return s.failed("cancel booking", err, zap.Int64("booking_id", bookingID))
	}

	booking.Status = model.BookingStatusCancelled
	s.metrics.BookingTransition(model.BookingStatusCancelled)
	s.notifier.BookingCancelled(ctx, booking)

	s.logger.Info("Booking cancelled",
		zap.Int64("booking_id", bookingID),
		zap.Int64("customer_id", actor.UserID),
	)

	return nil
}

// ConfirmBooking подтверждает ожидающую бронь
func (s *BookingService) ConfirmBooking(ctx context.Context, actor model.Actor, bookingID int64) error {
	booking, err := s.transitionAsProvider(ctx, actor, bookingID, model.BookingStatusConfirmed, "confirm")
	if err != nil {
		return err
	}
	s.notifier.BookingConfirmed(ctx, booking)
	return nil
}

// CompleteBooking завершает подтверждённую бронь
func (s *BookingService) CompleteBooking(ctx context.Context, actor model.Actor, bookingID int64) error {
	_, err := s.transitionAsProvider(ctx, actor, bookingID, model.BookingStatusCompleted, "complete")
	return err
}

func (s *BookingService) transitionAsProvider(ctx context.Context, actor model.Actor, bookingID int64, to model.BookingStatus, action string) (*model.Booking, error) {
	if !actor.IsProvider() {
		return nil, fmt.Errorf("%w: only providers can %s bookings", ErrForbidden, action)
	}

	provider, err := s.providers.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, storeErr("get provider", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider profile %w", ErrNotFound)
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, storeErr("get booking", err)
	}
	if booking == nil {
		return nil, errBookingNotFound
	}
	if booking.ProviderID != provider.ID {
		return nil, fmt.Errorf("%w: booking belongs to another provider", ErrForbidden)
	}
	if !booking.Status.CanTransition(to) {
		return nil, invalidState(action, booking.Status)
	}

	ok, err := s.bookings.Transition(ctx, bookingID, to, model.AllowedFrom(to))
	if err != nil {
		return nil, s.failed(action+" booking", err, zap.Int64("booking_id", bookingID))
	}
	if !ok {
		return nil, fmt.Errorf("%w: booking changed concurrently", ErrInvalidState)
	}

	booking.Status = to
	s.metrics.BookingTransition(to)
	s.logger.Info("Booking status changed",
		zap.Int64("booking_id", bookingID),
		zap.Int64("provider_id", provider.ID),
		zap.String("status", string(to)),
	)

	return booking, nil
}

// GetBooking возвращает бронь, если actor её клиент или исполнитель
func (s *BookingService) GetBooking(ctx context.Context, actor model.Actor, bookingID int64) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, storeErr("get booking", err)
	}
	if booking == nil {
		return nil, errBookingNotFound
	}

	if actor.IsCustomer() && booking.CustomerID == actor.UserID {
		return booking, nil
	}
	if actor.IsProvider() {
		provider, err := s.providers.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, storeErr("get provider", err)
		}
		if provider != nil && provider.ID == booking.ProviderID {
			return booking, nil
		}
	}

	return nil, ErrForbidden
}

// ListBookingsForCustomer возвращает брони клиента, новые даты первыми
func (s *BookingService) ListBookingsForCustomer(ctx context.Context, actor model.Actor) ([]*model.Booking, error) {
	if !actor.IsCustomer() {
		return nil, ErrForbidden
	}

	bookings, err := readWithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.Booking, error) {
		return s.bookings.ListByCustomer(ctx, actor.UserID)
	})
	if err != nil {
		return nil, s.failed("list customer bookings", err)
	}
	return bookings, nil
}

// ListBookingsForProvider возвращает брони исполнителя, новые даты первыми
func (s *BookingService) ListBookingsForProvider(ctx context.Context, actor model.Actor) ([]*model.Booking, error) {
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

	bookings, err := readWithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.Booking, error) {
		return s.bookings.ListByProvider(ctx, provider.ID)
	})
	if err != nil {
		return nil, s.failed("list provider bookings", err)
	}
	return bookings, nil
}

func (s *BookingService) created(ctx context.Context, booking *model.Booking) {
	s.metrics.BookingCreated()
	s.notifier.BookingCreated(ctx, booking)

	fields := []zap.Field{
		zap.Int64("booking_id", booking.ID),
		zap.Int64("customer_id", booking.CustomerID),
		zap.Int64("provider_id", booking.ProviderID),
		zap.Time("service_date", booking.ServiceDate),
	}
	if booking.SlotID != nil {
		fields = append(fields, zap.Int64("slot_id", *booking.SlotID))
	}
	s.logger.Info("Booking created", fields...)
}

// rejected учитывает отказ в бронировании и логирует сбои хранилища
func (s *BookingService) rejected(op string, err error, fields ...zap.Field) error {
	s.metrics.BookingRejected(rejectReason(err))
	return s.failed(op, err, fields...)
}

func (s *BookingService) failed(op string, err error, fields ...zap.Field) error {
	err = storeErr(op, err)
	if errors.Is(err, ErrStore) {
		s.logger.Error("Booking store failure", append(fields, zap.String("op", op), zap.Error(err))...)
	}
	return err
}

// bookingInsertErr переводит нарушения уникальных индексов в доменные ошибки
func bookingInsertErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateBooking):
		return ErrDuplicateBooking
	case errors.Is(err, repository.ErrSlotTaken):
		return ErrSlotUnavailable
	default:
		return storeErr("create booking", err)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrSlotNotFound):
		return "slot_not_found"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrDuplicateBooking):
		return "duplicate"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
