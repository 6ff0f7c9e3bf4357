package handlers

import (
	"context"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/service"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Сервисы, которые вызывают обработчики. Реализуются пакетом service

type AuthService interface {
	RegisterCustomer(ctx context.Context, reg service.Registration) (*model.User, error)
	RegisterProvider(ctx context.Context, reg service.Registration, pr service.ProviderRegistration) (*model.User, *model.Provider, error)
	Login(ctx context.Context, username, password string, role model.Role) (string, *model.User, error)
	ParseToken(token string) (model.Actor, error)
}

type AvailabilityService interface {
	AddSlot(ctx context.Context, actor model.Actor, start, end time.Time) (*model.TimeSlot, error)
	ListSlots(ctx context.Context, providerID int64) ([]*model.TimeSlot, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, actor model.Actor, slotID int64, address *string) (*model.Booking, error)
	CreateBookingAt(ctx context.Context, actor model.Actor, providerID int64, serviceDate time.Time, address *string) (*model.Booking, error)
	CancelBooking(ctx context.Context, actor model.Actor, bookingID int64) error
	ConfirmBooking(ctx context.Context, actor model.Actor, bookingID int64) error
	CompleteBooking(ctx context.Context, actor model.Actor, bookingID int64) error
	ListBookingsForCustomer(ctx context.Context, actor model.Actor) ([]*model.Booking, error)
	ListBookingsForProvider(ctx context.Context, actor model.Actor) ([]*model.Booking, error)
}

type MatchingService interface {
	FindAvailableProviders(ctx context.Context, serviceType string, at time.Time) ([]*model.ProviderSummary, error)
	FindOpenSlots(ctx context.Context, serviceType string, date time.Time, city string) ([]*model.SlotWithProvider, error)
	GetProviderDetail(ctx context.Context, providerID int64) (*model.ProviderDetail, error)
}

type ProviderService interface {
	GetProfile(ctx context.Context, actor model.Actor) (*model.Provider, error)
	UpdateProfile(ctx context.Context, actor model.Actor, upd model.ProfileUpdate) (*model.Provider, error)
	ListReviews(ctx context.Context, actor model.Actor) ([]*model.Review, error)
}

type ReviewService interface {
	CreateReview(ctx context.Context, actor model.Actor, bookingID int64, rating int, comment string) (*model.Review, error)
}

// Pinger проверяет доступность базы для /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers содержит все зависимости HTTP обработчиков
type Handlers struct {
	auth         AuthService
	availability AvailabilityService
	bookings     BookingService
	matching     MatchingService
	providers    ProviderService
	reviews      ReviewService
	db           Pinger
	location     *time.Location
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewHandlers создаёт обработчики. location задаёт часовой пояс для дат без смещения
func NewHandlers(
	auth AuthService,
	availability AvailabilityService,
	bookings BookingService,
	matching MatchingService,
	providers ProviderService,
	reviews ReviewService,
	db Pinger,
	location *time.Location,
	logger *zap.Logger,
) *Handlers {
	if location == nil {
		location = time.UTC
	}
	return &Handlers{
		auth:         auth,
		availability: availability,
		bookings:     bookings,
		matching:     matching,
		providers:    providers,
		reviews:      reviews,
		db:           db,
		location:     location,
		validate:     newValidator(),
		logger:       logger,
	}
}
