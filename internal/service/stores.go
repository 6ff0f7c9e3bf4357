package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
)

// Интерфейсы хранилищ, которые реализует пакет repository.
// Get* возвращают (nil, nil), если запись не найдена.

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateContacts(ctx context.Context, user *model.User) error
}

type LocationStore interface {
	GetByCity(ctx context.Context, city string) (*model.Location, error)
	Ensure(ctx context.Context, city string) (*model.Location, error)
}

type ProviderStore interface {
	Create(ctx context.Context, provider *model.Provider) error
	GetByID(ctx context.Context, id int64) (*model.Provider, error)
	GetByUserID(ctx context.Context, userID int64) (*model.Provider, error)
	Update(ctx context.Context, provider *model.Provider) error
	Lock(ctx context.Context, providerID int64) error
	ListAvailableAt(ctx context.Context, serviceType string, at time.Time, blocking []model.BookingStatus) ([]*model.ProviderSummary, error)
	RecomputeRating(ctx context.Context, providerID int64) (float64, error)
}

type SlotStore interface {
	Create(ctx context.Context, slot *model.TimeSlot) error
	GetByID(ctx context.Context, id int64) (*model.TimeSlot, error)
	FindByStart(ctx context.Context, providerID int64, start time.Time) (*model.TimeSlot, error)
	ListByProvider(ctx context.Context, providerID int64) ([]*model.TimeSlot, error)
	ListOpen(ctx context.Context, filter model.SlotFilter) ([]*model.SlotWithProvider, error)
	Reserve(ctx context.Context, slotID int64) (bool, error)
	Release(ctx context.Context, slotID int64) error
	ReleaseByStart(ctx context.Context, providerID int64, start time.Time) (bool, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	ExistsActive(ctx context.Context, customerID, providerID int64, serviceDate time.Time) (bool, error)
	ExistsActiveAt(ctx context.Context, providerID int64, at time.Time) (bool, error)
	Transition(ctx context.Context, id int64, to model.BookingStatus, from []model.BookingStatus) (bool, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]*model.Booking, error)
	ListByProvider(ctx context.Context, providerID int64) ([]*model.Booking, error)
}

type ReviewStore interface {
	Create(ctx context.Context, review *model.Review) error
	ListByProvider(ctx context.Context, providerID int64) ([]*model.Review, error)
}

// Notifier получает события о бронированиях. Ошибки доставки не влияют на операцию
type Notifier interface {
	BookingCreated(ctx context.Context, booking *model.Booking)
	BookingConfirmed(ctx context.Context, booking *model.Booking)
	BookingCancelled(ctx context.Context, booking *model.Booking)
}

// Metrics счётчики доменных событий
type Metrics interface {
	BookingCreated()
	BookingRejected(reason string)
	BookingTransition(status model.BookingStatus)
	SlotAdded()
}
