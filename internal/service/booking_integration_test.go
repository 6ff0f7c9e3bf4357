//go:build integration

package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/repository"
	"github.com/Freeeeeet/homeconnect/internal/repository/base"
	"github.com/Freeeeeet/homeconnect/internal/testinfra"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pgServices сервисы поверх настоящих репозиториев и TxManager
type pgServices struct {
	auth         *AuthService
	availability *AvailabilityService
	bookings     *BookingService
	matching     *MatchingService
	users        int
}

func newPGServices(pool *pgxpool.Pool) *pgServices {
	logger := zap.NewNop()
	metrics := newCountingMetrics()
	retry := ReadRetry{MaxRetries: 1, Base: time.Millisecond}

	tx := base.NewTxManager(pool)
	users := repository.NewUserRepository(pool)
	locations := repository.NewLocationRepository(pool)
	providers := repository.NewProviderRepository(pool)
	slots := repository.NewSlotRepository(pool)
	bookings := repository.NewBookingRepository(pool)
	reviews := repository.NewReviewRepository(pool)

	availability := NewAvailabilityService(tx, providers, slots, bookings, metrics, retry, logger)
	return &pgServices{
		auth:         NewAuthService(tx, users, providers, locations, AuthConfig{Secret: []byte("test-secret"), HashCost: 4}, logger),
		availability: availability,
		bookings:     NewBookingService(tx, providers, slots, bookings, availability, &recordingNotifier{}, metrics, retry, logger),
		matching:     NewMatchingService(providers, slots, locations, reviews, model.PolicyNonCancelled, time.UTC, retry, logger),
	}
}

func (s *pgServices) provider(t *testing.T) (model.Actor, *model.Provider) {
	t.Helper()
	s.users++
	user, provider, err := s.auth.RegisterProvider(context.Background(),
		Registration{FullName: "Provider", Username: fmt.Sprintf("provider%d", s.users), Password: "secret"},
		ProviderRegistration{ServiceType: "plumbing", Experience: 2})
	require.NoError(t, err)
	return model.Actor{UserID: user.ID, Role: model.RoleProvider}, provider
}

func (s *pgServices) customer(t *testing.T) model.Actor {
	t.Helper()
	s.users++
	user, err := s.auth.RegisterCustomer(context.Background(),
		Registration{FullName: "Customer", Username: fmt.Sprintf("customer%d", s.users), Password: "secret"})
	require.NoError(t, err)
	return model.Actor{UserID: user.ID, Role: model.RoleCustomer}
}

func TestBookingService_Postgres(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	pg, err := testinfra.StartPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	t.Run("concurrent customers get one slot", func(t *testing.T) {
		pg.Reset(t)
		s := newPGServices(pg.Pool)
		providerActor, _ := s.provider(t)
		slot, err := s.availability.AddSlot(ctx, providerActor, jan10, jan10.Add(time.Hour))
		require.NoError(t, err)

		const n = 16
		customers := make([]model.Actor, n)
		for i := range customers {
			customers[i] = s.customer(t)
		}

		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.bookings.CreateBooking(ctx, customers[i], slot.ID, nil)
			}(i)
		}
		wg.Wait()

		won := 0
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			assert.ErrorIs(t, err, ErrSlotUnavailable)
		}
		assert.Equal(t, 1, won)

		open, err := s.matching.FindOpenSlots(ctx, "plumbing", jan10, "")
		require.NoError(t, err)
		assert.Empty(t, open)
	})

	t.Run("concurrent duplicates by time", func(t *testing.T) {
		pg.Reset(t)
		s := newPGServices(pg.Pool)
		_, provider := s.provider(t)
		customer := s.customer(t)

		const n = 8
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.bookings.CreateBookingAt(ctx, customer, provider.ID, jan10, nil)
			}(i)
		}
		wg.Wait()

		won := 0
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			assert.ErrorIs(t, err, ErrDuplicateBooking)
		}
		assert.Equal(t, 1, won)

		list, err := s.bookings.ListBookingsForCustomer(ctx, customer)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("add slot racing booking by time", func(t *testing.T) {
		pg.Reset(t)
		s := newPGServices(pg.Pool)
		providerActor, provider := s.provider(t)
		customer := s.customer(t)

		for i := 0; i < 10; i++ {
			at := jan10.Add(time.Duration(i) * time.Hour)

			var (
				wg      sync.WaitGroup
				slot    *model.TimeSlot
				slotErr error
				booking *model.Booking
				bookErr error
			)
			wg.Add(2)
			go func() {
				defer wg.Done()
				slot, slotErr = s.availability.AddSlot(ctx, providerActor, at, at.Add(30*time.Minute))
			}()
			go func() {
				defer wg.Done()
				booking, bookErr = s.bookings.CreateBookingAt(ctx, customer, provider.ID, at, nil)
			}()
			wg.Wait()

			require.NoError(t, bookErr)
			if slotErr != nil {
				// бронь успела первой: слот на это время не создан
				assert.ErrorIs(t, slotErr, ErrValidation)
				assert.Nil(t, booking.SlotID)
				continue
			}
			// слот успел первым: бронь заняла его
			require.NotNil(t, booking.SlotID)
			assert.Equal(t, slot.ID, *booking.SlotID)
		}

		open, err := s.matching.FindOpenSlots(ctx, "plumbing", jan10, "")
		require.NoError(t, err)
		assert.Empty(t, open, "no slot may stay open at a booked time")
	})

	t.Run("cancel without slot link keeps other customer's slot", func(t *testing.T) {
		pg.Reset(t)
		s := newPGServices(pg.Pool)
		providerActor, provider := s.provider(t)
		alice := s.customer(t)
		bob := s.customer(t)

		first, err := s.bookings.CreateBookingAt(ctx, alice, provider.ID, jan10, nil)
		require.NoError(t, err)
		require.Nil(t, first.SlotID)

		_, err = s.availability.AddSlot(ctx, providerActor, jan10, jan10.Add(time.Hour))
		assert.ErrorIs(t, err, ErrValidation)

		require.NoError(t, s.bookings.CancelBooking(ctx, alice, first.ID))

		slot, err := s.availability.AddSlot(ctx, providerActor, jan10, jan10.Add(time.Hour))
		require.NoError(t, err)
		_, err = s.bookings.CreateBooking(ctx, bob, slot.ID, nil)
		require.NoError(t, err)

		open, err := s.matching.FindOpenSlots(ctx, "plumbing", jan10, "")
		require.NoError(t, err)
		assert.Empty(t, open)
	})
}
