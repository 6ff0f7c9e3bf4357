package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/Freeeeeet/homeconnect/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

const bookingColumns = `b.id, b.user_id, b.provider_id, b.slot_id, b.service_date, b.status, b.service_address, b.created_at, b.updated_at`

func scanBooking(row pgx.Row, extra ...any) (*model.Booking, error) {
	var booking model.Booking
	dest := []any{
		&booking.ID,
		&booking.CustomerID,
		&booking.ProviderID,
		&booking.SlotID,
		&booking.ServiceDate,
		&booking.Status,
		&booking.ServiceAddress,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &booking, nil
}

// Create создаёт новое бронирование. Уникальные индексы по активным броням
// превращаются в ErrDuplicateBooking и ErrSlotTaken
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (user_id, provider_id, slot_id, service_date, status, service_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		booking.CustomerID,
		booking.ProviderID,
		booking.SlotID,
		booking.ServiceDate,
		booking.Status,
		booking.ServiceAddress,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		if name, ok := base.UniqueViolation(err); ok {
			switch name {
			case constraintActiveBooking:
				return ErrDuplicateBooking
			case constraintActiveSlot:
				return ErrSlotTaken
			}
		}
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`

	booking, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// ExistsActive проверяет наличие неотменённой брони клиента у исполнителя на это время
func (r *BookingRepository) ExistsActive(ctx context.Context, customerID, providerID int64, serviceDate time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE user_id = $1 AND provider_id = $2 AND service_date = $3 AND status <> 'cancelled'
		)
	`

	var exists bool
	if err := r.QueryRow(ctx, query, customerID, providerID, serviceDate).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active booking: %w", err)
	}

	return exists, nil
}

// ExistsActiveAt проверяет, есть ли у исполнителя неотменённая бронь ровно на момент at
func (r *BookingRepository) ExistsActiveAt(ctx context.Context, providerID int64, at time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE provider_id = $1 AND service_date = $2 AND status <> 'cancelled'
		)
	`

	var exists bool
	if err := r.QueryRow(ctx, query, providerID, at).Scan(&exists); err != nil {
		return false, fmt.Errorf("check provider booking: %w", err)
	}

	return exists, nil
}

// Transition меняет статус брони, только если текущий статус входит в from.
// Возвращает false, если бронь не найдена или её статус не подходит
func (r *BookingRepository) Transition(ctx context.Context, id int64, to model.BookingStatus, from []model.BookingStatus) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)
	`

	affected, err := r.ExecAffected(ctx, query, to, id, statusStrings(from))
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}

	return affected == 1, nil
}

// ListByCustomer получает брони клиента, новые даты первыми
func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `, p.service_type, u.full_name
		FROM bookings b
		JOIN providers p ON p.id = b.provider_id
		JOIN users u ON u.id = p.user_id
		WHERE b.user_id = $1
		ORDER BY b.service_date DESC, b.id DESC
	`

	rows, err := r.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("get bookings by customer: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		var serviceType, providerName string
		booking, err := scanBooking(rows, &serviceType, &providerName)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		booking.ServiceType = serviceType
		booking.ProviderName = providerName
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}

// ListByProvider получает брони исполнителя с контактами клиентов, новые даты первыми
func (r *BookingRepository) ListByProvider(ctx context.Context, providerID int64) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `, u.full_name, u.phone, u.email
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.provider_id = $1
		ORDER BY b.service_date DESC, b.id DESC
	`

	rows, err := r.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("get bookings by provider: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		var name, phone, email string
		booking, err := scanBooking(rows, &name, &phone, &email)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		booking.CustomerName = name
		booking.Phone = phone
		booking.Email = email
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}
