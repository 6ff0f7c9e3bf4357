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

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

const slotColumns = `id, provider_id, slot_start, slot_end, is_available, created_at`

func scanSlot(row pgx.Row) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	err := row.Scan(
		&slot.ID,
		&slot.ProviderID,
		&slot.Start,
		&slot.End,
		&slot.IsAvailable,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create создаёт новый свободный слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	query := `
		INSERT INTO provider_time_slots (provider_id, slot_start, slot_end)
		VALUES ($1, $2, $3)
		RETURNING id, is_available, created_at
	`

	err := r.QueryRow(ctx, query, slot.ProviderID, slot.Start, slot.End).
		Scan(&slot.ID, &slot.IsAvailable, &slot.CreatedAt)
	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM provider_time_slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// FindByStart ищет слот исполнителя, начинающийся ровно в start. Свободные слоты в приоритете
func (r *SlotRepository) FindByStart(ctx context.Context, providerID int64, start time.Time) (*model.TimeSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM provider_time_slots
		WHERE provider_id = $1 AND slot_start = $2
		ORDER BY is_available DESC, id
		LIMIT 1
	`

	slot, err := scanSlot(r.QueryRow(ctx, query, providerID, start))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find slot by start: %w", err)
	}

	return slot, nil
}

// ListByProvider получает все слоты исполнителя по возрастанию времени начала
func (r *SlotRepository) ListByProvider(ctx context.Context, providerID int64) ([]*model.TimeSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM provider_time_slots
		WHERE provider_id = $1
		ORDER BY slot_start, id
	`

	rows, err := r.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("get slots by provider: %w", err)
	}
	defer rows.Close()

	var slots []*model.TimeSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}

// ListOpen получает свободные слоты с данными исполнителя по фильтру
func (r *SlotRepository) ListOpen(ctx context.Context, filter model.SlotFilter) ([]*model.SlotWithProvider, error) {
	query := `
		SELECT ts.id, ts.slot_start, ts.slot_end, p.id, u.full_name, p.service_type,
		       p.experience, p.description, p.rating::float8
		FROM provider_time_slots ts
		JOIN providers p ON p.id = ts.provider_id
		JOIN users u ON u.id = p.user_id
		WHERE ts.is_available
		  AND p.service_type = $1
		  AND ts.slot_start >= $2
		  AND ts.slot_start < $3
		  AND ($4::bigint IS NULL OR p.location_id = $4)
		ORDER BY ts.slot_start, ts.id
	`

	rows, err := r.Query(ctx, query, filter.ServiceType, filter.From, filter.To, filter.LocationID)
	if err != nil {
		return nil, fmt.Errorf("get open slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.SlotWithProvider
	for rows.Next() {
		var s model.SlotWithProvider
		err := rows.Scan(
			&s.SlotID,
			&s.Start,
			&s.End,
			&s.ProviderID,
			&s.FullName,
			&s.ServiceType,
			&s.Experience,
			&s.Description,
			&s.Rating,
		)
		if err != nil {
			return nil, fmt.Errorf("scan open slot: %w", err)
		}
		slots = append(slots, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open slots: %w", err)
	}

	return slots, nil
}

// Reserve атомарно занимает слот. Возвращает false, если слот уже занят или не существует
func (r *SlotRepository) Reserve(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE provider_time_slots
		SET is_available = FALSE
		WHERE id = $1 AND is_available
	`

	affected, err := r.ExecAffected(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}

	return affected == 1, nil
}

// Release освобождает слот. Повторное освобождение ничего не меняет
func (r *SlotRepository) Release(ctx context.Context, slotID int64) error {
	query := `
		UPDATE provider_time_slots
		SET is_available = TRUE
		WHERE id = $1 AND NOT is_available
	`

	if _, err := r.ExecAffected(ctx, query, slotID); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}

	return nil
}

// ReleaseByStart освобождает занятый слот исполнителя, начинающийся в start.
// Используется для броней без прямой ссылки на слот. Слот, на который
// ссылается активная бронь, не трогается
func (r *SlotRepository) ReleaseByStart(ctx context.Context, providerID int64, start time.Time) (bool, error) {
	query := `
		UPDATE provider_time_slots
		SET is_available = TRUE
		WHERE id = (
			SELECT ts.id FROM provider_time_slots ts
			WHERE ts.provider_id = $1 AND ts.slot_start = $2 AND NOT ts.is_available
			  AND NOT EXISTS (
				SELECT 1 FROM bookings b
				WHERE b.slot_id = ts.id AND b.status <> 'cancelled'
			  )
			ORDER BY ts.id
			LIMIT 1
		)
	`

	affected, err := r.ExecAffected(ctx, query, providerID, start)
	if err != nil {
		return false, fmt.Errorf("release slot by start: %w", err)
	}

	return affected == 1, nil
}
