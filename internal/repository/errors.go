package repository

import "errors"

// Нарушения уникальных ограничений, которые сервисы переводят в доменные ошибки
var (
	ErrUsernameTaken    = errors.New("username already exists")
	ErrDuplicateBooking = errors.New("active booking already exists")
	ErrSlotTaken        = errors.New("slot already has an active booking")
	ErrReviewExists     = errors.New("booking already reviewed")
)

const (
	constraintUsername         = "users_username_lower"
	constraintActiveBooking    = "bookings_active_customer_provider_date"
	constraintActiveSlot       = "bookings_active_slot"
	constraintReviewPerBooking = "reviews_booking_id_key"
)
