package model

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // Ожидает подтверждения исполнителя
	BookingStatusConfirmed BookingStatus = "confirmed" // Подтверждено
	BookingStatusCompleted BookingStatus = "completed" // Завершено
	BookingStatusCancelled BookingStatus = "cancelled" // Отменено клиентом
)

// transitions для каждого целевого статуса перечисляет статусы, из которых в него можно перейти
var transitions = map[BookingStatus][]BookingStatus{
	BookingStatusConfirmed: {BookingStatusPending},
	BookingStatusCompleted: {BookingStatusConfirmed},
	BookingStatusCancelled: {BookingStatusPending, BookingStatusConfirmed},
}

// AllowedFrom возвращает статусы, из которых бронь может перейти в target
func AllowedFrom(target BookingStatus) []BookingStatus {
	return transitions[target]
}

// CanTransition проверяет, допустим ли переход from -> to
func (from BookingStatus) CanTransition(to BookingStatus) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что из статуса больше нет переходов
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

type Booking struct {
	ID             int64         `json:"id"`
	CustomerID     int64         `json:"customer_id"`
	ProviderID     int64         `json:"provider_id"`
	SlotID         *int64        `json:"slot_id,omitempty"`
	ServiceDate    time.Time     `json:"service_date"`
	Status         BookingStatus `json:"status"`
	ServiceAddress *string       `json:"service_address,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`

	// Дополнительные поля для отображения (не из таблицы bookings)
	ServiceType  string `json:"service_type,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
}

// AvailabilityPolicy определяет, какие брони делают исполнителя занятым в момент времени
type AvailabilityPolicy string

const (
	// PolicyNonCancelled занят при любой брони, кроме отменённой
	PolicyNonCancelled AvailabilityPolicy = "non_cancelled"
	// PolicyActive занят только при ожидающей или подтверждённой брони
	PolicyActive AvailabilityPolicy = "active"
	// PolicyAny занят при любой брони независимо от статуса
	PolicyAny AvailabilityPolicy = "any"
)

// BlockingStatuses возвращает статусы броней, которые занимают исполнителя
func (p AvailabilityPolicy) BlockingStatuses() []BookingStatus {
	switch p {
	case PolicyActive:
		return []BookingStatus{BookingStatusPending, BookingStatusConfirmed}
	case PolicyAny:
		return []BookingStatus{BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled}
	default:
		return []BookingStatus{BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted}
	}
}

// Valid проверяет, что политика известна
func (p AvailabilityPolicy) Valid() bool {
	switch p {
	case PolicyNonCancelled, PolicyActive, PolicyAny:
		return true
	}
	return false
}
