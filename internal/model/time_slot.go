package model

import "time"

type TimeSlot struct {
	ID          int64     `json:"id"`
	ProviderID  int64     `json:"provider_id"`
	Start       time.Time `json:"slot_start"`
	End         time.Time `json:"slot_end"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}

// SlotWithProvider свободный слот вместе с данными исполнителя
type SlotWithProvider struct {
	SlotID      int64     `json:"slot_id"`
	Start       time.Time `json:"slot_start"`
	End         time.Time `json:"slot_end"`
	ProviderID  int64     `json:"provider_id"`
	FullName    string    `json:"full_name"`
	ServiceType string    `json:"service_type"`
	Experience  int       `json:"experience"`
	Description string    `json:"description"`
	Rating      float64   `json:"rating"`
}

// SlotFilter отбирает свободные слоты с началом в полуоткрытом интервале [From, To)
type SlotFilter struct {
	ServiceType string
	From        time.Time
	To          time.Time
	LocationID  *int64
}
