package model

import "time"

type Review struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"booking_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`

	CustomerName string `json:"customer_name,omitempty"`
}

const (
	MinReviewRating = 1
	MaxReviewRating = 5
)
