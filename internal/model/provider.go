package model

import "time"

type Provider struct {
	ID           int64   `json:"id"`
	UserID       int64   `json:"user_id"`
	ServiceType  string  `json:"service_type"`
	Experience   int     `json:"experience"` // в годах
	Description  string  `json:"description"`
	CertFilePath *string `json:"cert_file_path,omitempty"`
	Rating       float64 `json:"rating"`
	LocationID   *int64  `json:"location_id,omitempty"`

	// Поля из JOIN с users/locations
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
}

// ProviderSummary строка результата поиска свободных исполнителей
type ProviderSummary struct {
	ProviderID  int64   `json:"provider_id"`
	FullName    string  `json:"full_name"`
	ServiceType string  `json:"service_type"`
	Experience  int     `json:"experience"`
	Description string  `json:"description"`
	Rating      float64 `json:"rating"`
}

// ProviderDetail профиль исполнителя вместе с отзывами
type ProviderDetail struct {
	Provider *Provider `json:"provider"`
	Reviews  []*Review `json:"reviews"`
}

// ProfileUpdate поля профиля, которые исполнитель может менять сам
type ProfileUpdate struct {
	FullName     string
	Phone        string
	Email        string
	Address      string
	ServiceType  string
	Experience   int
	Description  string
	CertFilePath *string
	City         string
}

type Location struct {
	ID        int64     `json:"id"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"created_at"`
}
