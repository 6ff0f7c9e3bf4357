package model

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Valid проверяет, что роль известна
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Phone        string    `json:"phone,omitempty"`
	Email        string    `json:"email,omitempty"`
	Address      string    `json:"address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor проверенная личность вызывающего. Передаётся явно в каждую операцию сервисов
type Actor struct {
	UserID int64
	Role   Role
}

func (a Actor) IsCustomer() bool { return a.Role == RoleCustomer }
func (a Actor) IsProvider() bool { return a.Role == RoleProvider }
