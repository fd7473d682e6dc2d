package models

import "time"

// Роли пользователей
const (
	RoleUser   = "user"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User представляет пользователя
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	PassHash  []byte    `json:"-"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidRole проверяет, что роль входит в число поддерживаемых.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleSeller, RoleAdmin:
		return true
	}
	return false
}
