package models

import "time"

// Role values
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents a user account
type User struct {
	ID           int64     `json:"id,string"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
