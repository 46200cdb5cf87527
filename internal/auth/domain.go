package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	IsSuperuser  bool       `json:"is_superuser"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewUser is the input of the create-user command.
type NewUser struct {
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name" validate:"max=150"`
	Password  string `json:"password" validate:"required,min=8"`
	Superuser bool   `json:"superuser"`
}
