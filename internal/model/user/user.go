package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("username already taken")
)

// User is an account that can chat with Autamas. Staff users may
// mass-produce personas.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	IsStaff      bool      `json:"isStaff"`
	CreatedAt    time.Time `json:"createdAt"`
	PasswordHash string    `json:"-"`
}

// Token is an opaque API key bound to one user.
type Token struct {
	Key       string    `json:"token"`
	UserID    string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
