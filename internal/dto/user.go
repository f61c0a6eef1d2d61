package dto

import (
	"time"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
)

// User is the client-facing representation of an account. The password hash
// and login bookkeeping are never sent.
type User struct {
	ID        string    `json:"id" doc:"User ID"`
	Email     string    `json:"email" doc:"Email address"`
	FirstName string    `json:"first_name" doc:"First name"`
	LastName  string    `json:"last_name" doc:"Last name"`
	CreatedAt time.Time `json:"created_at" doc:"Account creation time"`
}

// NewUser serializes a user.
func NewUser(u *domain.User) User {
	return User{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
	}
}
