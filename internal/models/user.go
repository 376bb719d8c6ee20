package models

import (
	"time"

	"github.com/google/uuid"
)

// Role determines what a user may do: clients apply for accounts and
// cards and move their own money, bankers decide applications and
// make deposits.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleBanker Role = "BANKER"
)

// User represents a user in the system
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Not serialized
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
