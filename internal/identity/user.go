// Package identity owns users, credentials, and the bearer tokens the
// rest of the API trusts. Workflows receive an explicit Capability
// rather than inspecting the transport request.
package identity

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Capability is the (callerId, callerRole) pair passed into every
// workflow call that needs authorization.
type Capability struct {
	UserID uuid.UUID
	Role   Role
}

func (c Capability) Admin() bool {
	return c.Role == RoleAdmin
}
