package auth

import (
	"time"

	"github.com/cleanops/cleanops/internal/rbac"
)

// Account is a stored login together with its role.
type Account struct {
	ID           int64
	Email        string
	Name         string
	Role         rbac.Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity returns the authorization view of the account. The role is
// passed through unchanged; an unrecognised role is denied downstream.
func (a *Account) Identity() *rbac.User {
	if a == nil {
		return nil
	}
	return &rbac.User{ID: a.ID, Name: a.Name, Role: a.Role, Email: a.Email}
}
