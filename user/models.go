// Package user defines marketplace accounts, their roles, and password
// handling.
package user

import (
	"strings"

	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/types"
)

// Role is the single capability tag carried by a user.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// IsStaff reports whether r may moderate leads.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// IsSuperadmin reports whether r may manage users and credits.
func (r Role) IsSuperadmin() bool {
	return r == RoleSuperadmin
}

// User is an account. Credits is a denormalized balance; it changes only
// together with an appended credit transaction.
type User struct {
	types.Entity
	ID           id.UserID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Credits      int64     `json:"credits"`
}

// Ref returns the public identity of u.
func (u *User) Ref() *Ref {
	if u == nil {
		return nil
	}
	return &Ref{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Ref is the identity of a user as joined into listings.
type Ref struct {
	ID    id.UserID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// NormalizeEmail lowercases and trims an email address. Emails are stored
// and looked up in normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
