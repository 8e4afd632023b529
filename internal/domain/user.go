/**
 * @description
 * This file defines the User model and the role/capability system for the
 * ledger-service. Roles are a closed set; every privileged operation checks a
 * capability through Role.Can rather than comparing raw strings in handlers.
 *
 * @notes
 * - Balances are stored as `int64` in the smallest currency unit (cents) to
 *   avoid floating-point inaccuracies with financial data.
 * - PasswordHash is empty for users created from an external identity
 *   provider assertion; those users never authenticate with a password here.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of capability levels a user can hold.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleTester Role = "tester"
)

// Capability names a privileged action that roles may or may not perform.
type Capability string

const (
	// CapabilityAdminister covers the admin terminal, bulk purge, balance
	// overwrites and role grants.
	CapabilityAdminister Capability = "administer"
)

// Can reports whether the role is allowed to perform the given action.
// RoleTester is a secondary capability kept for the QA terminal.
func (r Role) Can(action Capability) bool {
	switch action {
	case CapabilityAdminister:
		return r == RoleAdmin || r == RoleTester
	}
	return false
}

// Valid reports whether the role belongs to the closed role set.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin || r == RoleTester
}

// User represents an account holder: identity plus financial profile.
// This struct maps directly to the `users` table.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	Provider      string    `json:"provider"`
	Balance       int64     `json:"balance"` // in cents
	IsVerified    bool      `json:"is_verified"`
	IsBanned      bool      `json:"is_banned"`
	DataSubmitted bool      `json:"data_submitted"`
	Gender        *string   `json:"gender,omitempty"`
	Location      *string   `json:"location,omitempty"`
	PhoneNumber   *string   `json:"phone_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProfileForm is the DTO for the profile-completion endpoint.
type ProfileForm struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Location    string `json:"location"`
	Gender      string `json:"gender"`
}
