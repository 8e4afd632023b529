package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationToken is a single-use account activation credential. A token
// is redeemable only while ActivatedAt is nil and it is younger than the
// redemption window.
type VerificationToken struct {
	Token       string     `json:"token"`
	UserID      uuid.UUID  `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}
