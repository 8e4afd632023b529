package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreditCard is a payment instrument owned by exactly one user. The number
// is 16 digits (15 Luhn-payload digits plus one check digit) and globally
// unique across all cards ever issued.
type CreditCard struct {
	ID             uuid.UUID `json:"id"`
	Number         string    `json:"number"`
	Holder         string    `json:"holder"`
	CVV            string    `json:"cvv"`
	ExpirationDate time.Time `json:"expiration_date"`
	IsBlocked      bool      `json:"is_blocked"`
	OwnerID        uuid.UUID `json:"owner_id"`
	CreatedAt      time.Time `json:"created_at"`
}
