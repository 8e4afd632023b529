/**
 * @description
 * This file defines the ledger records and transfer DTOs for the
 * ledger-service. A Transaction row is the sole source of truth for transfer
 * history; it is written once, in the same database transaction as the two
 * balance mutations it records, and never mutated afterwards.
 *
 * @notes
 * - Amounts are `int64` in the smallest currency unit (cents).
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is an immutable record of a completed transfer between two
// accounts. Maps directly to the `transactions` table.
type Transaction struct {
	ID         uuid.UUID `json:"id"`
	Amount     int64     `json:"amount"` // in cents
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TransferRequest is the DTO for incoming transfer API requests. The
// recipient is addressed by their unique email.
type TransferRequest struct {
	Sender    uuid.UUID `json:"sender"`
	Recipient string    `json:"recipient"`
	Amount    int64     `json:"amount"` // in cents
}

// TransferParty is the counterparty summary attached to each history row.
type TransferParty struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TransferView is one row of a user's transfer history, annotated with the
// direction relative to the requesting identity.
type TransferView struct {
	ID        uuid.UUID     `json:"id"`
	Amount    int64         `json:"amount"`
	Timestamp time.Time     `json:"timestamp"`
	Type      string        `json:"type"`   // "sent" or "received"
	Status    string        `json:"status"` // always "completed" for persisted rows
	Party     TransferParty `json:"party"`
}
