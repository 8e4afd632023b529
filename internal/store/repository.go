/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the ledger-service performs over its four tables (users,
 * credit_cards, transactions, verification_tokens). The application layer is
 * written against this interface so business logic can be tested against
 * in-memory fakes while production runs on PostgreSQL.
 *
 * Multi-row mutations (PerformTransfer, RedeemVerificationToken, PurgeAll)
 * are exposed as single methods so the implementation can wrap them in one
 * database transaction; callers never see a partially-applied write.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lumenbank/ledger-service/internal/domain"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrCardNumberTaken   = errors.New("card number already issued")
	ErrTokenInvalid      = errors.New("invalid or expired token")
)

// ProfileUpdate carries the fields written by the profile-completion flow.
// The DataSubmitted flag is always set alongside them.
type ProfileUpdate struct {
	Name        string
	Email       string
	PhoneNumber string
	Location    string
	Gender      string
}

// PurgeResult reports per-table deletion counts from a bulk purge.
type PurgeResult struct {
	Transactions       int64 `json:"transactions"`
	CreditCards        int64 `json:"credit_cards"`
	VerificationTokens int64 `json:"verification_tokens"`
	Users              int64 `json:"users"`
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User methods
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUserProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) error
	SetUserBalance(ctx context.Context, email string, balance int64) error
	SetUserRole(ctx context.Context, email string, role domain.Role) error
	ListUsers(ctx context.Context) ([]domain.User, error)

	// Credit card methods
	CreateCard(ctx context.Context, card *domain.CreditCard) error
	CountCardsByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
	ListCards(ctx context.Context) ([]domain.CreditCard, error)

	// Ledger methods. PerformTransfer executes the debit, the credit and the
	// transaction insert as one atomic unit; the balance guard is part of the
	// debit statement itself, not a separate read.
	PerformTransfer(ctx context.Context, senderID, receiverID uuid.UUID, amount int64) (*domain.Transaction, error)
	ListTransfersForUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.TransferView, error)
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)

	// Verification token methods. RedeemVerificationToken atomically marks
	// the token used and the owning user verified; it returns the owner's id.
	CreateVerificationToken(ctx context.Context, token *domain.VerificationToken) error
	RedeemVerificationToken(ctx context.Context, token string, maxAge time.Duration) (uuid.UUID, error)

	// PurgeAll deletes every row of the four tables, children first, in one
	// transaction, and reports per-table counts.
	PurgeAll(ctx context.Context) (*PurgeResult, error)
}
