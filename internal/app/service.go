/**
 * @description
 * This file contains the core business logic for the ledger-service. The
 * `Service` struct orchestrates account registration, atomic balance
 * transfers and profile completion, coordinating between the database
 * repository and the message broker.
 *
 * Key features:
 * - Validation and authorization run before any store mutation; the store
 *   transaction is the only place money moves.
 * - Completed transfers publish a `ledger.transfer.completed` event for
 *   asynchronous consumers; publishing is best-effort and never fails the
 *   transfer that already committed.
 *
 * @dependencies
 * - github.com/google/uuid: For UUID generation.
 * - golang.org/x/crypto/bcrypt: Password hashing for explicit registration.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumenbank/ledger-service/internal/domain"
	"github.com/lumenbank/ledger-service/internal/store"
	"github.com/lumenbank/ledger-service/pkg/rabbitmq"
)

const (
	LedgerEventExchange  = "ledger.events"
	TransferCompletedKey = "ledger.transfer.completed"
	VerificationEventKey = "user.verification.requested"
	defaultHistoryLimit  = 10
	bcryptHashCost       = 10
)

var (
	ErrInvalidAmount      = errors.New("transfer amount must be greater than zero")
	ErrMissingRecipient   = errors.New("recipient is required")
	ErrSelfTransfer       = errors.New("cannot transfer to your own account")
	ErrMissingCredentials = errors.New("email and password are required")
)

// Service provides the core business logic for the ledger.
type Service struct {
	repo    store.Repository
	events  rabbitmq.Publisher
	limiter *RateLimiter

	activationBaseURL string
}

// NewService creates a new ledger service instance. The publisher and
// limiter may be nil; the corresponding features degrade to no-ops.
func NewService(repo store.Repository, events rabbitmq.Publisher, limiter *RateLimiter, activationBaseURL string) *Service {
	return &Service{
		repo:              repo,
		events:            events,
		limiter:           limiter,
		activationBaseURL: strings.TrimRight(activationBaseURL, "/"),
	}
}

// ResolveIdentity loads the caller's row and derives their composite access
// status. An unknown id resolves to an absent session rather than an error
// so handlers can answer 401 uniformly.
func (s *Service) ResolveIdentity(ctx context.Context, userID uuid.UUID) (*domain.User, domain.AccountStatus, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.ResolveAccountStatus(domain.IdentitySnapshot{Resolved: true}), nil
		}
		return nil, domain.StatusLoading, err
	}
	return user, domain.ResolveAccountStatus(domain.SnapshotFor(user)), nil
}

// Transfer moves amount cents from the sender to the recipient addressed by
// email and records the transaction. The debit, the credit and the record
// insert commit together or not at all.
func (s *Service) Transfer(ctx context.Context, senderID uuid.UUID, recipientEmail string, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(recipientEmail) == "" {
		return nil, ErrMissingRecipient
	}

	sender, err := s.repo.FindUserByID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to find sender: %w", err)
	}
	recipient, err := s.repo.FindUserByEmail(ctx, recipientEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to find recipient: %w", err)
	}
	if recipient.ID == sender.ID {
		return nil, ErrSelfTransfer
	}
	if sender.Balance < amount {
		// Early answer for the common case; the debit statement re-validates
		// inside the transaction, so this is not the authoritative check.
		return nil, store.ErrInsufficientFunds
	}

	record, err := s.repo.PerformTransfer(ctx, sender.ID, recipient.ID, amount)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		payload := map[string]interface{}{
			"transaction_id": record.ID,
			"sender_id":      record.SenderID,
			"receiver_id":    record.ReceiverID,
			"amount":         record.Amount,
		}
		if err := s.events.Publish(ctx, LedgerEventExchange, TransferCompletedKey, payload); err != nil {
			log.Printf("level=warn component=ledger msg=\"transfer event publish failed\" transaction_id=%s err=%v", record.ID, err)
		}
	}
	return record, nil
}

// RecentTransfers returns the caller's transfer history, newest first.
func (s *Service) RecentTransfers(ctx context.Context, userID uuid.UUID, limit int) ([]domain.TransferView, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.repo.ListTransfersForUser(ctx, userID, limit)
}

// Register creates a user from an explicit email/password registration.
func (s *Service) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptHashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         anonymousName(),
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Provider:     "email",
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AssertExternalIdentity records a sign-in from the external identity
// provider. The first assertion for an email creates the account with an
// empty password hash; later assertions are no-ops.
func (s *Service) AssertExternalIdentity(ctx context.Context, email, name, provider string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrMissingCredentials
	}

	existing, err := s.repo.FindUserByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		name = anonymousName()
	}
	if strings.TrimSpace(provider) == "" {
		provider = "email"
	}
	user := &domain.User{
		ID:       uuid.New(),
		Email:    email,
		Name:     name,
		Role:     domain.RoleUser,
		Provider: provider,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		// Concurrent first sign-in; the row exists now.
		if errors.Is(err, store.ErrEmailTaken) {
			return s.repo.FindUserByEmail(ctx, email)
		}
		return nil, err
	}
	log.Printf("level=info component=ledger msg=\"user created from identity assertion\" user_id=%s provider=%s", user.ID, provider)
	return user, nil
}

var (
	ErrProfileFieldsMissing = errors.New("required profile fields are missing")
	ErrInvalidGender        = errors.New("invalid gender value")
	ErrInvalidProfileState  = errors.New("profile can only be completed from the incomplete state")
)

// CompleteProfile validates and writes the profile-completion form for the
// caller, flipping the data_submitted flag.
func (s *Service) CompleteProfile(ctx context.Context, userID uuid.UUID, form domain.ProfileForm, status domain.AccountStatus) error {
	if status != domain.StatusIncomplete {
		return ErrInvalidProfileState
	}
	if form.Name == "" || form.Email == "" || form.PhoneNumber == "" || form.Location == "" || form.Gender == "" {
		return ErrProfileFieldsMissing
	}
	if form.Gender != "Male" && form.Gender != "Female" {
		return ErrInvalidGender
	}

	if _, err := s.repo.FindUserByID(ctx, userID); err != nil {
		return err
	}
	return s.repo.UpdateUserProfile(ctx, userID, store.ProfileUpdate{
		Name:        form.Name,
		Email:       form.Email,
		PhoneNumber: form.PhoneNumber,
		Location:    form.Location,
		Gender:      form.Gender,
	})
}

func anonymousName() string {
	return fmt.Sprintf("Unknown User%d", rand.Intn(1000))
}
