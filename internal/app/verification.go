/**
 * @description
 * Single-use account activation tokens. Issuing stores an opaque
 * high-entropy token and publishes an event for the mailer (email delivery
 * itself is an external collaborator); redeeming atomically marks the token
 * used and the owning user verified.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenbank/ledger-service/internal/domain"
	"github.com/lumenbank/ledger-service/internal/store"
)

// TokenRedemptionWindow is how long an unredeemed token stays valid.
const TokenRedemptionWindow = 24 * time.Hour

var (
	ErrEmailRequired = errors.New("email is required")
	ErrEmailInvalid  = errors.New("email is invalid")
	ErrRateLimited   = errors.New("too many requests")
)

// IssueVerificationToken creates an activation token for the user with the
// given email and returns the activation URL. The URL is also published as
// a `user.verification.requested` event for the mailer.
func (s *Service) IssueVerificationToken(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmailRequired
	}
	if !strings.Contains(email, "@") {
		return "", ErrEmailInvalid
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "verify_email", email)
		if err != nil {
			log.Printf("level=warn component=verification msg=\"rate limiter unavailable\" err=%v", err)
		} else if !allowed {
			return "", ErrRateLimited
		}
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	token := &domain.VerificationToken{
		Token:  newTokenString(),
		UserID: user.ID,
	}
	if err := s.repo.CreateVerificationToken(ctx, token); err != nil {
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}

	verificationURL := fmt.Sprintf("%s/activate/%s", s.activationBaseURL, token.Token)
	if s.events != nil {
		payload := map[string]interface{}{
			"user_id":          user.ID,
			"email":            user.Email,
			"verification_url": verificationURL,
		}
		if err := s.events.Publish(ctx, LedgerEventExchange, VerificationEventKey, payload); err != nil {
			log.Printf("level=warn component=verification msg=\"verification event publish failed\" user_id=%s err=%v", user.ID, err)
		}
	}
	return verificationURL, nil
}

// RedeemVerificationToken activates the account owning the token. A token
// that is unknown, already used, or older than the redemption window fails
// with store.ErrTokenInvalid; a successful redemption is never reverted.
func (s *Service) RedeemVerificationToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return store.ErrTokenInvalid
	}
	userID, err := s.repo.RedeemVerificationToken(ctx, token, TokenRedemptionWindow)
	if err != nil {
		return err
	}
	log.Printf("level=info component=verification msg=\"account activated\" user_id=%s", userID)
	return nil
}

// PurgeAll wipes every table, children first, and reports per-table counts.
// Requires the administer capability.
func (s *Service) PurgeAll(ctx context.Context, caller *domain.User) (*store.PurgeResult, error) {
	if caller == nil || !caller.Role.Can(domain.CapabilityAdminister) {
		return nil, ErrForbidden
	}
	return s.repo.PurgeAll(ctx)
}

// newTokenString builds an opaque 64-hex-character token from two UUIDs,
// enough entropy that collisions are not a practical concern.
func newTokenString() string {
	raw := uuid.NewString() + uuid.NewString()
	return strings.ReplaceAll(raw, "-", "")
}
