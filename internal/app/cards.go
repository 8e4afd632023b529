/**
 * @description
 * Card provisioning for the ledger-service. Generates checksum-valid,
 * globally-unique card numbers and inserts the card record, bounded to
 * three cards per owner.
 *
 * Number generation builds a 15-digit payload from a fixed issuer prefix
 * followed by random digits, then appends the mod-10 check digit.
 * Uniqueness is enforced by the store's
 * unique constraint: a collision surfaces as ErrCardNumberTaken and the
 * issuer retries with a fresh candidate, up to a small cap.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lumenbank/ledger-service/internal/domain"
	"github.com/lumenbank/ledger-service/internal/store"
)

const (
	// MaxCardsPerUser is the simultaneous card cap per account holder.
	MaxCardsPerUser = 3

	cardIssuerPrefix   = "5249"
	cardPayloadDigits  = 15
	cardIssueAttempts  = 5
	cardValidityPeriod = 365 * 24 * time.Hour
)

var (
	ErrNotCardOwner     = errors.New("cards can only be issued for the caller's own account")
	ErrCardLimitReached = fmt.Errorf("a user can hold at most %d credit cards", MaxCardsPerUser)
	ErrCardProvisioning = errors.New("could not provision a unique card number")
)

// IssueCard provisions a new credit card for the owner. The caller identity
// must equal the owner; the owner must hold fewer than MaxCardsPerUser cards.
func (s *Service) IssueCard(ctx context.Context, callerID, ownerID uuid.UUID) (*domain.CreditCard, error) {
	if callerID != ownerID || ownerID == uuid.Nil {
		return nil, ErrNotCardOwner
	}

	owner, err := s.repo.FindUserByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountCardsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count existing cards: %w", err)
	}
	if count >= MaxCardsPerUser {
		return nil, ErrCardLimitReached
	}

	for attempt := 1; attempt <= cardIssueAttempts; attempt++ {
		number := newCardNumber()
		// A candidate must re-validate under the checksum before it is persisted.
		if !luhnValid(number) {
			return nil, ErrCardProvisioning
		}
		card := &domain.CreditCard{
			ID:             uuid.New(),
			Number:         number,
			Holder:         owner.Name,
			CVV:            fmt.Sprintf("%03d", rand.Intn(1000)),
			ExpirationDate: time.Now().Add(cardValidityPeriod),
			OwnerID:        owner.ID,
		}
		err := s.repo.CreateCard(ctx, card)
		if err == nil {
			return card, nil
		}
		if !errors.Is(err, store.ErrCardNumberTaken) {
			return nil, err
		}
		// Two concurrent issuers produced the same candidate; the unique
		// constraint caught it, so regenerate and try again.
		log.Printf("level=warn component=cards msg=\"card number collision\" owner_id=%s attempt=%d", ownerID, attempt)
	}
	return nil, ErrCardProvisioning
}

// newCardNumber builds a 16-digit card number: the issuer prefix padded to a
// 15-digit payload with fresh random digits, plus the Luhn check digit.
func newCardNumber() string {
	payload := cardIssuerPrefix
	for len(payload) < cardPayloadDigits {
		payload += strconv.Itoa(rand.Intn(10))
	}
	return payload + strconv.Itoa(luhnCheckDigit(payload))
}

// luhnCheckDigit computes the mod-10 check digit for a digit-string payload:
// starting from the rightmost digit, every second digit is doubled (minus 9
// when the double exceeds 9), all digits are summed, and the check digit is
// whatever brings the sum to a multiple of ten.
func luhnCheckDigit(payload string) int {
	sum := 0
	double := true
	for i := len(payload) - 1; i >= 0; i-- {
		digit := int(payload[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return (10 - sum%10) % 10
}

// luhnValid re-validates a full card number, check digit included.
func luhnValid(number string) bool {
	if len(number) < 2 {
		return false
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return false
		}
	}
	payload, check := number[:len(number)-1], int(number[len(number)-1]-'0')
	return luhnCheckDigit(payload) == check
}
