package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/lumenbank/ledger-service/internal/domain"
)

func TestLuhnCheckDigit(t *testing.T) {
	tests := []struct {
		payload string
		want    int
	}{
		// 7992739871 is the classic worked example; its check digit is 3.
		{"7992739871", 3},
		{"0", 0},
		{"5", 9},
		{"123456789012345", 2},
		{"424242424242424", 2},
	}
	for _, tc := range tests {
		if got := luhnCheckDigit(tc.payload); got != tc.want {
			t.Errorf("luhnCheckDigit(%q) = %d, want %d", tc.payload, got, tc.want)
		}
	}
}

func TestLuhnValid(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"79927398713", true},
		{"79927398710", false},
		{"4242424242424242", true},
		{"4242424242424241", false},
		{"", false},
		{"7", false},
		{"79927398a13", false},
	}
	for _, tc := range tests {
		if got := luhnValid(tc.number); got != tc.want {
			t.Errorf("luhnValid(%q) = %t, want %t", tc.number, got, tc.want)
		}
	}
}

func TestNewCardNumber(t *testing.T) {
	for i := 0; i < 10000; i++ {
		number := newCardNumber()
		if len(number) != cardPayloadDigits+1 {
			t.Fatalf("len(%q) = %d, want %d", number, len(number), cardPayloadDigits+1)
		}
		if !strings.HasPrefix(number, cardIssuerPrefix) {
			t.Fatalf("%q does not carry issuer prefix %q", number, cardIssuerPrefix)
		}
		if !luhnValid(number) {
			t.Fatalf("%q fails checksum validation", number)
		}
	}
}

func TestNewCardNumberBackToBackDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		number := newCardNumber()
		if seen[number] {
			t.Fatalf("back-to-back generation repeated %q after %d candidates", number, i)
		}
		seen[number] = true
	}
}

func TestIssueCard(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a valid card", func(t *testing.T) {
		repo := newFakeRepository()
		owner := repo.addUser(domain.User{Email: "alice@example.com", Name: "Alice", IsVerified: true, DataSubmitted: true})
		service := NewService(repo, nil, nil, "")

		card, err := service.IssueCard(ctx, owner.ID, owner.ID)
		if err != nil {
			t.Fatalf("IssueCard() error = %v", err)
		}
		if card.OwnerID != owner.ID {
			t.Errorf("card owner = %s, want %s", card.OwnerID, owner.ID)
		}
		if card.Holder != owner.Name {
			t.Errorf("card holder = %q, want %q", card.Holder, owner.Name)
		}
		if !luhnValid(card.Number) {
			t.Errorf("issued number %q fails checksum validation", card.Number)
		}
		if len(card.CVV) != 3 {
			t.Errorf("cvv = %q, want three digits", card.CVV)
		}
		if card.IsBlocked {
			t.Error("new card issued blocked")
		}
	})

	t.Run("enforces the per-user cap", func(t *testing.T) {
		repo := newFakeRepository()
		owner := repo.addUser(domain.User{Email: "alice@example.com", Name: "Alice"})
		service := NewService(repo, nil, nil, "")

		for i := 0; i < MaxCardsPerUser; i++ {
			if _, err := service.IssueCard(ctx, owner.ID, owner.ID); err != nil {
				t.Fatalf("card %d: %v", i+1, err)
			}
		}
		if _, err := service.IssueCard(ctx, owner.ID, owner.ID); !errors.Is(err, ErrCardLimitReached) {
			t.Fatalf("fourth card error = %v, want ErrCardLimitReached", err)
		}
		count, _ := repo.CountCardsByOwner(ctx, owner.ID)
		if count != MaxCardsPerUser {
			t.Errorf("stored cards = %d, want %d", count, MaxCardsPerUser)
		}
	})

	t.Run("rejects issuing for another account", func(t *testing.T) {
		repo := newFakeRepository()
		caller := repo.addUser(domain.User{Email: "alice@example.com"})
		other := repo.addUser(domain.User{Email: "bob@example.com"})
		service := NewService(repo, nil, nil, "")

		if _, err := service.IssueCard(ctx, caller.ID, other.ID); !errors.Is(err, ErrNotCardOwner) {
			t.Errorf("IssueCard() error = %v, want ErrNotCardOwner", err)
		}
		if _, err := service.IssueCard(ctx, caller.ID, uuid.Nil); !errors.Is(err, ErrNotCardOwner) {
			t.Errorf("nil owner error = %v, want ErrNotCardOwner", err)
		}
	})

	t.Run("retries on a number collision", func(t *testing.T) {
		repo := newFakeRepository()
		owner := repo.addUser(domain.User{Email: "alice@example.com", Name: "Alice"})
		service := NewService(repo, nil, nil, "")

		first, err := service.IssueCard(ctx, owner.ID, owner.ID)
		if err != nil {
			t.Fatalf("first card: %v", err)
		}
		second, err := service.IssueCard(ctx, owner.ID, owner.ID)
		if err != nil {
			t.Fatalf("second card: %v", err)
		}
		if first.Number == second.Number {
			t.Errorf("duplicate card number issued: %q", first.Number)
		}
	})

	t.Run("concurrent issuers get distinct numbers", func(t *testing.T) {
		repo := newFakeRepository()
		service := NewService(repo, nil, nil, "")

		const issuers = 20
		var wg sync.WaitGroup
		errs := make(chan error, issuers)
		for i := 0; i < issuers; i++ {
			owner := repo.addUser(domain.User{Email: uuid.NewString() + "@example.com", Name: "Holder"})
			wg.Add(1)
			go func(ownerID uuid.UUID) {
				defer wg.Done()
				if _, err := service.IssueCard(ctx, ownerID, ownerID); err != nil {
					errs <- err
				}
			}(owner.ID)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("concurrent issue: %v", err)
		}

		cards, _ := repo.ListCards(ctx)
		seen := make(map[string]bool, len(cards))
		for _, card := range cards {
			if seen[card.Number] {
				t.Errorf("duplicate number across accounts: %q", card.Number)
			}
			seen[card.Number] = true
		}
	})
}
