package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenbank/ledger-service/internal/domain"
	"github.com/lumenbank/ledger-service/internal/store"
)

// fakeRepository is an in-memory store.Repository. A single mutex stands in
// for the database's transaction isolation: every method is atomic, so the
// balance guard and the card-number unique constraint behave like their SQL
// counterparts under concurrent callers.
type fakeRepository struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*domain.User
	cards        []*domain.CreditCard
	cardNumbers  map[string]bool
	transactions []*domain.Transaction
	tokens       map[string]*domain.VerificationToken

	// mutations counts store writes, for asserting nothing was touched.
	mutations int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:       make(map[uuid.UUID]*domain.User),
		cardNumbers: make(map[string]bool),
		tokens:      make(map[string]*domain.VerificationToken),
	}
}

func (f *fakeRepository) addUser(user domain.User) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	stored := user
	f.users[stored.ID] = &stored
	return &stored
}

func (f *fakeRepository) CreateUser(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return store.ErrEmailTaken
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	f.mutations++
	return nil
}

func (f *fakeRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (f *fakeRepository) UpdateUserProfile(ctx context.Context, userID uuid.UUID, update store.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.ErrUserNotFound
	}
	user.Name = update.Name
	user.Email = update.Email
	user.PhoneNumber = &update.PhoneNumber
	user.Location = &update.Location
	user.Gender = &update.Gender
	user.DataSubmitted = true
	f.mutations++
	return nil
}

func (f *fakeRepository) SetUserBalance(ctx context.Context, email string, balance int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			user.Balance = balance
			f.mutations++
			return nil
		}
	}
	return store.ErrUserNotFound
}

func (f *fakeRepository) SetUserRole(ctx context.Context, email string, role domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			user.Role = role
			f.mutations++
			return nil
		}
	}
	return store.ErrUserNotFound
}

func (f *fakeRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]domain.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (f *fakeRepository) CreateCard(ctx context.Context, card *domain.CreditCard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cardNumbers[card.Number] {
		return store.ErrCardNumberTaken
	}
	card.CreatedAt = time.Now()
	stored := *card
	f.cards = append(f.cards, &stored)
	f.cardNumbers[card.Number] = true
	f.mutations++
	return nil
}

func (f *fakeRepository) CountCardsByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, card := range f.cards {
		if card.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) ListCards(ctx context.Context) ([]domain.CreditCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cards := make([]domain.CreditCard, 0, len(f.cards))
	for _, card := range f.cards {
		cards = append(cards, *card)
	}
	return cards, nil
}

func (f *fakeRepository) PerformTransfer(ctx context.Context, senderID, receiverID uuid.UUID, amount int64) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sender, ok := f.users[senderID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	receiver, ok := f.users[receiverID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	if sender.Balance < amount {
		return nil, store.ErrInsufficientFunds
	}
	sender.Balance -= amount
	receiver.Balance += amount
	record := &domain.Transaction{
		ID:         uuid.New(),
		Amount:     amount,
		SenderID:   senderID,
		ReceiverID: receiverID,
		CreatedAt:  time.Now(),
	}
	f.transactions = append(f.transactions, record)
	f.mutations++
	copied := *record
	return &copied, nil
}

func (f *fakeRepository) ListTransfersForUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.TransferView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var views []domain.TransferView
	for i := len(f.transactions) - 1; i >= 0 && len(views) < limit; i-- {
		tx := f.transactions[i]
		if tx.SenderID != userID && tx.ReceiverID != userID {
			continue
		}
		view := domain.TransferView{
			ID:        tx.ID,
			Amount:    tx.Amount,
			Timestamp: tx.CreatedAt,
			Type:      "received",
			Status:    "completed",
		}
		counterpartID := tx.SenderID
		if tx.SenderID == userID {
			view.Type = "sent"
			counterpartID = tx.ReceiverID
		}
		if counterpart, ok := f.users[counterpartID]; ok {
			view.Party = domain.TransferParty{Name: counterpart.Name, Email: counterpart.Email}
		}
		views = append(views, view)
	}
	return views, nil
}

func (f *fakeRepository) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]domain.Transaction, 0, len(f.transactions))
	for _, tx := range f.transactions {
		records = append(records, *tx)
	}
	return records, nil
}

func (f *fakeRepository) CreateVerificationToken(ctx context.Context, token *domain.VerificationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	token.CreatedAt = time.Now()
	stored := *token
	f.tokens[token.Token] = &stored
	f.mutations++
	return nil
}

func (f *fakeRepository) RedeemVerificationToken(ctx context.Context, token string, maxAge time.Duration) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tokens[token]
	if !ok || stored.ActivatedAt != nil || time.Since(stored.CreatedAt) >= maxAge {
		return uuid.Nil, store.ErrTokenInvalid
	}
	now := time.Now()
	stored.ActivatedAt = &now
	if user, ok := f.users[stored.UserID]; ok {
		user.IsVerified = true
	}
	f.mutations++
	return stored.UserID, nil
}

func (f *fakeRepository) PurgeAll(ctx context.Context) (*store.PurgeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := &store.PurgeResult{
		Transactions:       int64(len(f.transactions)),
		CreditCards:        int64(len(f.cards)),
		VerificationTokens: int64(len(f.tokens)),
		Users:              int64(len(f.users)),
	}
	f.transactions = nil
	f.cards = nil
	f.cardNumbers = make(map[string]bool)
	f.tokens = make(map[string]*domain.VerificationToken)
	f.users = make(map[uuid.UUID]*domain.User)
	f.mutations++
	return result, nil
}

func (f *fakeRepository) mutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations
}
