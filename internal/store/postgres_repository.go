/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all SQL for the users, credit_cards, transactions
 * and verification_tokens tables.
 *
 * Concurrency notes:
 * - The transfer debit carries its own balance guard
 *   (`AND balance >= $1`), so two concurrent transfers from the same sender
 *   cannot both pass a stale check: the second one simply matches no row and
 *   fails inside the same transaction that would have written it.
 * - Card number uniqueness is enforced by the unique constraint on
 *   credit_cards.number; a 23505 violation surfaces as ErrCardNumberTaken so
 *   the issuer can retry with a fresh candidate.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumenbank/ledger-service/internal/domain"
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

const userColumns = `id, email, name, password_hash, role, provider, balance,
	is_verified, is_banned, data_submitted, gender, location, phone_number,
	created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.Provider,
		&user.Balance,
		&user.IsVerified,
		&user.IsBanned,
		&user.DataSubmitted,
		&user.Gender,
		&user.Location,
		&user.PhoneNumber,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user row. A unique violation on the email column
// is reported as ErrEmailTaken so the caller can answer 409.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, role, provider, balance,
			is_verified, is_banned, data_submitted, gender, location, phone_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.Provider,
		user.Balance,
		user.IsVerified,
		user.IsBanned,
		user.DataSubmitted,
		user.Gender,
		user.Location,
		user.PhoneNumber,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// FindUserByEmail retrieves a user by their unique email. The match is
// case-sensitive, mirroring the uniqueness constraint.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// UpdateUserProfile writes the profile-completion fields and flips
// data_submitted in one statement.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, phone_number = $4, location = $5, gender = $6,
			data_submitted = TRUE, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, userID, update.Name, update.Email, update.PhoneNumber, update.Location, update.Gender)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserBalance overwrites a user's balance. This is the admin credit
// injection; it is an overwrite, not an increment.
func (r *PostgresRepository) SetUserBalance(ctx context.Context, email string, balance int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET balance = $2, updated_at = NOW() WHERE email = $1`, email, balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserRole overwrites a user's role.
func (r *PostgresRepository) SetUserRole(ctx context.Context, email string, role domain.Role) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE email = $1`, email, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns a full snapshot of the users table.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// CreateCard inserts a new credit card row. A unique violation on the number
// column is the final backstop against concurrent issuance of the same
// candidate; it is reported as ErrCardNumberTaken, which the issuer treats
// as retryable.
func (r *PostgresRepository) CreateCard(ctx context.Context, card *domain.CreditCard) error {
	query := `
		INSERT INTO credit_cards (id, number, holder, cvv, expiration_date, is_blocked, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		card.ID,
		card.Number,
		card.Holder,
		card.CVV,
		card.ExpirationDate,
		card.IsBlocked,
		card.OwnerID,
	).Scan(&card.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCardNumberTaken
		}
		return err
	}
	return nil
}

// CountCardsByOwner returns how many cards a user currently holds.
func (r *PostgresRepository) CountCardsByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM credit_cards WHERE owner_id = $1`, ownerID).Scan(&count)
	return count, err
}

// ListCards returns a full snapshot of the credit_cards table.
func (r *PostgresRepository) ListCards(ctx context.Context) ([]domain.CreditCard, error) {
	query := `
		SELECT id, number, holder, cvv, expiration_date, is_blocked, owner_id, created_at
		FROM credit_cards ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.CreditCard
	for rows.Next() {
		var card domain.CreditCard
		if err := rows.Scan(
			&card.ID,
			&card.Number,
			&card.Holder,
			&card.CVV,
			&card.ExpirationDate,
			&card.IsBlocked,
			&card.OwnerID,
			&card.CreatedAt,
		); err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// PerformTransfer moves amount from sender to receiver and records the
// transaction, all inside one database transaction. The debit statement
// doubles as the balance check: it only matches when the sender still holds
// at least the amount, so a concurrent transfer that drained the balance
// after the service-level validation cannot push it negative.
func (r *PostgresRepository) PerformTransfer(ctx context.Context, senderID, receiverID uuid.UUID, amount int64) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	debit := `
		UPDATE users SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
	`
	tag, err := tx.Exec(ctx, debit, amount, senderID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		// Either the sender vanished or the guard rejected the debit.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, senderID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrUserNotFound
		}
		return nil, ErrInsufficientFunds
	}

	credit := `UPDATE users SET balance = balance + $1, updated_at = NOW() WHERE id = $2`
	tag, err = tx.Exec(ctx, credit, amount, receiverID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	record := &domain.Transaction{
		ID:         uuid.New(),
		Amount:     amount,
		SenderID:   senderID,
		ReceiverID: receiverID,
	}
	insert := `
		INSERT INTO transactions (id, amount, sender_id, receiver_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, insert, record.ID, record.Amount, record.SenderID, record.ReceiverID).Scan(&record.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// ListTransfersForUser returns the user's transfer history newest-first,
// each row annotated with its direction and the counterparty's summary.
func (r *PostgresRepository) ListTransfersForUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.TransferView, error) {
	query := `
		SELECT t.id, t.amount, t.created_at,
			CASE WHEN t.sender_id = $1 THEN 'sent' ELSE 'received' END AS direction,
			CASE WHEN t.sender_id = $1 THEN receiver.name ELSE sender.name END AS party_name,
			CASE WHEN t.sender_id = $1 THEN receiver.email ELSE sender.email END AS party_email
		FROM transactions t
		JOIN users sender ON sender.id = t.sender_id
		JOIN users receiver ON receiver.id = t.receiver_id
		WHERE t.sender_id = $1 OR t.receiver_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []domain.TransferView
	for rows.Next() {
		view := domain.TransferView{Status: "completed"}
		if err := rows.Scan(
			&view.ID,
			&view.Amount,
			&view.Timestamp,
			&view.Type,
			&view.Party.Name,
			&view.Party.Email,
		); err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

// ListTransactions returns a full snapshot of the transactions table.
func (r *PostgresRepository) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT id, amount, sender_id, receiver_id, created_at FROM transactions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.Transaction
	for rows.Next() {
		var record domain.Transaction
		if err := rows.Scan(&record.ID, &record.Amount, &record.SenderID, &record.ReceiverID, &record.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CreateVerificationToken stores a freshly issued activation token.
func (r *PostgresRepository) CreateVerificationToken(ctx context.Context, token *domain.VerificationToken) error {
	query := `
		INSERT INTO verification_tokens (token, user_id)
		VALUES ($1, $2)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query, token.Token, token.UserID).Scan(&token.CreatedAt)
}

// RedeemVerificationToken marks the token used and the owning user verified
// in one transaction. The UPDATE's WHERE clause enforces single use and the
// age window, so a token raced by two redeem calls activates exactly once.
func (r *PostgresRepository) RedeemVerificationToken(ctx context.Context, token string, maxAge time.Duration) (uuid.UUID, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	claim := `
		UPDATE verification_tokens
		SET activated_at = NOW()
		WHERE token = $1
			AND activated_at IS NULL
			AND created_at > NOW() - make_interval(secs => $2)
		RETURNING user_id
	`
	var userID uuid.UUID
	if err := tx.QueryRow(ctx, claim, token, maxAge.Seconds()).Scan(&userID); err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, ErrTokenInvalid
		}
		return uuid.Nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, userID); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

// PurgeAll deletes every row of the four tables, children before users, as
// one transaction and reports per-table deletion counts.
func (r *PostgresRepository) PurgeAll(ctx context.Context) (*PurgeResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var result PurgeResult
	steps := []struct {
		query string
		count *int64
	}{
		{`DELETE FROM transactions`, &result.Transactions},
		{`DELETE FROM credit_cards`, &result.CreditCards},
		{`DELETE FROM verification_tokens`, &result.VerificationTokens},
		{`DELETE FROM users`, &result.Users},
	}
	for _, step := range steps {
		tag, err := tx.Exec(ctx, step.query)
		if err != nil {
			return nil, err
		}
		*step.count = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &result, nil
}
