package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
)

// uniqueViolation is the postgres error code for a violated
// uniqueness constraint. It backs the idempotency guard: losing a
// race on the idempotency key surfaces as ErrDuplicateKey rather
// than a partially applied transfer.
const uniqueViolation = "23505"

// PostgresStore implements Store on top of postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore initializes a postgres-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pqErr.Constraint)
	}
	return err
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// ---- users ----

// CreateUser creates a new user in the database
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	ensureID(&user.ID)
	query := `
		INSERT INTO bank.users (id, email, name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := s.db.QueryRowContext(ctx, query, user.ID, user.Email, user.Name, user.PasswordHash, user.Role).
		Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapPQError(err))
	}
	return nil
}

// GetUser retrieves a user by id
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserByEmail retrieves a user by email
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, name, password_hash, role, created_at
		FROM bank.users ` + where
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ---- accounts ----

const accountColumns = `id, client_id, iban, currency, balance, status, rejection_reason, approved_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	account := &models.Account{}
	var approvedBy uuid.NullUUID
	err := row.Scan(&account.ID, &account.ClientID, &account.IBAN, &account.Currency,
		&account.Balance, &account.Status, &account.RejectionReason, &approvedBy,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if approvedBy.Valid {
		account.ApprovedBy = &approvedBy.UUID
	}
	return account, nil
}

// CreateAccount creates a new account in the database
func (s *PostgresStore) CreateAccount(ctx context.Context, account *models.Account) error {
	ensureID(&account.ID)
	query := `
		INSERT INTO bank.accounts (id, client_id, iban, currency, balance, status, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		account.ID, account.ClientID, account.IBAN, account.Currency,
		account.Balance, account.Status, account.RejectionReason).
		Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", mapPQError(err))
	}
	return nil
}

// GetAccount retrieves an account by id
func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM bank.accounts WHERE id = $1`
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// GetAccountByIBAN retrieves an account by its external identifier
func (s *PostgresStore) GetAccountByIBAN(ctx context.Context, iban string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM bank.accounts WHERE iban = $1`
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, iban))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// ListAccounts retrieves accounts matching the filter, newest first
func (s *PostgresStore) ListAccounts(ctx context.Context, filter AccountFilter) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM bank.accounts WHERE 1=1`
	args := []interface{}{}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		query += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// CountPendingAccounts counts a client's PENDING account applications
func (s *PostgresStore) CountPendingAccounts(ctx context.Context, clientID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM bank.accounts WHERE client_id = $1 AND status = $2`
	err := s.db.QueryRowContext(ctx, query, clientID, models.StatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending accounts: %w", err)
	}
	return count, nil
}

// ---- cards ----

const cardColumns = `id, client_id, account_id, card_number, monthly_salary, status, rejection_reason, approved_by, expiry_date, created_at, updated_at`

func scanCard(row rowScanner) (*models.Card, error) {
	card := &models.Card{}
	var approvedBy uuid.NullUUID
	var expiry sql.NullTime
	err := row.Scan(&card.ID, &card.ClientID, &card.AccountID, &card.CardNumber,
		&card.MonthlySalary, &card.Status, &card.RejectionReason, &approvedBy,
		&expiry, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if approvedBy.Valid {
		card.ApprovedBy = &approvedBy.UUID
	}
	if expiry.Valid {
		card.ExpiryDate = &expiry.Time
	}
	return card, nil
}

// CreateCard creates a new card in the database
func (s *PostgresStore) CreateCard(ctx context.Context, card *models.Card) error {
	ensureID(&card.ID)
	query := `
		INSERT INTO bank.cards (id, client_id, account_id, card_number, monthly_salary, status, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		card.ID, card.ClientID, card.AccountID, card.CardNumber,
		card.MonthlySalary, card.Status, card.RejectionReason).
		Scan(&card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", mapPQError(err))
	}
	return nil
}

// GetCard retrieves a card by id
func (s *PostgresStore) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM bank.cards WHERE id = $1`
	card, err := scanCard(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// ListCards retrieves cards matching the filter, newest first
func (s *PostgresStore) ListCards(ctx context.Context, filter CardFilter) ([]*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM bank.cards WHERE 1=1`
	args := []interface{}{}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		query += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		query += fmt.Sprintf(" AND account_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// HasApprovedCard reports whether the account has an APPROVED card
func (s *PostgresStore) HasApprovedCard(ctx context.Context, accountID uuid.UUID) (bool, error) {
	return s.hasCardWithStatus(ctx, accountID, models.StatusApproved)
}

// HasPendingCard reports whether the account has a PENDING card application
func (s *PostgresStore) HasPendingCard(ctx context.Context, accountID uuid.UUID) (bool, error) {
	return s.hasCardWithStatus(ctx, accountID, models.StatusPending)
}

func (s *PostgresStore) hasCardWithStatus(ctx context.Context, accountID uuid.UUID, status models.ApplicationStatus) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM bank.cards WHERE account_id = $1 AND status = $2)`
	if err := s.db.QueryRowContext(ctx, query, accountID, status).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check cards: %w", err)
	}
	return exists, nil
}

// ListExpiredCards retrieves APPROVED cards whose expiry date has passed
func (s *PostgresStore) ListExpiredCards(ctx context.Context, asOf time.Time) ([]*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM bank.cards WHERE status = $1 AND expiry_date IS NOT NULL AND expiry_date < $2`
	rows, err := s.db.QueryContext(ctx, query, models.StatusApproved, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// ---- transactions ----

const transactionColumns = `id, account_id, type, amount, currency, description, reference_iban, balance_after, related_transaction_id, idempotency_key, created_at`

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	trx := &models.Transaction{}
	var related uuid.NullUUID
	var key sql.NullString
	err := row.Scan(&trx.ID, &trx.AccountID, &trx.Type, &trx.Amount, &trx.Currency,
		&trx.Description, &trx.ReferenceIBAN, &trx.BalanceAfter, &related, &key, &trx.CreatedAt)
	if err != nil {
		return nil, err
	}
	if related.Valid {
		trx.RelatedTransactionID = &related.UUID
	}
	if key.Valid {
		trx.IdempotencyKey = key.String
	}
	return trx, nil
}

// GetTransaction retrieves a transaction by id
func (s *PostgresStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank.transactions WHERE id = $1`
	trx, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return trx, nil
}

// ListTransactions retrieves an account's ledger entries, newest first
func (s *PostgresStore) ListTransactions(ctx context.Context, accountID uuid.UUID) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank.transactions WHERE account_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		trx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, trx)
	}
	return transactions, rows.Err()
}

// IdempotencyKeyExists reports whether a transaction already carries
// the key. This is the guard's advisory check; the unique index is
// the authoritative one.
func (s *PostgresStore) IdempotencyKeyExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM bank.transactions WHERE idempotency_key = $1)`
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return exists, nil
}

// ---- atomic units ----

// WithinTx runs fn in a database transaction, rolling back on error.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&postgresTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapPQError(err))
	}
	return nil
}

type postgresTx struct {
	tx *sql.Tx
}

// GetAccountForUpdate reads an account under an exclusive row lock
func (t *postgresTx) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM bank.accounts WHERE id = $1 FOR UPDATE`
	account, err := scanAccount(t.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return account, nil
}

// GetCardForUpdate reads a card under an exclusive row lock
func (t *postgresTx) GetCardForUpdate(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM bank.cards WHERE id = $1 FOR UPDATE`
	card, err := scanCard(t.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock card: %w", err)
	}
	return card, nil
}

// UpdateAccountBalance writes a locked account's new balance
func (t *postgresTx) UpdateAccountBalance(ctx context.Context, accountID uuid.UUID, balance money.Amount) error {
	query := `UPDATE bank.accounts SET balance = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	if _, err := t.tx.ExecContext(ctx, query, balance, accountID); err != nil {
		return fmt.Errorf("failed to update balance: %w", mapPQError(err))
	}
	return nil
}

// UpdateAccountDecision persists a decided account's status fields
func (t *postgresTx) UpdateAccountDecision(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE bank.accounts
		SET status = $1, rejection_reason = $2, approved_by = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`
	var approvedBy uuid.NullUUID
	if account.ApprovedBy != nil {
		approvedBy = uuid.NullUUID{UUID: *account.ApprovedBy, Valid: true}
	}
	if _, err := t.tx.ExecContext(ctx, query, account.Status, account.RejectionReason, approvedBy, account.ID); err != nil {
		return fmt.Errorf("failed to update account decision: %w", err)
	}
	return nil
}

// UpdateCardDecision persists a decided card's status fields
func (t *postgresTx) UpdateCardDecision(ctx context.Context, card *models.Card) error {
	query := `
		UPDATE bank.cards
		SET status = $1, rejection_reason = $2, approved_by = $3, expiry_date = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $5`
	var approvedBy uuid.NullUUID
	if card.ApprovedBy != nil {
		approvedBy = uuid.NullUUID{UUID: *card.ApprovedBy, Valid: true}
	}
	var expiry sql.NullTime
	if card.ExpiryDate != nil {
		expiry = sql.NullTime{Time: *card.ExpiryDate, Valid: true}
	}
	if _, err := t.tx.ExecContext(ctx, query, card.Status, card.RejectionReason, approvedBy, expiry, card.ID); err != nil {
		return fmt.Errorf("failed to update card decision: %w", mapPQError(err))
	}
	return nil
}

// CreateTransaction inserts an immutable ledger entry
func (t *postgresTx) CreateTransaction(ctx context.Context, trx *models.Transaction) error {
	ensureID(&trx.ID)
	query := `
		INSERT INTO bank.transactions (id, account_id, type, amount, currency, description, reference_iban, balance_after, related_transaction_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP)
		RETURNING created_at`
	var related uuid.NullUUID
	if trx.RelatedTransactionID != nil {
		related = uuid.NullUUID{UUID: *trx.RelatedTransactionID, Valid: true}
	}
	var key sql.NullString
	if trx.IdempotencyKey != "" {
		key = sql.NullString{String: trx.IdempotencyKey, Valid: true}
	}
	err := t.tx.QueryRowContext(ctx, query,
		trx.ID, trx.AccountID, trx.Type, trx.Amount, trx.Currency,
		trx.Description, trx.ReferenceIBAN, trx.BalanceAfter, related, key).
		Scan(&trx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", mapPQError(err))
	}
	return nil
}

// LinkTransaction points a ledger entry at the other leg of its transfer
func (t *postgresTx) LinkTransaction(ctx context.Context, id, relatedID uuid.UUID) error {
	query := `UPDATE bank.transactions SET related_transaction_id = $1 WHERE id = $2`
	if _, err := t.tx.ExecContext(ctx, query, relatedID, id); err != nil {
		return fmt.Errorf("failed to link transactions: %w", err)
	}
	return nil
}

// HasApprovedCard reports whether the account has an APPROVED card
func (t *postgresTx) HasApprovedCard(ctx context.Context, accountID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM bank.cards WHERE account_id = $1 AND status = $2)`
	if err := t.tx.QueryRowContext(ctx, query, accountID, models.StatusApproved).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check cards: %w", err)
	}
	return exists, nil
}
