// Package repository owns persistence of users, accounts, cards and
// transactions. The ledger engine and the approval workflow reach the
// store only through the Store and Tx interfaces; Tx methods run
// inside a single atomic unit with row-level locking.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert violates a uniqueness
	// constraint (idempotency key, email, IBAN).
	ErrDuplicateKey = errors.New("duplicate key")
)

// AccountFilter narrows ListAccounts. Nil/zero fields match everything.
type AccountFilter struct {
	ClientID *uuid.UUID
	Status   models.ApplicationStatus
}

// CardFilter narrows ListCards. Nil/zero fields match everything.
type CardFilter struct {
	ClientID  *uuid.UUID
	AccountID *uuid.UUID
	Status    models.ApplicationStatus
}

// Store provides database operations. Create methods fill in the
// entity's ID and timestamps when unset.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByIBAN(ctx context.Context, iban string) (*models.Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]*models.Account, error)
	CountPendingAccounts(ctx context.Context, clientID uuid.UUID) (int, error)

	CreateCard(ctx context.Context, card *models.Card) error
	GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	ListCards(ctx context.Context, filter CardFilter) ([]*models.Card, error)
	HasApprovedCard(ctx context.Context, accountID uuid.UUID) (bool, error)
	HasPendingCard(ctx context.Context, accountID uuid.UUID) (bool, error)
	ListExpiredCards(ctx context.Context, asOf time.Time) ([]*models.Card, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID) ([]*models.Transaction, error)
	IdempotencyKeyExists(ctx context.Context, key string) (bool, error)

	// WithinTx runs fn inside one atomic unit. If fn returns an error
	// the unit is rolled back and nothing fn did is observable.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the handle the ledger engine and the approval workflow use
// inside an atomic unit. ForUpdate reads take an exclusive row lock
// held until the unit commits or rolls back.
type Tx interface {
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetCardForUpdate(ctx context.Context, id uuid.UUID) (*models.Card, error)
	UpdateAccountBalance(ctx context.Context, accountID uuid.UUID, balance money.Amount) error
	UpdateAccountDecision(ctx context.Context, account *models.Account) error
	UpdateCardDecision(ctx context.Context, card *models.Card) error
	CreateTransaction(ctx context.Context, trx *models.Transaction) error
	LinkTransaction(ctx context.Context, id, relatedID uuid.UUID) error
	HasApprovedCard(ctx context.Context, accountID uuid.UUID) (bool, error)
}
