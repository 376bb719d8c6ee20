package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/altbank/backoffice/internal/money"
)

// TransactionType is the direction of a ledger entry relative to its
// owning account.
type TransactionType string

const (
	// TransactionDebit reduces the owning account's balance.
	TransactionDebit TransactionType = "DEBIT"
	// TransactionCredit increases the owning account's balance.
	TransactionCredit TransactionType = "CREDIT"
)

// Transaction is an immutable ledger entry. BalanceAfter snapshots
// the owning account's balance immediately after this entry was
// applied and is never recomputed. A transfer produces two entries
// cross-linked through RelatedTransactionID; the credit leg may be
// missing when the target IBAN is unknown to this ledger.
type Transaction struct {
	ID                   uuid.UUID       `json:"id"`
	AccountID            uuid.UUID       `json:"account_id"`
	Type                 TransactionType `json:"type"`
	Amount               money.Amount    `json:"amount"`
	Currency             string          `json:"currency"`
	Description          string          `json:"description"`
	ReferenceIBAN        string          `json:"reference_iban,omitempty"`
	BalanceAfter         money.Amount    `json:"balance_after"`
	RelatedTransactionID *uuid.UUID      `json:"related_transaction_id,omitempty"`
	IdempotencyKey       string          `json:"-"`
	CreatedAt            time.Time       `json:"created_at"`
}
