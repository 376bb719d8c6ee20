package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/altbank/backoffice/internal/money"
)

// CurrencyEUR is the single supported currency.
const CurrencyEUR = "EUR"

// Account is a client bank account. It is created PENDING by the
// client, decided exactly once by a banker, and afterwards mutated
// only by the ledger engine. Balance never goes negative.
type Account struct {
	ID              uuid.UUID         `json:"id"`
	ClientID        uuid.UUID         `json:"client_id"`
	IBAN            string            `json:"iban"`
	Currency        string            `json:"currency"`
	Balance         money.Amount      `json:"balance"`
	Status          ApplicationStatus `json:"status"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	ApprovedBy      *uuid.UUID        `json:"approved_by,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsActive reports whether the account may take part in deposits and
// transfers.
func (a *Account) IsActive() bool {
	return a.Status == StatusApproved
}

// GetStatus implements Application.
func (a *Account) GetStatus() ApplicationStatus { return a.Status }

// SetStatus implements Application.
func (a *Account) SetStatus(status ApplicationStatus) { a.Status = status }

// SetApprover implements Application.
func (a *Account) SetApprover(bankerID uuid.UUID) { a.ApprovedBy = &bankerID }

// SetRejectionReason implements Application.
func (a *Account) SetRejectionReason(reason string) { a.RejectionReason = reason }
