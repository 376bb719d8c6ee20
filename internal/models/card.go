package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/altbank/backoffice/internal/money"
)

// CardValidityYears is added to the approval date to compute expiry.
const CardValidityYears = 4

// Card represents a debit card application linked to an approved
// account. At most one APPROVED card may exist per account, and at
// most one PENDING application at a time.
type Card struct {
	ID              uuid.UUID         `json:"id"`
	ClientID        uuid.UUID         `json:"client_id"`
	AccountID       uuid.UUID         `json:"account_id"`
	CardNumber      string            `json:"card_number"`
	MonthlySalary   money.Amount      `json:"monthly_salary"`
	Status          ApplicationStatus `json:"status"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	ApprovedBy      *uuid.UUID        `json:"approved_by,omitempty"`
	ExpiryDate      *time.Time        `json:"expiry_date,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// MaskedNumber returns the card number with all but the last four
// digits hidden.
func (c *Card) MaskedNumber() string {
	if len(c.CardNumber) < 4 {
		return c.CardNumber
	}
	return fmt.Sprintf("**** **** **** %s", c.CardNumber[len(c.CardNumber)-4:])
}

// StampExpiry sets the expiry date relative to the approval date.
func (c *Card) StampExpiry(approvedAt time.Time) {
	expiry := approvedAt.AddDate(CardValidityYears, 0, 0)
	c.ExpiryDate = &expiry
}

// GetStatus implements Application.
func (c *Card) GetStatus() ApplicationStatus { return c.Status }

// SetStatus implements Application.
func (c *Card) SetStatus(status ApplicationStatus) { c.Status = status }

// SetApprover implements Application.
func (c *Card) SetApprover(bankerID uuid.UUID) { c.ApprovedBy = &bankerID }

// SetRejectionReason implements Application.
func (c *Card) SetRejectionReason(reason string) { c.RejectionReason = reason }
