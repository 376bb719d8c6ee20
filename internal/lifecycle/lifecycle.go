// Package lifecycle implements the application approval workflow
// shared by account opening and card issuance: a single transition
// out of PENDING into either APPROVED or REJECTED.
package lifecycle

import (
	"errors"

	"github.com/google/uuid"

	"github.com/altbank/backoffice/internal/models"
)

// Decision is the outcome a banker requests for a pending application.
type Decision string

const (
	DecisionApprove Decision = "APPROVED"
	DecisionReject  Decision = "REJECTED"
)

var (
	// ErrAlreadyDecided is returned on any transition attempt from a
	// non-PENDING state.
	ErrAlreadyDecided = errors.New("application has already been processed")

	// ErrReasonRequired is returned when a rejection carries no reason.
	ErrReasonRequired = errors.New("rejection reason is required")

	// ErrUnknownDecision is returned for a decision value that is
	// neither APPROVED nor REJECTED.
	ErrUnknownDecision = errors.New("unknown decision")
)

// Approve moves app from PENDING to APPROVED, stamps the approver and
// clears any prior rejection reason. onApprove, when non-nil, runs
// per-kind side effects (card expiry stamping) as part of the same
// transition. The caller is responsible for persisting the entity in
// the same atomic unit.
func Approve(app models.Application, bankerID uuid.UUID, onApprove func()) error {
	if app.GetStatus() != models.StatusPending {
		return ErrAlreadyDecided
	}
	app.SetStatus(models.StatusApproved)
	app.SetApprover(bankerID)
	app.SetRejectionReason("")
	if onApprove != nil {
		onApprove()
	}
	return nil
}

// Reject moves app from PENDING to REJECTED and stamps the reason.
func Reject(app models.Application, reason string) error {
	if app.GetStatus() != models.StatusPending {
		return ErrAlreadyDecided
	}
	if reason == "" {
		return ErrReasonRequired
	}
	app.SetStatus(models.StatusRejected)
	app.SetRejectionReason(reason)
	return nil
}

// Decide dispatches to Approve or Reject based on decision.
func Decide(app models.Application, decision Decision, bankerID uuid.UUID, reason string, onApprove func()) error {
	switch decision {
	case DecisionApprove:
		return Approve(app, bankerID, onApprove)
	case DecisionReject:
		return Reject(app, reason)
	default:
		return ErrUnknownDecision
	}
}
