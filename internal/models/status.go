package models

import "github.com/google/uuid"

// ApplicationStatus is the lifecycle state of an account or card
// application. PENDING is the initial state; APPROVED and REJECTED
// are terminal.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "PENDING"
	StatusApproved ApplicationStatus = "APPROVED"
	StatusRejected ApplicationStatus = "REJECTED"
)

// Valid reports whether s is a known status value.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Application is implemented by entities that move through the
// PENDING -> {APPROVED, REJECTED} workflow. The state machine in
// internal/lifecycle operates on this interface only.
type Application interface {
	GetStatus() ApplicationStatus
	SetStatus(status ApplicationStatus)
	SetApprover(bankerID uuid.UUID)
	SetRejectionReason(reason string)
}
