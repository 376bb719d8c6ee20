package service

import "errors"

// Business-rule failures are first-class outcomes. Handlers match
// them with errors.Is and map them to responses; none of them leaves
// partially applied state behind.
var (
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrAccountNotActive      = errors.New("account is not active")
	ErrCardRequired          = errors.New("source account must have an active debit card linked")
	ErrSelfTransfer          = errors.New("cannot transfer to the same account")
	ErrInsufficientFunds     = errors.New("insufficient balance")
	ErrDuplicateRequest      = errors.New("transaction with this idempotency key already processed")
	ErrInvalidIdempotencyKey = errors.New("idempotency key must be between 16 and 64 characters")
	ErrInvalidIBAN           = errors.New("invalid IBAN format")
	ErrInvalidCurrency       = errors.New("only EUR accounts are supported")
	ErrPendingApplication    = errors.New("client already has a pending account application")
	ErrPendingCard           = errors.New("there is already a pending card application for this account")
	ErrActiveCardExists      = errors.New("this account already has an active card linked")
	ErrForbidden             = errors.New("operation not permitted")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)
