package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
	"github.com/altbank/backoffice/internal/repository"
	"github.com/altbank/backoffice/internal/utils"
)

const (
	defaultTransferDescription = "Transfer"
	defaultDepositDescription  = "Deposit by banker"
)

// Deposit credits an approved account and records the CREDIT ledger
// entry in the same atomic unit. Only bankers reach this operation.
func (s *Service) Deposit(ctx context.Context, accountID, bankerID uuid.UUID, amount money.Amount, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		description = defaultDepositDescription
	}

	var trx *models.Transaction
	var account *models.Account
	err := s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		account, err = tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if !account.IsActive() {
			return ErrAccountNotActive
		}

		newBalance := account.Balance.Add(amount)
		if err := tx.UpdateAccountBalance(ctx, account.ID, newBalance); err != nil {
			return err
		}
		account.Balance = newBalance

		trx = &models.Transaction{
			AccountID:    account.ID,
			Type:         models.TransactionCredit,
			Amount:       amount,
			Currency:     account.Currency,
			Description:  description,
			BalanceAfter: newBalance,
		}
		return tx.CreateTransaction(ctx, trx)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("Deposit %s %s to %s by %s", amount, account.Currency, account.IBAN, bankerID)
	s.notifyDeposit(ctx, account, amount)
	return trx, nil
}

// Transfer moves money from one of the client's accounts to the
// account addressed by targetIBAN and returns the DEBIT leg.
//
// Eligibility and balance are checked twice: once before any lock is
// taken, to fail fast, and again after the exclusive row locks are
// held — only the post-lock balance check is authoritative. Locks are
// acquired in a fixed id order so that two transfers sharing accounts
// cannot deadlock. If the target IBAN does not resolve to an approved
// account the transfer still commits as a one-legged debit.
func (s *Service) Transfer(ctx context.Context, clientID, sourceAccountID uuid.UUID, targetIBAN string, amount money.Amount, description, idempotencyKey string) (*models.Transaction, error) {
	// Validation errors: rejected before any lock is taken.
	if err := validateIdempotencyKey(idempotencyKey); err != nil {
		return nil, err
	}
	targetIBAN = utils.NormalizeIBAN(targetIBAN)
	if !utils.ValidIBAN(targetIBAN) {
		return nil, ErrInvalidIBAN
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		description = defaultTransferDescription
	}

	// Advisory pre-lock checks.
	source, err := s.repo.GetAccount(ctx, sourceAccountID)
	if err != nil {
		return nil, err
	}
	if source.ClientID != clientID {
		return nil, repository.ErrNotFound
	}
	if !source.IsActive() {
		return nil, ErrAccountNotActive
	}
	hasCard, err := s.repo.HasApprovedCard(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	if !hasCard {
		return nil, ErrCardRequired
	}
	if source.Balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}
	if source.IBAN == targetIBAN {
		return nil, ErrSelfTransfer
	}

	exists, err := s.repo.IdempotencyKeyExists(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateRequest
	}

	// The target may be unknown to this ledger; that is allowed and
	// produces a one-legged debit.
	target, err := s.repo.GetAccountByIBAN(ctx, targetIBAN)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if target != nil && !target.IsActive() {
		target = nil
	}

	var debit *models.Transaction
	err = s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		src, tgt, err := lockAccounts(ctx, tx, source.ID, target)
		if err != nil {
			return err
		}

		// Post-lock re-check is the authoritative one.
		if src.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		newSourceBalance := src.Balance.Sub(amount)
		if err := tx.UpdateAccountBalance(ctx, src.ID, newSourceBalance); err != nil {
			return err
		}

		debit = &models.Transaction{
			AccountID:      src.ID,
			Type:           models.TransactionDebit,
			Amount:         amount,
			Currency:       src.Currency,
			Description:    fmt.Sprintf("%s to %s", description, targetIBAN),
			ReferenceIBAN:  targetIBAN,
			BalanceAfter:   newSourceBalance,
			IdempotencyKey: idempotencyKey,
		}
		if err := tx.CreateTransaction(ctx, debit); err != nil {
			return err
		}

		if tgt == nil {
			return nil
		}

		newTargetBalance := tgt.Balance.Add(amount)
		if err := tx.UpdateAccountBalance(ctx, tgt.ID, newTargetBalance); err != nil {
			return err
		}

		credit := &models.Transaction{
			AccountID:            tgt.ID,
			Type:                 models.TransactionCredit,
			Amount:               amount,
			Currency:             tgt.Currency,
			Description:          fmt.Sprintf("%s from %s", description, src.IBAN),
			ReferenceIBAN:        src.IBAN,
			BalanceAfter:         newTargetBalance,
			RelatedTransactionID: &debit.ID,
			IdempotencyKey:       deriveCreditKey(idempotencyKey),
		}
		if err := tx.CreateTransaction(ctx, credit); err != nil {
			return err
		}
		if err := tx.LinkTransaction(ctx, debit.ID, credit.ID); err != nil {
			return err
		}
		debit.RelatedTransactionID = &credit.ID
		return nil
	})
	if err != nil {
		// Losing the race on the unique idempotency index is the
		// storage-level backstop for the advisory check above.
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateRequest
		}
		return nil, err
	}

	if target == nil {
		s.log.Warnf("Transfer %s %s from %s to unknown IBAN %s: debit leg only", amount, source.Currency, source.IBAN, targetIBAN)
	} else {
		s.log.Infof("Transfer %s %s from %s to %s", amount, source.Currency, source.IBAN, targetIBAN)
	}
	return debit, nil
}

// lockAccounts acquires exclusive locks on the source account and, if
// resolved, the target account, always in ascending id order so
// concurrent transfers over the same pair cannot deadlock.
func lockAccounts(ctx context.Context, tx repository.Tx, sourceID uuid.UUID, target *models.Account) (src, tgt *models.Account, err error) {
	if target == nil {
		src, err = tx.GetAccountForUpdate(ctx, sourceID)
		return src, nil, err
	}

	if strings.Compare(sourceID.String(), target.ID.String()) < 0 {
		if src, err = tx.GetAccountForUpdate(ctx, sourceID); err != nil {
			return nil, nil, err
		}
		tgt, err = tx.GetAccountForUpdate(ctx, target.ID)
		return src, tgt, err
	}

	if tgt, err = tx.GetAccountForUpdate(ctx, target.ID); err != nil {
		return nil, nil, err
	}
	src, err = tx.GetAccountForUpdate(ctx, sourceID)
	return src, tgt, err
}

// ListTransactions retrieves an account's ledger, newest first.
// Clients may only read their own accounts.
func (s *Service) ListTransactions(ctx context.Context, requesterID uuid.UUID, role models.Role, accountID uuid.UUID) ([]*models.Transaction, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleBanker && account.ClientID != requesterID {
		return nil, repository.ErrNotFound
	}
	return s.repo.ListTransactions(ctx, accountID)
}
