package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/altbank/backoffice/internal/lifecycle"
	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/repository"
	"github.com/altbank/backoffice/internal/utils"
)

// ApplyForAccount creates a PENDING account application for the
// client. A client may only have one pending application at a time.
func (s *Service) ApplyForAccount(ctx context.Context, clientID uuid.UUID, currency string) (*models.Account, error) {
	if currency == "" {
		currency = models.CurrencyEUR
	}
	if currency != models.CurrencyEUR {
		return nil, ErrInvalidCurrency
	}

	pending, err := s.repo.CountPendingAccounts(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if pending >= 1 {
		return nil, ErrPendingApplication
	}

	iban, err := utils.GenerateIBAN()
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		ClientID: clientID,
		IBAN:     iban,
		Currency: currency,
		Status:   models.StatusPending,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.log.Infof("Account application %s created for client %s", account.IBAN, clientID)
	return account, nil
}

// DecideAccount applies a banker's decision to a pending account
// application. The transition and the entity update commit in one
// atomic unit; deciding a non-PENDING application fails with
// lifecycle.ErrAlreadyDecided.
func (s *Service) DecideAccount(ctx context.Context, accountID, bankerID uuid.UUID, decision lifecycle.Decision, reason string) (*models.Account, error) {
	var account *models.Account
	err := s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		account, err = tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := lifecycle.Decide(account, decision, bankerID, reason, nil); err != nil {
			return err
		}
		return tx.UpdateAccountDecision(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	if account.Status == models.StatusApproved {
		s.log.Infof("Bank account %s approved by %s", account.IBAN, bankerID)
	} else {
		s.log.Infof("Bank account %s rejected by %s: %s", account.IBAN, bankerID, reason)
	}
	s.notifyDecision(ctx, account.ClientID, "bank account", account.Status == models.StatusApproved, reason)
	return account, nil
}

// GetAccount retrieves an account; clients may only see their own.
func (s *Service) GetAccount(ctx context.Context, requesterID uuid.UUID, role models.Role, accountID uuid.UUID) (*models.Account, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleBanker && account.ClientID != requesterID {
		return nil, repository.ErrNotFound
	}
	return account, nil
}

// ListAccounts retrieves accounts visible to the requester. Bankers
// see everything and may filter by client; clients see their own.
func (s *Service) ListAccounts(ctx context.Context, requesterID uuid.UUID, role models.Role, status models.ApplicationStatus, clientID *uuid.UUID) ([]*models.Account, error) {
	filter := repository.AccountFilter{Status: status}
	if role == models.RoleBanker {
		filter.ClientID = clientID
	} else {
		filter.ClientID = &requesterID
	}
	return s.repo.ListAccounts(ctx, filter)
}
