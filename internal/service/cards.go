package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/altbank/backoffice/internal/lifecycle"
	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
	"github.com/altbank/backoffice/internal/repository"
	"github.com/altbank/backoffice/internal/utils"
)

// MinimumCardSalary is the declared monthly income below which a card
// application is rejected at creation time.
var MinimumCardSalary = money.MustParse("500.00")

// ApplyForCard creates a card application against one of the client's
// approved accounts. Applications below the minimum declared salary
// are persisted already REJECTED without ever entering PENDING.
func (s *Service) ApplyForCard(ctx context.Context, clientID, accountID uuid.UUID, monthlySalary money.Amount) (*models.Card, error) {
	if !monthlySalary.IsPositive() {
		return nil, ErrInvalidAmount
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.ClientID != clientID {
		return nil, ErrForbidden
	}
	if !account.IsActive() {
		return nil, ErrAccountNotActive
	}

	hasApproved, err := s.repo.HasApprovedCard(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if hasApproved {
		return nil, ErrActiveCardExists
	}
	hasPending, err := s.repo.HasPendingCard(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if hasPending {
		return nil, ErrPendingCard
	}

	number, err := utils.GenerateCardNumber()
	if err != nil {
		return nil, err
	}

	card := &models.Card{
		ClientID:      clientID,
		AccountID:     accountID,
		CardNumber:    number,
		MonthlySalary: monthlySalary,
		Status:        models.StatusPending,
	}
	if monthlySalary.LessThan(MinimumCardSalary) {
		card.Status = models.StatusRejected
		card.RejectionReason = fmt.Sprintf(
			"Monthly salary must be at least €%s. Your declared salary: €%s",
			MinimumCardSalary, monthlySalary,
		)
	}

	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, err
	}

	if card.Status == models.StatusRejected {
		s.log.Infof("Card %s auto-rejected for account %s: declared salary €%s", card.MaskedNumber(), account.IBAN, monthlySalary)
	} else {
		s.log.Infof("Card application %s created for account %s", card.MaskedNumber(), account.IBAN)
	}
	return card, nil
}

// DecideCard applies a banker's decision to a pending card
// application. Approval stamps the expiry date as part of the same
// transition.
func (s *Service) DecideCard(ctx context.Context, cardID, bankerID uuid.UUID, decision lifecycle.Decision, reason string) (*models.Card, error) {
	var card *models.Card
	err := s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		card, err = tx.GetCardForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		onApprove := func() { card.StampExpiry(s.now()) }
		if err := lifecycle.Decide(card, decision, bankerID, reason, onApprove); err != nil {
			return err
		}
		return tx.UpdateCardDecision(ctx, card)
	})
	if err != nil {
		return nil, err
	}

	if card.Status == models.StatusApproved {
		s.log.Infof("Card %s approved by %s", card.MaskedNumber(), bankerID)
	} else {
		s.log.Infof("Card %s rejected by %s: %s", card.MaskedNumber(), bankerID, reason)
	}
	s.notifyDecision(ctx, card.ClientID, "debit card", card.Status == models.StatusApproved, reason)
	return card, nil
}

// GetCard retrieves a card; clients may only see their own.
func (s *Service) GetCard(ctx context.Context, requesterID uuid.UUID, role models.Role, cardID uuid.UUID) (*models.Card, error) {
	card, err := s.repo.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleBanker && card.ClientID != requesterID {
		return nil, repository.ErrNotFound
	}
	return card, nil
}

// ListCards retrieves cards visible to the requester.
func (s *Service) ListCards(ctx context.Context, requesterID uuid.UUID, role models.Role, status models.ApplicationStatus, accountID *uuid.UUID) ([]*models.Card, error) {
	filter := repository.CardFilter{Status: status, AccountID: accountID}
	if role != models.RoleBanker {
		filter.ClientID = &requesterID
	}
	return s.repo.ListCards(ctx, filter)
}

// SweepExpiredCards logs approved cards whose expiry date has passed.
// Run nightly by the scheduler.
func (s *Service) SweepExpiredCards(ctx context.Context) error {
	cards, err := s.repo.ListExpiredCards(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to sweep expired cards: %w", err)
	}
	for _, card := range cards {
		s.log.Warnf("Card %s for account %s expired on %s", card.MaskedNumber(), card.AccountID, card.ExpiryDate.Format("2006-01-02"))
	}
	s.log.Infof("Expiry sweep finished: %d expired cards", len(cards))
	return nil
}
