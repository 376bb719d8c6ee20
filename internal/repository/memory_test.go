package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
	"github.com/altbank/backoffice/internal/utils"
)

func seedAccount(t *testing.T, store *MemoryStore, balance string) *models.Account {
	t.Helper()
	iban, err := utils.GenerateIBAN()
	require.NoError(t, err)
	account := &models.Account{
		ClientID: uuid.New(),
		IBAN:     iban,
		Currency: models.CurrencyEUR,
		Balance:  money.MustParse(balance),
		Status:   models.StatusApproved,
	}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account
}

func TestMemoryRollbackLeavesNoTrace(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	account := seedAccount(t, store, "100.00")

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.UpdateAccountBalance(ctx, account.ID, money.MustParse("0.00")); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, &models.Transaction{
			AccountID:    account.ID,
			Type:         models.TransactionDebit,
			Amount:       money.MustParse("100.00"),
			Currency:     models.CurrencyEUR,
			BalanceAfter: money.MustParse("0.00"),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", stored.Balance.String(), "rolled-back balance change must not be visible")

	entries, err := store.ListTransactions(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, entries, "rolled-back transaction must not be visible")
}

func TestMemoryCommitAppliesStagedChanges(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	account := seedAccount(t, store, "100.00")

	err := store.WithinTx(ctx, func(tx Tx) error {
		locked, err := tx.GetAccountForUpdate(ctx, account.ID)
		if err != nil {
			return err
		}
		return tx.UpdateAccountBalance(ctx, account.ID, locked.Balance.Add(money.MustParse("50.00")))
	})
	require.NoError(t, err)

	stored, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "150.00", stored.Balance.String())
}

func TestMemoryIdempotencyKeyUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	account := seedAccount(t, store, "100.00")

	newEntry := func() *models.Transaction {
		return &models.Transaction{
			AccountID:      account.ID,
			Type:           models.TransactionDebit,
			Amount:         money.MustParse("10.00"),
			Currency:       models.CurrencyEUR,
			BalanceAfter:   money.MustParse("90.00"),
			IdempotencyKey: "a-key-of-sixteen-chars",
		}
	}

	require.NoError(t, store.WithinTx(ctx, func(tx Tx) error {
		return tx.CreateTransaction(ctx, newEntry())
	}))

	// Same key in a later unit.
	err := store.WithinTx(ctx, func(tx Tx) error {
		return tx.CreateTransaction(ctx, newEntry())
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// Same key twice within one unit.
	err = store.WithinTx(ctx, func(tx Tx) error {
		entry := newEntry()
		entry.IdempotencyKey = "another-key-sixteen-x"
		if err := tx.CreateTransaction(ctx, entry); err != nil {
			return err
		}
		second := newEntry()
		second.IdempotencyKey = "another-key-sixteen-x"
		return tx.CreateTransaction(ctx, second)
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	exists, err := store.IdempotencyKeyExists(ctx, "a-key-of-sixteen-chars")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.IdempotencyKeyExists(ctx, "another-key-sixteen-x")
	require.NoError(t, err)
	assert.False(t, exists, "keys from a failed unit must not be recorded")
}

func TestMemoryReadsReturnCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	account := seedAccount(t, store, "100.00")

	read, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	read.Balance = money.MustParse("999999.00")
	read.Status = models.StatusRejected

	again, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", again.Balance.String())
	assert.Equal(t, models.StatusApproved, again.Status)
}

func TestMemoryLinkTransaction(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	account := seedAccount(t, store, "100.00")

	debit := &models.Transaction{
		AccountID:    account.ID,
		Type:         models.TransactionDebit,
		Amount:       money.MustParse("10.00"),
		Currency:     models.CurrencyEUR,
		BalanceAfter: money.MustParse("90.00"),
	}
	credit := &models.Transaction{
		AccountID:    account.ID,
		Type:         models.TransactionCredit,
		Amount:       money.MustParse("10.00"),
		Currency:     models.CurrencyEUR,
		BalanceAfter: money.MustParse("100.00"),
	}
	require.NoError(t, store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.CreateTransaction(ctx, debit); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, credit); err != nil {
			return err
		}
		return tx.LinkTransaction(ctx, debit.ID, credit.ID)
	}))

	stored, err := store.GetTransaction(ctx, debit.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RelatedTransactionID)
	assert.Equal(t, credit.ID, *stored.RelatedTransactionID)
}

func TestMemoryDuplicateIBAN(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &models.Account{ClientID: uuid.New(), IBAN: "AL00000000000000000009", Currency: models.CurrencyEUR, Status: models.StatusPending}
	require.NoError(t, store.CreateAccount(ctx, first))

	second := &models.Account{ClientID: uuid.New(), IBAN: "AL00000000000000000009", Currency: models.CurrencyEUR, Status: models.StatusPending}
	assert.ErrorIs(t, store.CreateAccount(ctx, second), ErrDuplicateKey)
}
