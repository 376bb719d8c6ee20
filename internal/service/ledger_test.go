package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
	"github.com/altbank/backoffice/internal/repository"
)

const testKey = "test-idempotency-key-0001"

func TestDeposit(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	banker := seedUser(t, repo, models.RoleBanker)
	account := seedApprovedAccount(t, repo, client.ID, "100.00")

	trx, err := svc.Deposit(ctx, account.ID, banker.ID, money.MustParse("49.99"), "")
	require.NoError(t, err)

	assert.Equal(t, models.TransactionCredit, trx.Type)
	assert.Equal(t, "149.99", trx.BalanceAfter.String())
	assert.Equal(t, "Deposit by banker", trx.Description)
	assert.Equal(t, "149.99", accountBalance(t, repo, account.ID).String())
}

func TestDepositRequiresApprovedAccount(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	banker := seedUser(t, repo, models.RoleBanker)

	pending := &models.Account{
		ClientID: client.ID,
		IBAN:     "AL00000000000000000002",
		Currency: models.CurrencyEUR,
		Status:   models.StatusPending,
	}
	require.NoError(t, repo.CreateAccount(ctx, pending))

	_, err := svc.Deposit(ctx, pending.ID, banker.ID, money.MustParse("10.00"), "")
	assert.ErrorIs(t, err, ErrAccountNotActive)
	assert.Equal(t, "0.00", accountBalance(t, repo, pending.ID).String())
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	banker := seedUser(t, repo, models.RoleBanker)
	account := seedApprovedAccount(t, repo, client.ID, "100.00")

	for _, amount := range []string{"0.00", "-5.00"} {
		_, err := svc.Deposit(ctx, account.ID, banker.ID, money.MustParse(amount), "")
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %s", amount)
	}
	assert.Equal(t, "100.00", accountBalance(t, repo, account.ID).String())
}

func TestTransferTwoLegs(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	other := seedUser(t, repo, models.RoleClient)
	source := seedApprovedAccount(t, repo, client.ID, "1000.00")
	seedApprovedCard(t, repo, client.ID, source.ID)
	target := seedApprovedAccount(t, repo, other.ID, "0.00")

	debit, err := svc.Transfer(ctx, client.ID, source.ID, target.IBAN, money.MustParse("250.00"), "Rent", testKey)
	require.NoError(t, err)

	assert.Equal(t, "750.00", accountBalance(t, repo, source.ID).String())
	assert.Equal(t, "250.00", accountBalance(t, repo, target.ID).String())

	assert.Equal(t, models.TransactionDebit, debit.Type)
	assert.Equal(t, "750.00", debit.BalanceAfter.String())
	assert.Equal(t, "Rent to "+target.IBAN, debit.Description)
	assert.Equal(t, target.IBAN, debit.ReferenceIBAN)
	assert.Equal(t, testKey, debit.IdempotencyKey)
	require.NotNil(t, debit.RelatedTransactionID)

	credit, err := repo.GetTransaction(ctx, *debit.RelatedTransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCredit, credit.Type)
	assert.Equal(t, target.ID, credit.AccountID)
	assert.Equal(t, "250.00", credit.BalanceAfter.String())
	assert.Equal(t, "Rent from "+source.IBAN, credit.Description)
	assert.Equal(t, source.IBAN, credit.ReferenceIBAN)
	assert.Equal(t, deriveCreditKey(testKey), credit.IdempotencyKey)
	require.NotNil(t, credit.RelatedTransactionID)
	assert.Equal(t, debit.ID, *credit.RelatedTransactionID)
}

func TestTransferSumOfBalancesInvariant(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	source := seedApprovedAccount(t, repo, client.ID, "600.00")
	seedApprovedCard(t, repo, client.ID, source.ID)
	target := seedApprovedAccount(t, repo, client.ID, "400.00")

	before := accountBalance(t, repo, source.ID).Add(accountBalance(t, repo, target.ID))

	_, err := svc.Transfer(ctx, client.ID, source.ID, target.IBAN, money.MustParse("123.45"), "", testKey)
	require.NoError(t, err)

	after := accountBalance(t, repo, source.ID).Add(accountBalance(t, repo, target.ID))
	assert.True(t, before.Equal(after), "sum of balances changed: %s -> %s", before, after)
}

func TestTransferDuplicateKey(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	other := seedUser(t, repo, models.RoleClient)
	source := seedApprovedAccount(t, repo, client.ID, "1000.00")
	seedApprovedCard(t, repo, client.ID, source.ID)
	target := seedApprovedAccount(t, repo, other.ID, "0.00")

	_, err := svc.Transfer(ctx, client.ID, source.ID, target.IBAN, money.MustParse("250.00"), "", testKey)
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, client.ID, source.ID, target.IBAN, money.MustParse("250.00"), "", testKey)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	// Ledger state equals the state after the first call alone.
	assert.Equal(t, "750.00", accountBalance(t, repo, source.ID).String())
	assert.Equal(t, "250.00", accountBalance(t, repo, target.ID).String())

	entries, err := repo.ListTransactions(ctx, source.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTransferInsufficientFunds(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	source := seedApprovedAccount(t, repo, client.ID, "100.00")
	seedApprovedCard(t, repo, client.ID, source.ID)
	target := seedApprovedAccount(t, repo, client.ID, "0.00")

	_, err := svc.Transfer(ctx, client.ID, source.ID, target.IBAN, money.MustParse("500.00"), "", testKey)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, "100.00", accountBalance(t, repo, source.ID).String())
	entries, err := repo.ListTransactions(ctx, source.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTransferValidation(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	source := seedApprovedAccount(t, repo, client.ID, "1000.00")
	seedApprovedCard(t, repo, client.ID, source.ID)
	target := seedApprovedAccount(t, repo, client.ID, "0.00")

	_, err := svc.Transfer(ctx, client.ID, source.ID, target.IBAN, money.MustParse("10.00"), "", "short-key")
	assert.ErrorIs(t, err, ErrInvalidIdempotencyKey)

	_, err = svc.Transfer(ctx, client.ID, source.ID, "not-an-iban", money.MustParse("10.00"), "", testKey)
	assert.ErrorIs(t, err, ErrInvalidIBAN)

	_, err = svc.Transfer(ctx, client.ID, source.ID, target.IBAN, money.MustParse("0.00"), "", testKey)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Transfer(ctx, client.ID, source.ID, source.IBAN, money.MustParse("10.00"), "", testKey)
	assert.ErrorIs(t, err, ErrSelfTransfer)

	assert.Equal(t, "1000.00", accountBalance(t, repo, source.ID).String())
}

func TestTransferRequiresLinkedCard(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	source := seedApprovedAccount(t, repo, client.ID, "1000.00")
	target := seedApprovedAccount(t, repo, client.ID, "0.00")

	_, err := svc.Transfer(ctx, client.ID, source.ID, target.IBAN, money.MustParse("10.00"), "", testKey)
	assert.ErrorIs(t, err, ErrCardRequired)
}

func TestTransferRequiresOwnership(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	intruder := seedUser(t, repo, models.RoleClient)
	source := seedApprovedAccount(t, repo, client.ID, "1000.00")
	seedApprovedCard(t, repo, client.ID, source.ID)
	target := seedApprovedAccount(t, repo, client.ID, "0.00")

	_, err := svc.Transfer(ctx, intruder.ID, source.ID, target.IBAN, money.MustParse("10.00"), "", testKey)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, "1000.00", accountBalance(t, repo, source.ID).String())
}

func TestTransferToUnknownIBANIsOneLegged(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	source := seedApprovedAccount(t, repo, client.ID, "1000.00")
	seedApprovedCard(t, repo, client.ID, source.ID)

	debit, err := svc.Transfer(ctx, client.ID, source.ID, "DE89370400440532013000", money.MustParse("100.00"), "", testKey)
	require.NoError(t, err)

	assert.Equal(t, "900.00", accountBalance(t, repo, source.ID).String())
	assert.Nil(t, debit.RelatedTransactionID, "no credit leg for an unknown target")
	assert.Equal(t, "900.00", debit.BalanceAfter.String())
}

func TestTransferToPendingTargetIsOneLegged(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	source := seedApprovedAccount(t, repo, client.ID, "1000.00")
	seedApprovedCard(t, repo, client.ID, source.ID)

	pending := &models.Account{
		ClientID: client.ID,
		IBAN:     "AL00000000000000000001",
		Currency: models.CurrencyEUR,
		Status:   models.StatusPending,
	}
	require.NoError(t, repo.CreateAccount(ctx, pending))

	debit, err := svc.Transfer(ctx, client.ID, source.ID, pending.IBAN, money.MustParse("100.00"), "", testKey)
	require.NoError(t, err)

	assert.Nil(t, debit.RelatedTransactionID)
	assert.Equal(t, "0.00", accountBalance(t, repo, pending.ID).String(), "pending account must not be credited")
	assert.Equal(t, "900.00", accountBalance(t, repo, source.ID).String())
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	source := seedApprovedAccount(t, repo, client.ID, "1000.00")
	seedApprovedCard(t, repo, client.ID, source.ID)
	target := seedApprovedAccount(t, repo, client.ID, "0.00")

	const attempts = 10
	amount := money.MustParse("200.00") // only 5 of 10 can fit

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("concurrent-transfer-key-%02d", i)
			_, errs[i] = svc.Transfer(ctx, client.ID, source.ID, target.IBAN, amount, "", key)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, "0.00", accountBalance(t, repo, source.ID).String())
	assert.Equal(t, "1000.00", accountBalance(t, repo, target.ID).String())
	assert.False(t, accountBalance(t, repo, source.ID).IsNegative())
}

func TestConcurrentSameKeySingleWinner(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	source := seedApprovedAccount(t, repo, client.ID, "1000.00")
	seedApprovedCard(t, repo, client.ID, source.ID)
	target := seedApprovedAccount(t, repo, client.ID, "0.00")

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Transfer(ctx, client.ID, source.ID, target.IBAN, money.MustParse("100.00"), "", testKey)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateRequest)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of the racing requests may win")
	assert.Equal(t, "900.00", accountBalance(t, repo, source.ID).String())
	assert.Equal(t, "100.00", accountBalance(t, repo, target.ID).String())
}

func TestListTransactionsNewestFirst(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := seedUser(t, repo, models.RoleClient)
	banker := seedUser(t, repo, models.RoleBanker)
	account := seedApprovedAccount(t, repo, client.ID, "0.00")

	for _, amount := range []string{"10.00", "20.00", "30.00"} {
		_, err := svc.Deposit(ctx, account.ID, banker.ID, money.MustParse(amount), "")
		require.NoError(t, err)
	}

	entries, err := svc.ListTransactions(ctx, client.ID, models.RoleClient, account.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "30.00", entries[0].Amount.String())
	assert.Equal(t, "10.00", entries[2].Amount.String())

	// Another client cannot read this ledger.
	intruder := seedUser(t, repo, models.RoleClient)
	_, err = svc.ListTransactions(ctx, intruder.ID, models.RoleClient, account.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
