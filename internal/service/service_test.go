package service

import (
	"context"
	"io"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altbank/backoffice/internal/config"
	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
	"github.com/altbank/backoffice/internal/repository"
	"github.com/altbank/backoffice/internal/utils"
)

func newTestService(t *testing.T) (*Service, *repository.MemoryStore) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	repo := repository.NewMemoryStore()
	cfg := &config.Config{JWTSecret: "test-secret-do-not-use"}
	return NewService(repo, log, cfg, nil), repo
}

func seedUser(t *testing.T, repo *repository.MemoryStore, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Email:        uuid.NewString() + "@example.com",
		Name:         "Test User",
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func seedApprovedAccount(t *testing.T, repo *repository.MemoryStore, clientID uuid.UUID, balance string) *models.Account {
	t.Helper()
	iban, err := utils.GenerateIBAN()
	require.NoError(t, err)
	account := &models.Account{
		ClientID: clientID,
		IBAN:     iban,
		Currency: models.CurrencyEUR,
		Balance:  money.MustParse(balance),
		Status:   models.StatusApproved,
	}
	require.NoError(t, repo.CreateAccount(context.Background(), account))
	return account
}

func seedApprovedCard(t *testing.T, repo *repository.MemoryStore, clientID, accountID uuid.UUID) *models.Card {
	t.Helper()
	number, err := utils.GenerateCardNumber()
	require.NoError(t, err)
	card := &models.Card{
		ClientID:      clientID,
		AccountID:     accountID,
		CardNumber:    number,
		MonthlySalary: money.MustParse("2000.00"),
		Status:        models.StatusApproved,
	}
	require.NoError(t, repo.CreateCard(context.Background(), card))
	return card
}

func accountBalance(t *testing.T, repo *repository.MemoryStore, id uuid.UUID) money.Amount {
	t.Helper()
	account, err := repo.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "client@example.com", "Ada Client", "hunter2hunter2", models.RoleClient)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.NotEqual(t, "hunter2hunter2", user.PasswordHash)

	token, err := svc.Login(ctx, "client@example.com", "hunter2hunter2")
	require.NoError(t, err)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(svc.config.JWTSecret), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, models.RoleClient, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "client@example.com", "Ada Client", "hunter2hunter2", models.RoleClient)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "client@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "client@example.com", "Ada", "hunter2hunter2", models.RoleClient)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "client@example.com", "Eve", "hunter2hunter2", models.RoleClient)
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
}
