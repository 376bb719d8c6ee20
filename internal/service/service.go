// Package service implements the back-office core: account and card
// application workflows, the deposit/transfer ledger engine and user
// authentication. All operations are atomic against the repository;
// every failure listed in errors.go leaves state unchanged.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/altbank/backoffice/internal/config"
	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
	"github.com/altbank/backoffice/internal/repository"
)

// Notifier delivers out-of-band notices to clients. Implementations
// must never block a ledger operation; the service treats failures
// as log-only.
type Notifier interface {
	ApplicationDecided(user *models.User, kind string, approved bool, reason string) error
	DepositReceived(user *models.User, account *models.Account, amount money.Amount) error
}

// Service handles business logic
type Service struct {
	repo     repository.Store
	log      *logrus.Logger
	config   *config.Config
	notifier Notifier
	now      func() time.Time
}

// NewService initializes a new service. notifier may be nil.
func NewService(repo repository.Store, log *logrus.Logger, cfg *config.Config, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		log:      log,
		config:   cfg,
		notifier: notifier,
		now:      time.Now,
	}
}

// Claims are the JWT claims issued by Login.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Register creates a new user with hashed password
func (s *Service) Register(ctx context.Context, email, name, password string, role models.Role) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s (%s)", user.Email, user.Role)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(s.now().Add(24 * time.Hour)),
		},
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// GetUser retrieves a user by id
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) notifyDecision(ctx context.Context, clientID uuid.UUID, kind string, approved bool, reason string) {
	if s.notifier == nil {
		return
	}
	user, err := s.repo.GetUser(ctx, clientID)
	if err != nil {
		s.log.Errorf("Failed to load client %s for notification: %v", clientID, err)
		return
	}
	if err := s.notifier.ApplicationDecided(user, kind, approved, reason); err != nil {
		s.log.Errorf("Failed to notify %s about %s decision: %v", user.Email, kind, err)
	}
}

func (s *Service) notifyDeposit(ctx context.Context, account *models.Account, amount money.Amount) {
	if s.notifier == nil {
		return
	}
	user, err := s.repo.GetUser(ctx, account.ClientID)
	if err != nil {
		s.log.Errorf("Failed to load client %s for notification: %v", account.ClientID, err)
		return
	}
	if err := s.notifier.DepositReceived(user, account, amount); err != nil {
		s.log.Errorf("Failed to notify %s about deposit: %v", user.Email, err)
	}
}
