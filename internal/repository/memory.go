package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
)

// MemoryStore implements Store in memory. Atomic units run under a
// single write lock and stage their changes in working copies, so a
// failed unit leaves the committed state untouched. Used as the dev
// backend and by service-level tests.
type MemoryStore struct {
	mu              sync.RWMutex
	users           map[uuid.UUID]*models.User
	emailIndex      map[string]uuid.UUID
	accounts        map[uuid.UUID]*models.Account
	ibanIndex       map[string]uuid.UUID
	cards           map[uuid.UUID]*models.Card
	transactions    map[uuid.UUID]*models.Transaction
	txOrder         []uuid.UUID
	idempotencyKeys map[string]uuid.UUID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:           make(map[uuid.UUID]*models.User),
		emailIndex:      make(map[string]uuid.UUID),
		accounts:        make(map[uuid.UUID]*models.Account),
		ibanIndex:       make(map[string]uuid.UUID),
		cards:           make(map[uuid.UUID]*models.Card),
		transactions:    make(map[uuid.UUID]*models.Transaction),
		idempotencyKeys: make(map[string]uuid.UUID),
	}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.ApprovedBy != nil {
		id := *a.ApprovedBy
		c.ApprovedBy = &id
	}
	return &c
}

func cloneCard(card *models.Card) *models.Card {
	c := *card
	if card.ApprovedBy != nil {
		id := *card.ApprovedBy
		c.ApprovedBy = &id
	}
	if card.ExpiryDate != nil {
		expiry := *card.ExpiryDate
		c.ExpiryDate = &expiry
	}
	return &c
}

func cloneTransaction(trx *models.Transaction) *models.Transaction {
	c := *trx
	if trx.RelatedTransactionID != nil {
		id := *trx.RelatedTransactionID
		c.RelatedTransactionID = &id
	}
	return &c
}

// ---- users ----

// CreateUser stores a new user, enforcing email uniqueness
func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emailIndex[user.Email]; exists {
		return fmt.Errorf("email %q: %w", user.Email, ErrDuplicateKey)
	}
	ensureID(&user.ID)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	c := *user
	s.users[user.ID] = &c
	s.emailIndex[user.Email] = user.ID
	return nil
}

// GetUser retrieves a user by id
func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	c := *user
	return &c, nil
}

// GetUserByEmail retrieves a user by email
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emailIndex[email]
	if !ok {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	c := *s.users[id]
	return &c, nil
}

// ---- accounts ----

// CreateAccount stores a new account, enforcing IBAN uniqueness
func (s *MemoryStore) CreateAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ibanIndex[account.IBAN]; exists {
		return fmt.Errorf("iban %q: %w", account.IBAN, ErrDuplicateKey)
	}
	ensureID(&account.ID)
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	s.accounts[account.ID] = cloneAccount(account)
	s.ibanIndex[account.IBAN] = account.ID
	return nil
}

// GetAccount retrieves an account by id
func (s *MemoryStore) GetAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account: %w", ErrNotFound)
	}
	return cloneAccount(account), nil
}

// GetAccountByIBAN retrieves an account by its external identifier
func (s *MemoryStore) GetAccountByIBAN(_ context.Context, iban string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ibanIndex[iban]
	if !ok {
		return nil, fmt.Errorf("account: %w", ErrNotFound)
	}
	return cloneAccount(s.accounts[id]), nil
}

// ListAccounts retrieves accounts matching the filter, newest first
func (s *MemoryStore) ListAccounts(_ context.Context, filter AccountFilter) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []*models.Account
	for _, account := range s.accounts {
		if filter.ClientID != nil && account.ClientID != *filter.ClientID {
			continue
		}
		if filter.Status != "" && account.Status != filter.Status {
			continue
		}
		accounts = append(accounts, cloneAccount(account))
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
	return accounts, nil
}

// CountPendingAccounts counts a client's PENDING account applications
func (s *MemoryStore) CountPendingAccounts(_ context.Context, clientID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, account := range s.accounts {
		if account.ClientID == clientID && account.Status == models.StatusPending {
			count++
		}
	}
	return count, nil
}

// ---- cards ----

// CreateCard stores a new card
func (s *MemoryStore) CreateCard(_ context.Context, card *models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ensureID(&card.ID)
	now := time.Now()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now
	s.cards[card.ID] = cloneCard(card)
	return nil
}

// GetCard retrieves a card by id
func (s *MemoryStore) GetCard(_ context.Context, id uuid.UUID) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.cards[id]
	if !ok {
		return nil, fmt.Errorf("card: %w", ErrNotFound)
	}
	return cloneCard(card), nil
}

// ListCards retrieves cards matching the filter, newest first
func (s *MemoryStore) ListCards(_ context.Context, filter CardFilter) ([]*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cards []*models.Card
	for _, card := range s.cards {
		if filter.ClientID != nil && card.ClientID != *filter.ClientID {
			continue
		}
		if filter.AccountID != nil && card.AccountID != *filter.AccountID {
			continue
		}
		if filter.Status != "" && card.Status != filter.Status {
			continue
		}
		cards = append(cards, cloneCard(card))
	}
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].CreatedAt.After(cards[j].CreatedAt)
	})
	return cards, nil
}

// HasApprovedCard reports whether the account has an APPROVED card
func (s *MemoryStore) HasApprovedCard(_ context.Context, accountID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasCardWithStatus(accountID, models.StatusApproved), nil
}

// HasPendingCard reports whether the account has a PENDING card application
func (s *MemoryStore) HasPendingCard(_ context.Context, accountID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasCardWithStatus(accountID, models.StatusPending), nil
}

func (s *MemoryStore) hasCardWithStatus(accountID uuid.UUID, status models.ApplicationStatus) bool {
	for _, card := range s.cards {
		if card.AccountID == accountID && card.Status == status {
			return true
		}
	}
	return false
}

// ListExpiredCards retrieves APPROVED cards whose expiry date has passed
func (s *MemoryStore) ListExpiredCards(_ context.Context, asOf time.Time) ([]*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cards []*models.Card
	for _, card := range s.cards {
		if card.Status == models.StatusApproved && card.ExpiryDate != nil && card.ExpiryDate.Before(asOf) {
			cards = append(cards, cloneCard(card))
		}
	}
	return cards, nil
}

// ---- transactions ----

// GetTransaction retrieves a transaction by id
func (s *MemoryStore) GetTransaction(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trx, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction: %w", ErrNotFound)
	}
	return cloneTransaction(trx), nil
}

// ListTransactions retrieves an account's ledger entries, newest first
func (s *MemoryStore) ListTransactions(_ context.Context, accountID uuid.UUID) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var transactions []*models.Transaction
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		trx := s.transactions[s.txOrder[i]]
		if trx.AccountID == accountID {
			transactions = append(transactions, cloneTransaction(trx))
		}
	}
	return transactions, nil
}

// IdempotencyKeyExists reports whether a transaction already carries the key
func (s *MemoryStore) IdempotencyKeyExists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.idempotencyKeys[key]
	return exists, nil
}

// ---- atomic units ----

// WithinTx runs fn under the store's write lock. Changes are staged in
// working copies and applied to the committed state only when fn
// returns nil.
func (s *MemoryStore) WithinTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:    s,
		accounts: make(map[uuid.UUID]*models.Account),
		cards:    make(map[uuid.UUID]*models.Card),
		keys:     make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memoryTx struct {
	store        *MemoryStore
	accounts     map[uuid.UUID]*models.Account
	cards        map[uuid.UUID]*models.Card
	transactions []*models.Transaction
	keys         map[string]bool
}

func (t *memoryTx) stagedAccount(id uuid.UUID) (*models.Account, error) {
	if account, ok := t.accounts[id]; ok {
		return account, nil
	}
	committed, ok := t.store.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account: %w", ErrNotFound)
	}
	staged := cloneAccount(committed)
	t.accounts[id] = staged
	return staged, nil
}

func (t *memoryTx) stagedCard(id uuid.UUID) (*models.Card, error) {
	if card, ok := t.cards[id]; ok {
		return card, nil
	}
	committed, ok := t.store.cards[id]
	if !ok {
		return nil, fmt.Errorf("card: %w", ErrNotFound)
	}
	staged := cloneCard(committed)
	t.cards[id] = staged
	return staged, nil
}

// GetAccountForUpdate reads an account into the unit's working set
func (t *memoryTx) GetAccountForUpdate(_ context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := t.stagedAccount(id)
	if err != nil {
		return nil, err
	}
	return cloneAccount(account), nil
}

// GetCardForUpdate reads a card into the unit's working set
func (t *memoryTx) GetCardForUpdate(_ context.Context, id uuid.UUID) (*models.Card, error) {
	card, err := t.stagedCard(id)
	if err != nil {
		return nil, err
	}
	return cloneCard(card), nil
}

// UpdateAccountBalance stages a new balance for the account
func (t *memoryTx) UpdateAccountBalance(_ context.Context, accountID uuid.UUID, balance money.Amount) error {
	account, err := t.stagedAccount(accountID)
	if err != nil {
		return err
	}
	account.Balance = balance
	account.UpdatedAt = time.Now()
	return nil
}

// UpdateAccountDecision stages a decided account's status fields
func (t *memoryTx) UpdateAccountDecision(_ context.Context, decided *models.Account) error {
	account, err := t.stagedAccount(decided.ID)
	if err != nil {
		return err
	}
	account.Status = decided.Status
	account.RejectionReason = decided.RejectionReason
	if decided.ApprovedBy != nil {
		id := *decided.ApprovedBy
		account.ApprovedBy = &id
	}
	account.UpdatedAt = time.Now()
	return nil
}

// UpdateCardDecision stages a decided card's status fields
func (t *memoryTx) UpdateCardDecision(_ context.Context, decided *models.Card) error {
	card, err := t.stagedCard(decided.ID)
	if err != nil {
		return err
	}
	card.Status = decided.Status
	card.RejectionReason = decided.RejectionReason
	if decided.ApprovedBy != nil {
		id := *decided.ApprovedBy
		card.ApprovedBy = &id
	}
	if decided.ExpiryDate != nil {
		expiry := *decided.ExpiryDate
		card.ExpiryDate = &expiry
	}
	card.UpdatedAt = time.Now()
	return nil
}

// CreateTransaction stages a ledger entry, enforcing idempotency key
// uniqueness against both committed and staged entries
func (t *memoryTx) CreateTransaction(_ context.Context, trx *models.Transaction) error {
	if trx.IdempotencyKey != "" {
		if _, exists := t.store.idempotencyKeys[trx.IdempotencyKey]; exists {
			return fmt.Errorf("idempotency key: %w", ErrDuplicateKey)
		}
		if t.keys[trx.IdempotencyKey] {
			return fmt.Errorf("idempotency key: %w", ErrDuplicateKey)
		}
		t.keys[trx.IdempotencyKey] = true
	}
	ensureID(&trx.ID)
	if trx.CreatedAt.IsZero() {
		trx.CreatedAt = time.Now()
	}
	t.transactions = append(t.transactions, cloneTransaction(trx))
	return nil
}

// LinkTransaction points a staged ledger entry at the other transfer leg
func (t *memoryTx) LinkTransaction(_ context.Context, id, relatedID uuid.UUID) error {
	for _, trx := range t.transactions {
		if trx.ID == id {
			related := relatedID
			trx.RelatedTransactionID = &related
			return nil
		}
	}
	committed, ok := t.store.transactions[id]
	if !ok {
		return fmt.Errorf("transaction: %w", ErrNotFound)
	}
	staged := cloneTransaction(committed)
	related := relatedID
	staged.RelatedTransactionID = &related
	t.transactions = append(t.transactions, staged)
	return nil
}

// HasApprovedCard reports whether the account has an APPROVED card,
// staged cards included
func (t *memoryTx) HasApprovedCard(_ context.Context, accountID uuid.UUID) (bool, error) {
	for _, card := range t.cards {
		if card.AccountID == accountID && card.Status == models.StatusApproved {
			return true, nil
		}
	}
	for id, card := range t.store.cards {
		if _, staged := t.cards[id]; staged {
			continue
		}
		if card.AccountID == accountID && card.Status == models.StatusApproved {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) commit() {
	for id, account := range t.accounts {
		t.store.accounts[id] = account
	}
	for id, card := range t.cards {
		t.store.cards[id] = card
	}
	for _, trx := range t.transactions {
		if _, exists := t.store.transactions[trx.ID]; !exists {
			t.store.txOrder = append(t.store.txOrder, trx.ID)
		}
		t.store.transactions[trx.ID] = trx
		if trx.IdempotencyKey != "" {
			t.store.idempotencyKeys[trx.IdempotencyKey] = trx.ID
		}
	}
}
