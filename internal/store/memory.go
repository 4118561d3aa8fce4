package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/bucksops/internal/domain"
)

// Memory is a thread-safe in-memory implementation of Accounts, Ledger
// and Transfers, used by tests and local development. It honors the same
// contracts as Postgres: negative-balance guard, per-account
// serialization via a lock per row, lock ordering by ascending id for
// two-account moves, and compare-and-set status transitions.
type Memory struct {
	mu            sync.RWMutex
	users         map[int64]*domain.User
	usernames     map[string]int64
	accounts      map[int64]*memAccount
	accountByUser map[int64]int64
	nextUserID    int64
	nextAccountID int64

	tmu            sync.RWMutex
	transfers      map[int64]*domain.Transfer
	order          []int64
	nextTransferID int64
}

type memAccount struct {
	mu sync.Mutex
	domain.Account
}

func NewMemory() *Memory {
	return &Memory{
		users:         make(map[int64]*domain.User),
		usernames:     make(map[string]int64),
		accounts:      make(map[int64]*memAccount),
		accountByUser: make(map[int64]int64),
		transfers:     make(map[int64]*domain.Transfer),
	}
}

// --- Accounts ---

func (m *Memory) CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.usernames[username]; exists {
		return nil, domain.ErrDuplicateOwner
	}
	m.nextUserID++
	u := &domain.User{
		ID:           m.nextUserID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	m.usernames[username] = u.ID
	copied := *u
	return &copied, nil
}

func (m *Memory) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *m.users[id]
	return &copied, nil
}

func (m *Memory) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]domain.User, 0, len(m.users))
	for id := int64(1); id <= m.nextUserID; id++ {
		if u, ok := m.users[id]; ok {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (m *Memory) CreateAccount(ctx context.Context, userID int64, startingBalance decimal.Decimal) (*domain.Account, error) {
	if startingBalance.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accountByUser[userID]; exists {
		return nil, domain.ErrDuplicateOwner
	}
	m.nextAccountID++
	a := &memAccount{Account: domain.Account{
		ID:        m.nextAccountID,
		UserID:    userID,
		Balance:   startingBalance,
		CreatedAt: time.Now(),
	}}
	m.accounts[a.ID] = a
	m.accountByUser[userID] = a.ID
	copied := a.Account
	return &copied, nil
}

func (m *Memory) AccountOf(ctx context.Context, userID int64) (*domain.Account, error) {
	m.mu.RLock()
	id, ok := m.accountByUser[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.GetAccount(ctx, id)
}

func (m *Memory) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	m.mu.RLock()
	a, ok := m.accounts[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	a.mu.Lock()
	copied := a.Account
	a.mu.Unlock()
	return &copied, nil
}

// --- Ledger ---

func (m *Memory) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	a, err := m.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return a.Balance, nil
}

func (m *Memory) MoveFunds(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal) error {
	if fromAccountID == toAccountID {
		return domain.ErrInvalidAmount
	}
	m.mu.RLock()
	from, okFrom := m.accounts[fromAccountID]
	to, okTo := m.accounts[toAccountID]
	m.mu.RUnlock()
	if !okFrom || !okTo {
		return domain.ErrNotFound
	}

	// Lock both rows in ascending id order to avoid deadlock when two
	// transfers cross between the same pair.
	first, second := from, to
	if first.ID > second.ID {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if from.Balance.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}
	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	return nil
}

// --- Transfers ---

func (m *Memory) Append(ctx context.Context, t *domain.Transfer) (*domain.Transfer, error) {
	m.tmu.Lock()
	defer m.tmu.Unlock()
	m.nextTransferID++
	stored := *t
	stored.ID = m.nextTransferID
	stored.CreatedAt = time.Now()
	m.transfers[stored.ID] = &stored
	m.order = append(m.order, stored.ID)
	copied := stored
	return &copied, nil
}

func (m *Memory) Get(ctx context.Context, id int64) (*domain.Transfer, error) {
	m.tmu.RLock()
	defer m.tmu.RUnlock()
	t, ok := m.transfers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *Memory) ListByParticipant(ctx context.Context, accountID int64) ([]domain.Transfer, error) {
	m.tmu.RLock()
	defer m.tmu.RUnlock()
	var transfers []domain.Transfer
	for _, id := range m.order {
		if t := m.transfers[id]; t.Involves(accountID) {
			transfers = append(transfers, *t)
		}
	}
	return transfers, nil
}

func (m *Memory) ListPending(ctx context.Context, payerAccountID int64) ([]domain.Transfer, error) {
	m.tmu.RLock()
	defer m.tmu.RUnlock()
	var transfers []domain.Transfer
	for _, id := range m.order {
		if t := m.transfers[id]; t.FromAccountID == payerAccountID && t.Status == domain.TransferStatusPending {
			transfers = append(transfers, *t)
		}
	}
	return transfers, nil
}

func (m *Memory) CompareAndSetStatus(ctx context.Context, id int64, expected, next domain.TransferStatus) (bool, error) {
	m.tmu.Lock()
	defer m.tmu.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if t.Status != expected {
		return false, nil
	}
	t.Status = next
	return true, nil
}
