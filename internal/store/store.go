package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/bucksops/internal/domain"
)

// Accounts is the registry mapping users to their single account.
type Accounts interface {
	// CreateUser inserts a new user. Returns domain.ErrDuplicateOwner if
	// the username is taken.
	CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	// CreateAccount opens the user's account with a starting balance.
	// Returns domain.ErrDuplicateOwner if the user already has one and
	// domain.ErrInvalidAmount if the starting balance is negative.
	CreateAccount(ctx context.Context, userID int64, startingBalance decimal.Decimal) (*domain.Account, error)
	// AccountOf resolves a user's account, domain.ErrNotFound if absent.
	AccountOf(ctx context.Context, userID int64) (*domain.Account, error)
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
}

// Ledger is the durable balance storage. All balance mutation goes
// through MoveFunds; nothing else may read-then-write a balance.
type Ledger interface {
	Balance(ctx context.Context, accountID int64) (decimal.Decimal, error)

	// MoveFunds atomically debits from and credits to by amount. The two
	// mutations are a single unit: either both happen or neither does.
	// Returns domain.ErrInsufficientFunds (no mutation) if the debit
	// would take the balance negative. Concurrent calls touching the
	// same account serialize; disjoint pairs proceed in parallel.
	MoveFunds(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal) error
}

// Transfers is the append/query log of transfer records.
type Transfers interface {
	// Append assigns a monotonic id, stamps CreatedAt and returns the
	// stored record. Ids are never reused.
	Append(ctx context.Context, t *domain.Transfer) (*domain.Transfer, error)
	Get(ctx context.Context, id int64) (*domain.Transfer, error)
	// ListByParticipant returns transfers where the account is either
	// party, ordered by CreatedAt ascending (id breaks ties).
	ListByParticipant(ctx context.Context, accountID int64) ([]domain.Transfer, error)
	// ListPending returns PENDING transfers awaiting the given payer
	// account's decision, same ordering.
	ListPending(ctx context.Context, payerAccountID int64) ([]domain.Transfer, error)
	// CompareAndSetStatus transitions the status only if it still equals
	// expected. Returns false with no mutation otherwise. This is the
	// exactly-once primitive for resolution.
	CompareAndSetStatus(ctx context.Context, id int64, expected, next domain.TransferStatus) (bool, error)
}
