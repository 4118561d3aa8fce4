package store

import (
	"context"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/bucksops/internal/domain"
)

// Postgres implements Accounts, Ledger and Transfers on a pgx pool.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{db: pool}, nil
}

func (s *Postgres) Close() {
	s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Accounts ---

func (s *Postgres) CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(ctx,
		"INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id, username, password_hash, created_at",
		username, passwordHash,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateOwner
		}
		return nil, fmt.Errorf("user insert failed: %w", err)
	}
	return &u, nil
}

func (s *Postgres) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Postgres) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = $1", username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Postgres) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.Query(ctx, "SELECT id, username, created_at FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Postgres) CreateAccount(ctx context.Context, userID int64, startingBalance decimal.Decimal) (*domain.Account, error) {
	if startingBalance.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	var a domain.Account
	err := s.db.QueryRow(ctx,
		"INSERT INTO accounts (user_id, balance) VALUES ($1, $2) RETURNING id, user_id, balance, created_at",
		userID, startingBalance,
	).Scan(&a.ID, &a.UserID, &a.Balance, &a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateOwner
		}
		return nil, fmt.Errorf("account insert failed: %w", err)
	}
	return &a, nil
}

func (s *Postgres) AccountOf(ctx context.Context, userID int64) (*domain.Account, error) {
	var a domain.Account
	err := s.db.QueryRow(ctx,
		"SELECT id, user_id, balance, created_at FROM accounts WHERE user_id = $1", userID,
	).Scan(&a.ID, &a.UserID, &a.Balance, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Postgres) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var a domain.Account
	err := s.db.QueryRow(ctx,
		"SELECT id, user_id, balance, created_at FROM accounts WHERE id = $1", id,
	).Scan(&a.ID, &a.UserID, &a.Balance, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// --- Ledger ---

func (s *Postgres) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1", accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, domain.ErrNotFound
		}
		return decimal.Decimal{}, err
	}
	return balance, nil
}

// MoveFunds debits and credits inside one transaction. Row locks are
// acquired in ascending account-id order so two concurrent transfers
// between the same pair cannot deadlock.
func (s *Postgres) MoveFunds(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal) error {
	if fromAccountID == toAccountID {
		return domain.ErrInvalidAmount
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	first, second := fromAccountID, toAccountID
	if first > second {
		first, second = second, first
	}

	var balance1, balance2 decimal.Decimal
	err = tx.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", first).Scan(&balance1)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("lock acquisition failed: %w", err)
	}
	err = tx.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", second).Scan(&balance2)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("lock acquisition failed: %w", err)
	}

	fromBalance := balance1
	if fromAccountID != first {
		fromBalance = balance2
	}
	if fromBalance.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, "UPDATE accounts SET balance = balance - $1 WHERE id = $2", amount, fromAccountID)
	if err != nil {
		return fmt.Errorf("debit failed: %w", err)
	}
	_, err = tx.Exec(ctx, "UPDATE accounts SET balance = balance + $1 WHERE id = $2", amount, toAccountID)
	if err != nil {
		return fmt.Errorf("credit failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// --- Transfers ---

func (s *Postgres) Append(ctx context.Context, t *domain.Transfer) (*domain.Transfer, error) {
	stored := *t
	err := s.db.QueryRow(ctx,
		"INSERT INTO transfers (type, status, from_account_id, to_account_id, amount) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at",
		t.Type, t.Status, t.FromAccountID, t.ToAccountID, t.Amount,
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("transfer insert failed: %w", err)
	}
	return &stored, nil
}

func (s *Postgres) Get(ctx context.Context, id int64) (*domain.Transfer, error) {
	var t domain.Transfer
	err := s.db.QueryRow(ctx,
		"SELECT id, type, status, from_account_id, to_account_id, amount, created_at FROM transfers WHERE id = $1", id,
	).Scan(&t.ID, &t.Type, &t.Status, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *Postgres) ListByParticipant(ctx context.Context, accountID int64) ([]domain.Transfer, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, type, status, from_account_id, to_account_id, amount, created_at FROM transfers WHERE from_account_id = $1 OR to_account_id = $1 ORDER BY created_at, id",
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransfers(rows)
}

func (s *Postgres) ListPending(ctx context.Context, payerAccountID int64) ([]domain.Transfer, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, type, status, from_account_id, to_account_id, amount, created_at FROM transfers WHERE from_account_id = $1 AND status = $2 ORDER BY created_at, id",
		payerAccountID, domain.TransferStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransfers(rows)
}

func (s *Postgres) CompareAndSetStatus(ctx context.Context, id int64, expected, next domain.TransferStatus) (bool, error) {
	tag, err := s.db.Exec(ctx,
		"UPDATE transfers SET status = $1 WHERE id = $2 AND status = $3",
		next, id, expected)
	if err != nil {
		return false, fmt.Errorf("status update failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanTransfers(rows pgx.Rows) ([]domain.Transfer, error) {
	var transfers []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		if err := rows.Scan(&t.ID, &t.Type, &t.Status, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.CreatedAt); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
