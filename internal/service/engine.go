package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/punchamoorthee/bucksops/internal/domain"
	"github.com/punchamoorthee/bucksops/internal/store"
)

// Engine is the transfer state machine. It owns no persistent state of
// its own: it validates participants and amounts, then orchestrates
// atomic reads and writes across the registry, the ledger and the
// transfer log.
type Engine struct {
	accounts store.Accounts
	ledger   store.Ledger
	log      store.Transfers
	logger   *zap.Logger
}

func NewEngine(accounts store.Accounts, ledger store.Ledger, transfers store.Transfers, logger *zap.Logger) *Engine {
	return &Engine{
		accounts: accounts,
		ledger:   ledger,
		log:      transfers,
		logger:   logger,
	}
}

// Send immediately pushes funds from the sender to the receiver. Both
// balance mutations commit as one unit; a failed send leaves no transfer
// record.
func (e *Engine) Send(ctx context.Context, senderID, receiverID int64, amount decimal.Decimal) (*domain.Transfer, error) {
	if err := validateParties(senderID, receiverID, amount); err != nil {
		return nil, err
	}

	from, err := e.accounts.AccountOf(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("sender account: %w", err)
	}
	to, err := e.accounts.AccountOf(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("receiver account: %w", err)
	}

	if err := e.ledger.MoveFunds(ctx, from.ID, to.ID, amount); err != nil {
		return nil, err
	}

	transfer, err := e.log.Append(ctx, &domain.Transfer{
		Type:          domain.TransferTypeSend,
		Status:        domain.TransferStatusApproved,
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        amount,
	})
	if err != nil {
		// Funds already moved; the record is the only casualty. Surface
		// loudly so the operator can reconcile the log.
		e.logger.Error("send committed but transfer record append failed",
			zap.Int64("from_account_id", from.ID),
			zap.Int64("to_account_id", to.ID),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, fmt.Errorf("transfer log append: %w", err)
	}

	e.logger.Info("send completed",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("from_account_id", from.ID),
		zap.Int64("to_account_id", to.ID),
		zap.String("amount", amount.String()))
	return transfer, nil
}

// Request records a pending pull of funds from the payer. The payer's
// solvency is not checked here; balances can change before resolution,
// so the check happens only at approval time.
func (e *Engine) Request(ctx context.Context, requesterID, payerID int64, amount decimal.Decimal) (*domain.Transfer, error) {
	if err := validateParties(requesterID, payerID, amount); err != nil {
		return nil, err
	}

	payer, err := e.accounts.AccountOf(ctx, payerID)
	if err != nil {
		return nil, fmt.Errorf("payer account: %w", err)
	}
	requester, err := e.accounts.AccountOf(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("requester account: %w", err)
	}

	transfer, err := e.log.Append(ctx, &domain.Transfer{
		Type:          domain.TransferTypeRequest,
		Status:        domain.TransferStatusPending,
		FromAccountID: payer.ID,
		ToAccountID:   requester.ID,
		Amount:        amount,
	})
	if err != nil {
		return nil, fmt.Errorf("transfer log append: %w", err)
	}

	e.logger.Info("request created",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("payer_account_id", payer.ID),
		zap.Int64("requester_account_id", requester.ID),
		zap.String("amount", amount.String()))
	return transfer, nil
}

// Resolve approves or rejects a pending request. Only the owner of the
// paying account may act. Resolution is exactly-once: of any set of
// concurrent calls on the same transfer, at most one moves funds, and
// the rest observe ErrAlreadyResolved.
func (e *Engine) Resolve(ctx context.Context, actingUserID, transferID int64, decision domain.Decision) (*domain.Transfer, error) {
	transfer, err := e.log.Get(ctx, transferID)
	if err != nil {
		return nil, err
	}

	acting, err := e.accounts.AccountOf(ctx, actingUserID)
	if err != nil {
		return nil, fmt.Errorf("acting account: %w", err)
	}
	if acting.ID != transfer.FromAccountID {
		return nil, domain.ErrForbidden
	}
	if transfer.Type != domain.TransferTypeRequest || transfer.Status != domain.TransferStatusPending {
		return nil, domain.ErrAlreadyResolved
	}

	switch decision {
	case domain.DecisionReject:
		return e.reject(ctx, transfer)
	case domain.DecisionApprove:
		return e.approve(ctx, transfer)
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", domain.ErrInvalidAmount, decision)
	}
}

func (e *Engine) reject(ctx context.Context, transfer *domain.Transfer) (*domain.Transfer, error) {
	ok, err := e.log.CompareAndSetStatus(ctx, transfer.ID, domain.TransferStatusPending, domain.TransferStatusRejected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrAlreadyResolved
	}
	transfer.Status = domain.TransferStatusRejected
	e.logger.Info("request rejected", zap.Int64("transfer_id", transfer.ID))
	return transfer, nil
}

func (e *Engine) approve(ctx context.Context, transfer *domain.Transfer) (*domain.Transfer, error) {
	// The PENDING->APPROVED compare-and-set is the linearization point:
	// exactly one caller wins it, so at most one MoveFunds runs per
	// transfer no matter how many approvals race.
	ok, err := e.log.CompareAndSetStatus(ctx, transfer.ID, domain.TransferStatusPending, domain.TransferStatusApproved)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrAlreadyResolved
	}

	if err := e.ledger.MoveFunds(ctx, transfer.FromAccountID, transfer.ToAccountID, transfer.Amount); err != nil {
		// Release the claim so the payer can retry once funded. The
		// transfer stays PENDING; it never reads APPROVED without the
		// funds actually having moved.
		if released, casErr := e.log.CompareAndSetStatus(ctx, transfer.ID, domain.TransferStatusApproved, domain.TransferStatusPending); casErr != nil || !released {
			e.logger.Error("failed to release approval claim",
				zap.Int64("transfer_id", transfer.ID),
				zap.Bool("released", released),
				zap.Error(casErr))
		}
		return nil, err
	}

	transfer.Status = domain.TransferStatusApproved
	e.logger.Info("request approved",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("from_account_id", transfer.FromAccountID),
		zap.Int64("to_account_id", transfer.ToAccountID),
		zap.String("amount", transfer.Amount.String()))
	return transfer, nil
}

// Balance returns the user's current balance.
func (e *Engine) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	account, err := e.accounts.AccountOf(ctx, userID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return e.ledger.Balance(ctx, account.ID)
}

// History lists every transfer the user participated in, oldest first.
func (e *Engine) History(ctx context.Context, userID int64) ([]domain.Transfer, error) {
	account, err := e.accounts.AccountOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.log.ListByParticipant(ctx, account.ID)
}

// Pending lists requests awaiting this user's decision, i.e. requests
// made against their account by someone else.
func (e *Engine) Pending(ctx context.Context, userID int64) ([]domain.Transfer, error) {
	account, err := e.accounts.AccountOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.log.ListPending(ctx, account.ID)
}

// TransferDetail returns a single transfer, but only to its participants.
func (e *Engine) TransferDetail(ctx context.Context, userID, transferID int64) (*domain.Transfer, error) {
	account, err := e.accounts.AccountOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	transfer, err := e.log.Get(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !transfer.Involves(account.ID) {
		return nil, domain.ErrForbidden
	}
	return transfer, nil
}

// ListUsers exposes the directory of registered users so a caller can
// pick a counterparty.
func (e *Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.accounts.ListUsers(ctx)
}

func validateParties(a, b int64, amount decimal.Decimal) error {
	if a == b {
		return fmt.Errorf("%w: self-transfer", domain.ErrInvalidAmount)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}
	return nil
}
