package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered identity. Exactly one account exists per user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account holds a user's balance in the ledger. Balances are arbitrary
// precision decimals and must never go negative.
type Account struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

type TransferType string

const (
	TransferTypeSend    TransferType = "SEND"
	TransferTypeRequest TransferType = "REQUEST"
)

type TransferStatus string

const (
	TransferStatusPending  TransferStatus = "PENDING"
	TransferStatusApproved TransferStatus = "APPROVED"
	TransferStatusRejected TransferStatus = "REJECTED"
)

// Terminal reports whether a status can never change again.
func (s TransferStatus) Terminal() bool {
	return s == TransferStatusApproved || s == TransferStatusRejected
}

// Decision is the payer's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Transfer represents the intent to move money. FromAccountID is always
// the paying side: for a REQUEST it is the account being asked to pay,
// and only that account's owner may resolve it. Once a transfer leaves
// PENDING it is immutable.
type Transfer struct {
	ID            int64           `json:"id"`
	Type          TransferType    `json:"type"`
	Status        TransferStatus  `json:"status"`
	FromAccountID int64           `json:"from_account_id"`
	ToAccountID   int64           `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Involves reports whether the account is either party of the transfer.
func (t *Transfer) Involves(accountID int64) bool {
	return t.FromAccountID == accountID || t.ToAccountID == accountID
}
