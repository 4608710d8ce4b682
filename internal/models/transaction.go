package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind is the direction of a wallet transaction.
type TransactionKind string

// Supported transaction kinds. INVESTMENT and RETURN are reserved.
const (
	KindDeposit    TransactionKind = "DEPOSIT"
	KindWithdrawal TransactionKind = "WITHDRAWAL"
	KindInvestment TransactionKind = "INVESTMENT"
	KindReturn     TransactionKind = "RETURN"
)

// TransactionStatus is the settlement state of a wallet transaction.
type TransactionStatus string

// Transaction statuses. Everything but PENDING is terminal.
const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Outcome is the result of a settlement attempt on the rail.
type Outcome string

// Rail outcomes.
const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomeTimeout Outcome = "TIMEOUT"
)

// ParseOutcome converts a rail-supplied string into an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	switch o := Outcome(s); o {
	case OutcomeSuccess, OutcomeFailure, OutcomeTimeout:
		return o, true
	}
	return "", false
}

// WalletTransaction represents a wallet_transactions row.
type WalletTransaction struct {
	ID                string            `json:"id"`                   // ULID, sortable by creation
	AccountID         uuid.UUID         `json:"account_id"`           // Owning wallet account
	OwnerID           uuid.UUID         `json:"owner_id"`             // Owner of the account
	Kind              TransactionKind   `json:"kind"`                 // DEPOSIT or WITHDRAWAL
	Amount            decimal.Decimal   `json:"amount"`               // Signed: positive deposit, negative withdrawal
	Status            TransactionStatus `json:"status"`               // Settlement state
	ExternalReference string            `json:"external_reference"`   // Idempotency key shared with the rail
	Metadata          json.RawMessage   `json:"metadata,omitempty"`   // Opaque payload, never interpreted
	FailureReason     string            `json:"failure_reason"`       // Why the transaction failed or was cancelled
	Attempts          int               `json:"attempts"`             // Settlement attempts dispatched to the rail
	CreatedAt         time.Time         `json:"created_at"`           // Timestamp of admission
	DispatchedAt      *time.Time        `json:"dispatched_at"`        // First dispatch to the rail, nil before
	SettledAt         *time.Time        `json:"settled_at,omitempty"` // Terminal state timestamp, nil while pending
}

// Magnitude returns the unsigned amount of the transaction.
func (t WalletTransaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}

// IsDispatched reports whether the settlement engine has handed the
// transaction to the rail at least once.
func (t WalletTransaction) IsDispatched() bool {
	return t.DispatchedAt != nil
}

// TransactionPage is a reverse-chronological slice of an owner's history.
type TransactionPage struct {
	Transactions []WalletTransaction `json:"transactions"`
	NextCursor   string              `json:"next_cursor,omitempty"`
}

// Page size bounds for transaction history.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ClampPageSize returns DefaultPageSize for non-positive sizes and caps the rest at MaxPageSize.
func ClampPageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
