package models

import "context"

// WriteOp tells the ledger store what to do with LedgerWrite.Transaction.
type WriteOp int

const (
	// WriteInsert appends a new transaction row.
	WriteInsert WriteOp = iota + 1
	// WriteUpdate replaces an existing transaction row of the same account.
	WriteUpdate
)

// LedgerView is the state visible to an AccountTransform while the account lock is held.
type LedgerView interface {
	// Account returns the locked account, zero-balance if it was just created.
	Account() WalletAccount
	// Transaction returns a transaction of the locked account.
	Transaction(ctx context.Context, id string) (WalletTransaction, error)
}

// LedgerWrite is the new account state plus the transaction row committed with it.
type LedgerWrite struct {
	Account     WalletAccount
	Transaction WalletTransaction
	Op          WriteOp
}

// AccountTransform computes a write from the locked state. A nil write is a no-op;
// a non-nil error aborts without writing anything.
type AccountTransform func(ctx context.Context, view LedgerView) (*LedgerWrite, error)
