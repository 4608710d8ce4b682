package models

import "errors"

var (
	// ErrInvalidAmount is returned for non-positive or malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidMetadata is returned when transaction metadata is not valid JSON.
	ErrInvalidMetadata = errors.New("invalid metadata")
	// ErrInsufficientFunds is returned when a withdrawal exceeds the available balance at lock time.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidStateTransition is returned when a transition is attempted on a non-pending transaction.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrStoreUnavailable is returned when the ledger datastore cannot be reached.
	ErrStoreUnavailable = errors.New("ledger store unavailable")
	// ErrLockTimeout is returned when the account lock could not be acquired in time.
	ErrLockTimeout = errors.New("account lock timeout")
	// ErrRailFailure marks a transaction the rail definitively rejected.
	ErrRailFailure = errors.New("rail rejected settlement")
	// ErrInvariantViolation is returned when a write would break the balance invariants.
	ErrInvariantViolation = errors.New("balance invariant violation")
	// ErrDuplicateReference is returned by the store when the external reference is already taken.
	ErrDuplicateReference = errors.New("duplicate external reference")
	// ErrIdempotencyConflict is returned when an external reference is reused for a different request.
	ErrIdempotencyConflict = errors.New("external reference reused with different parameters")
	// ErrTransactionNotFound is returned when no transaction matches.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrUnsupportedKind is returned for transaction kinds the ledger does not settle.
	ErrUnsupportedKind = errors.New("unsupported transaction kind")
)
