package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// amountScale is the number of fractional digits a monetary amount may carry.
const amountScale = 2

// ValidateAmount checks that amount is strictly positive and has at most two decimals.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, amount)
	}
	if !amount.Equal(amount.Truncate(amountScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, amountScale)
	}
	return nil
}

// Validate checks that total == available + blocked and that neither component is negative.
func (a WalletAccount) Validate() error {
	if a.AvailableBalance.IsNegative() {
		return fmt.Errorf("%w: available balance %s is negative", ErrInvariantViolation, a.AvailableBalance)
	}
	if a.BlockedBalance.IsNegative() {
		return fmt.Errorf("%w: blocked balance %s is negative", ErrInvariantViolation, a.BlockedBalance)
	}
	if !a.TotalBalance.Equal(a.AvailableBalance.Add(a.BlockedBalance)) {
		return fmt.Errorf("%w: total %s != available %s + blocked %s",
			ErrInvariantViolation, a.TotalBalance, a.AvailableBalance, a.BlockedBalance)
	}
	return nil
}

// Reserve moves amount from available to blocked. It fails with
// ErrInsufficientFunds when the available balance does not cover amount.
func (a WalletAccount) Reserve(amount decimal.Decimal, now time.Time) (WalletAccount, error) {
	if a.AvailableBalance.LessThan(amount) {
		return a, fmt.Errorf("%w: available %s, requested %s", ErrInsufficientFunds, a.AvailableBalance, amount)
	}
	next := a
	next.AvailableBalance = a.AvailableBalance.Sub(amount)
	next.BlockedBalance = a.BlockedBalance.Add(amount)
	next.UpdatedAt = now
	return next, next.Validate()
}

// ApplyTransition returns the account state after txn moves from PENDING to status.
//
//	deposit    COMPLETED            total += a, available += a
//	withdrawal COMPLETED            total -= a, blocked -= a
//	withdrawal FAILED | CANCELLED   available += a, blocked -= a
//	deposit    FAILED | CANCELLED   no effect
func (a WalletAccount) ApplyTransition(txn WalletTransaction, status TransactionStatus, now time.Time) (WalletAccount, error) {
	if txn.Status != StatusPending {
		return a, fmt.Errorf("%w: transaction %s is %s", ErrInvalidStateTransition, txn.ID, txn.Status)
	}
	amount := txn.Magnitude()
	next := a

	switch txn.Kind {
	case KindDeposit:
		switch status {
		case StatusCompleted:
			next.TotalBalance = a.TotalBalance.Add(amount)
			next.AvailableBalance = a.AvailableBalance.Add(amount)
		case StatusFailed, StatusCancelled:
		default:
			return a, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, txn.Status, status)
		}
	case KindWithdrawal:
		switch status {
		case StatusCompleted:
			next.TotalBalance = a.TotalBalance.Sub(amount)
			next.BlockedBalance = a.BlockedBalance.Sub(amount)
		case StatusFailed, StatusCancelled:
			next.AvailableBalance = a.AvailableBalance.Add(amount)
			next.BlockedBalance = a.BlockedBalance.Sub(amount)
		default:
			return a, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, txn.Status, status)
		}
	default:
		return a, fmt.Errorf("%w: %s", ErrUnsupportedKind, txn.Kind)
	}

	next.UpdatedAt = now
	if err := next.Validate(); err != nil {
		return a, err
	}
	return next, nil
}

// Transition moves a PENDING transaction into a terminal status.
func (t WalletTransaction) Transition(status TransactionStatus, reason string, now time.Time) (WalletTransaction, error) {
	if t.Status != StatusPending {
		return t, fmt.Errorf("%w: transaction %s is %s", ErrInvalidStateTransition, t.ID, t.Status)
	}
	if !status.IsTerminal() {
		return t, fmt.Errorf("%w: %s is not terminal", ErrInvalidStateTransition, status)
	}
	if status == StatusCancelled && t.IsDispatched() {
		return t, fmt.Errorf("%w: transaction %s already dispatched to the rail", ErrInvalidStateTransition, t.ID)
	}
	next := t
	next.Status = status
	next.FailureReason = reason
	settledAt := now
	next.SettledAt = &settledAt
	return next, nil
}

// MarkDispatched records a settlement attempt on a PENDING transaction.
func (t WalletTransaction) MarkDispatched(now time.Time) (WalletTransaction, error) {
	if t.Status != StatusPending {
		return t, fmt.Errorf("%w: transaction %s is %s", ErrInvalidStateTransition, t.ID, t.Status)
	}
	next := t
	next.Attempts++
	if next.DispatchedAt == nil {
		dispatchedAt := now
		next.DispatchedAt = &dispatchedAt
	}
	return next, nil
}
