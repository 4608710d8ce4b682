package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletAccount represents a wallet_accounts row: the balance of a single owner.
type WalletAccount struct {
	ID               uuid.UUID       `json:"id" db:"id"`                               // Unique account identifier
	OwnerID          uuid.UUID       `json:"owner_id" db:"owner_id"`                   // Account holder, one account per owner
	TotalBalance     decimal.Decimal `json:"total_balance" db:"total_balance"`         // Funds attributed to the owner
	AvailableBalance decimal.Decimal `json:"available_balance" db:"available_balance"` // Funds free to withdraw or spend
	BlockedBalance   decimal.Decimal `json:"blocked_balance" db:"blocked_balance"`     // Funds reserved by in-flight withdrawals
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`               // Timestamp when the account was created
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`               // Timestamp of the last balance mutation
}

// NewWalletAccount returns a zero-balance account for the owner.
func NewWalletAccount(ownerID uuid.UUID, now time.Time) WalletAccount {
	return WalletAccount{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		TotalBalance:     decimal.Zero,
		AvailableBalance: decimal.Zero,
		BlockedBalance:   decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Balance returns the balance snapshot of the account.
func (a WalletAccount) Balance() Balance {
	return Balance{
		OwnerID:          a.OwnerID,
		TotalBalance:     a.TotalBalance,
		AvailableBalance: a.AvailableBalance,
		BlockedBalance:   a.BlockedBalance,
		UpdatedAt:        a.UpdatedAt,
	}
}

// Balance is a read-only projection of a WalletAccount.
type Balance struct {
	OwnerID          uuid.UUID       `json:"owner_id"`
	TotalBalance     decimal.Decimal `json:"total_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	BlockedBalance   decimal.Decimal `json:"blocked_balance"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ZeroBalance is the balance of an owner that never touched the wallet.
func ZeroBalance(ownerID uuid.UUID) Balance {
	return Balance{
		OwnerID:          ownerID,
		TotalBalance:     decimal.Zero,
		AvailableBalance: decimal.Zero,
		BlockedBalance:   decimal.Zero,
	}
}
