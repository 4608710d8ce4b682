package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types published on the transactions topic.
const (
	EventTransactionCreated   = "transaction.created"
	EventTransactionCompleted = "transaction.completed"
	EventTransactionFailed    = "transaction.failed"
	EventTransactionCancelled = "transaction.cancelled"
	EventSettlementAlert      = "settlement.alert"
)

// TransactionEvent describes a wallet transaction lifecycle change published to Kafka.
type TransactionEvent struct {
	Type              string            `json:"type"`               // One of the Event* constants
	TransactionID     string            `json:"transaction_id"`     // Wallet transaction identifier
	OwnerID           string            `json:"owner_id"`           // Account holder
	Kind              TransactionKind   `json:"kind"`               // DEPOSIT or WITHDRAWAL
	Status            TransactionStatus `json:"status"`             // Status after the change
	Amount            decimal.Decimal   `json:"amount"`             // Signed amount
	ExternalReference string            `json:"external_reference"` // Idempotency key
	Reason            string            `json:"reason,omitempty"`   // Failure or alert reason
	Attempts          int               `json:"attempts"`           // Rail attempts so far
	OccurredAt        time.Time         `json:"occurred_at"`        // When the change was committed
}

// NewTransactionEvent builds an event of the given type from a transaction.
func NewTransactionEvent(eventType string, txn WalletTransaction, at time.Time) TransactionEvent {
	return TransactionEvent{
		Type:              eventType,
		TransactionID:     txn.ID,
		OwnerID:           txn.OwnerID.String(),
		Kind:              txn.Kind,
		Status:            txn.Status,
		Amount:            txn.Amount,
		ExternalReference: txn.ExternalReference,
		Reason:            txn.FailureReason,
		Attempts:          txn.Attempts,
		OccurredAt:        at,
	}
}

// EventTypeForStatus maps a transaction status to its lifecycle event type.
func EventTypeForStatus(status TransactionStatus) string {
	switch status {
	case StatusCompleted:
		return EventTransactionCompleted
	case StatusFailed:
		return EventTransactionFailed
	case StatusCancelled:
		return EventTransactionCancelled
	default:
		return EventTransactionCreated
	}
}
