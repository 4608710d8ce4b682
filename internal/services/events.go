package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error // Writes messages to Kafka
	Close() error                                                   // Closes the Kafka writer
}

// BalanceCache keeps balance snapshots for the read path.
type BalanceCache interface {
	GetBalance(ctx context.Context, ownerID uuid.UUID) (models.Balance, error) // Returns a cached snapshot
	SetBalance(ctx context.Context, balance models.Balance) error              // Stores a snapshot
}

// EventPublisher publishes transaction lifecycle events and settlement alerts.
// The writer must not have a default topic; every message names its own.
type EventPublisher struct {
	writer            KafkaWriter
	transactionsTopic string
	alertsTopic       string
}

// NewEventPublisher creates a publisher. A nil writer disables publishing.
func NewEventPublisher(writer KafkaWriter, transactionsTopic, alertsTopic string) *EventPublisher {
	return &EventPublisher{
		writer:            writer,
		transactionsTopic: transactionsTopic,
		alertsTopic:       alertsTopic,
	}
}

// PublishTransaction publishes a lifecycle event for txn.
func (p *EventPublisher) PublishTransaction(ctx context.Context, eventType string, txn models.WalletTransaction) {
	if p == nil {
		return
	}
	p.publish(ctx, p.transactionsTopic, models.NewTransactionEvent(eventType, txn, time.Now()))
}

// PublishAlert publishes an operator alert about txn.
func (p *EventPublisher) PublishAlert(ctx context.Context, txn models.WalletTransaction, reason string) {
	if p == nil {
		return
	}
	event := models.NewTransactionEvent(models.EventSettlementAlert, txn, time.Now())
	event.Reason = reason
	p.publish(ctx, p.alertsTopic, event)
}

func (p *EventPublisher) publish(ctx context.Context, topic string, event models.TransactionEvent) {
	if p.writer == nil {
		logger.Log.Warnw("Kafka writer not configured, skipping publishing", "transaction_id", event.TransactionID, "type", event.Type)
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("Failed to marshal event for Kafka", "transaction_id", event.TransactionID, "error", err)
		return
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.TransactionID),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("Failed to publish event to Kafka", "transaction_id", event.TransactionID, "type", event.Type, "error", err)
	} else {
		logger.Log.Infow("Event published to Kafka", "transaction_id", event.TransactionID, "type", event.Type, "topic", topic)
	}
}

// ledgerNotifier fans a committed write out to the balance cache and the event stream.
type ledgerNotifier struct {
	cache  BalanceCache
	events *EventPublisher
}

func (n ledgerNotifier) committed(ctx context.Context, write *models.LedgerWrite, eventType string) {
	if write == nil {
		return
	}
	n.refreshBalance(ctx, write.Account.Balance())
	n.events.PublishTransaction(ctx, eventType, write.Transaction)
}

func (n ledgerNotifier) refreshBalance(ctx context.Context, balance models.Balance) {
	if n.cache == nil {
		return
	}
	if err := n.cache.SetBalance(ctx, balance); err != nil {
		logger.Log.Warnw("failed to refresh cached balance", "owner_id", balance.OwnerID, "error", err)
	}
}
