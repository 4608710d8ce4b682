package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// LedgerStore is the durable ledger. All balance mutations go through WithAccountLock.
type LedgerStore interface {
	WithAccountLock(ctx context.Context, ownerID uuid.UUID, fn models.AccountTransform) (*models.LedgerWrite, error) // Runs fn under the owner's account lock
	GetAccount(ctx context.Context, ownerID uuid.UUID) (*models.WalletAccount, error)                                // Returns nil if the owner has no account
	GetTransaction(ctx context.Context, id string) (models.WalletTransaction, error)                                 // Returns a transaction by id
	GetTransactionByReference(ctx context.Context, reference string) (models.WalletTransaction, error)               // Returns a transaction by external reference
	ListTransactions(ctx context.Context, ownerID uuid.UUID, limit int, cursor string) ([]models.WalletTransaction, error)
	ListPending(ctx context.Context, afterID string, limit int) ([]models.WalletTransaction, error)
}

// SettlementQueue accepts transactions for asynchronous settlement.
type SettlementQueue interface {
	Enqueue(txn models.WalletTransaction) // Schedules txn; must not block
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newTransactionID returns a ULID, monotonic within the process.
func newTransactionID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// WalletService admits deposit and withdrawal requests and serves balance and history reads.
type WalletService struct {
	store LedgerStore
	queue SettlementQueue
	ledgerNotifier
	now func() time.Time

	admission [64]sync.Mutex
}

// NewWalletService creates a new WalletService.
func NewWalletService(
	store LedgerStore,
	cache BalanceCache,
	queue SettlementQueue,
	events *EventPublisher,
) *WalletService {
	return &WalletService{
		store:          store,
		queue:          queue,
		ledgerNotifier: ledgerNotifier{cache: cache, events: events},
		now:            time.Now,
	}
}

// RequestDeposit registers a PENDING deposit. The balance is credited only on settlement.
func (s *WalletService) RequestDeposit(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, reference string, metadata json.RawMessage) (models.WalletTransaction, error) {
	return s.request(ctx, models.KindDeposit, ownerID, amount, reference, metadata)
}

// RequestWithdrawal registers a PENDING withdrawal and reserves the amount from the available balance.
func (s *WalletService) RequestWithdrawal(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, reference string, metadata json.RawMessage) (models.WalletTransaction, error) {
	return s.request(ctx, models.KindWithdrawal, ownerID, amount, reference, metadata)
}

func (s *WalletService) request(
	ctx context.Context,
	kind models.TransactionKind,
	ownerID uuid.UUID,
	amount decimal.Decimal,
	reference string,
	metadata json.RawMessage,
) (models.WalletTransaction, error) {
	if err := models.ValidateAmount(amount); err != nil {
		return models.WalletTransaction{}, err
	}
	if len(metadata) > 0 && !json.Valid(metadata) {
		return models.WalletTransaction{}, models.ErrInvalidMetadata
	}

	signed := amount
	if kind == models.KindWithdrawal {
		signed = amount.Neg()
	}

	if reference == "" {
		reference = uuid.NewString()
	} else {
		existing, err := s.store.GetTransactionByReference(ctx, reference)
		if err == nil {
			return replay(existing, ownerID, kind, signed)
		}
		if !errors.Is(err, models.ErrTransactionNotFound) {
			logger.Log.Errorw("failed to look up external reference", "reference", reference, "error", err)
			return models.WalletTransaction{}, err
		}
	}

	write, err := s.admit(ctx, ownerID, func(ctx context.Context, view models.LedgerView) (*models.LedgerWrite, error) {
		now := s.now()
		id := newTransactionID(now)
		account := view.Account()
		next := account
		if kind == models.KindWithdrawal {
			var err error
			if next, err = account.Reserve(amount, now); err != nil {
				return nil, err
			}
		}
		return &models.LedgerWrite{
			Account: next,
			Transaction: models.WalletTransaction{
				ID:                id,
				AccountID:         account.ID,
				OwnerID:           ownerID,
				Kind:              kind,
				Amount:            signed,
				Status:            models.StatusPending,
				ExternalReference: reference,
				Metadata:          metadata,
				CreatedAt:         now,
			},
			Op: models.WriteInsert,
		}, nil
	})
	if errors.Is(err, models.ErrDuplicateReference) {
		existing, lookupErr := s.store.GetTransactionByReference(ctx, reference)
		if lookupErr != nil {
			return models.WalletTransaction{}, lookupErr
		}
		return replay(existing, ownerID, kind, signed)
	}
	if err != nil {
		logger.Log.Errorw("failed to admit transaction", "owner_id", ownerID, "kind", kind, "amount", amount, "error", err)
		return models.WalletTransaction{}, err
	}

	logger.Log.Infow("transaction admitted", "transaction_id", write.Transaction.ID, "owner_id", ownerID, "kind", kind, "amount", signed)
	s.committed(ctx, write, models.EventTransactionCreated)
	return write.Transaction, nil
}

// admit commits a new transaction and queues it for settlement. Ids are minted
// under the account lock and queued before the next admission of the owner
// commits, so an account settles in commit order.
func (s *WalletService) admit(ctx context.Context, ownerID uuid.UUID, fn models.AccountTransform) (*models.LedgerWrite, error) {
	mu := &s.admission[int(ownerID[len(ownerID)-1])%len(s.admission)]
	mu.Lock()
	defer mu.Unlock()

	write, err := s.store.WithAccountLock(ctx, ownerID, fn)
	if err != nil {
		return nil, err
	}
	s.queue.Enqueue(write.Transaction)
	return write, nil
}

// replay answers a repeated request with the transaction already registered under its reference.
func replay(existing models.WalletTransaction, ownerID uuid.UUID, kind models.TransactionKind, signed decimal.Decimal) (models.WalletTransaction, error) {
	if existing.OwnerID != ownerID || existing.Kind != kind || !existing.Amount.Equal(signed) {
		return models.WalletTransaction{}, fmt.Errorf("%w: %s", models.ErrIdempotencyConflict, existing.ExternalReference)
	}
	logger.Log.Infow("idempotent replay", "transaction_id", existing.ID, "reference", existing.ExternalReference)
	return existing, nil
}

// CancelTransaction cancels a PENDING transaction of the owner that has not been
// dispatched to the rail yet, releasing any reserved funds.
func (s *WalletService) CancelTransaction(ctx context.Context, ownerID uuid.UUID, transactionID string) (models.WalletTransaction, error) {
	write, err := s.store.WithAccountLock(ctx, ownerID, func(ctx context.Context, view models.LedgerView) (*models.LedgerWrite, error) {
		txn, err := view.Transaction(ctx, transactionID)
		if err != nil {
			return nil, err
		}
		now := s.now()
		next, err := txn.Transition(models.StatusCancelled, "cancelled by owner", now)
		if err != nil {
			return nil, err
		}
		account, err := view.Account().ApplyTransition(txn, models.StatusCancelled, now)
		if err != nil {
			return nil, err
		}
		return &models.LedgerWrite{Account: account, Transaction: next, Op: models.WriteUpdate}, nil
	})
	if err != nil {
		logger.Log.Errorw("failed to cancel transaction", "owner_id", ownerID, "transaction_id", transactionID, "error", err)
		return models.WalletTransaction{}, err
	}

	logger.Log.Infow("transaction cancelled", "transaction_id", transactionID, "owner_id", ownerID)
	s.committed(ctx, write, models.EventTransactionCancelled)
	return write.Transaction, nil
}

// GetBalance returns the owner's balance. A cached snapshot may lag the ledger.
// An owner without an account has a zero balance.
func (s *WalletService) GetBalance(ctx context.Context, ownerID uuid.UUID) (models.Balance, error) {
	if s.cache != nil {
		if balance, err := s.cache.GetBalance(ctx, ownerID); err == nil {
			return balance, nil
		}
	}

	account, err := s.store.GetAccount(ctx, ownerID)
	if err != nil {
		logger.Log.Errorw("failed to get balance", "owner_id", ownerID, "error", err)
		return models.Balance{}, err
	}

	balance := models.ZeroBalance(ownerID)
	if account != nil {
		balance = account.Balance()
	}
	s.refreshBalance(ctx, balance)
	return balance, nil
}

// ListTransactions returns a page of the owner's history, newest first.
func (s *WalletService) ListTransactions(ctx context.Context, ownerID uuid.UUID, pageSize int, cursor string) (models.TransactionPage, error) {
	limit := models.ClampPageSize(pageSize)

	txns, err := s.store.ListTransactions(ctx, ownerID, limit, cursor)
	if err != nil {
		logger.Log.Errorw("failed to list transactions", "owner_id", ownerID, "cursor", cursor, "error", err)
		return models.TransactionPage{}, err
	}

	page := models.TransactionPage{Transactions: txns}
	if len(txns) == limit {
		page.NextCursor = txns[len(txns)-1].ID
	}
	return page, nil
}
