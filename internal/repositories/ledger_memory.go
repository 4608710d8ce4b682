package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// MemoryLedgerRepository is an in-process ledger store with the same contract as
// LedgerRepository. Each owner has its own lock; writers wait at most lockTimeout.
type MemoryLedgerRepository struct {
	lockTimeout time.Duration

	mapMu sync.Mutex                  // protects locks
	locks map[uuid.UUID]chan struct{} // one-slot semaphore per owner

	mu           sync.RWMutex // protects the maps below
	accounts     map[uuid.UUID]models.WalletAccount
	transactions map[string]models.WalletTransaction
	references   map[string]string // external reference -> transaction id
}

// NewMemoryLedgerRepository creates an empty in-memory ledger.
func NewMemoryLedgerRepository(lockTimeout time.Duration) *MemoryLedgerRepository {
	return &MemoryLedgerRepository{
		lockTimeout:  lockTimeout,
		locks:        make(map[uuid.UUID]chan struct{}),
		accounts:     make(map[uuid.UUID]models.WalletAccount),
		transactions: make(map[string]models.WalletTransaction),
		references:   make(map[string]string),
	}
}

func (r *MemoryLedgerRepository) accountLock(ownerID uuid.UUID) chan struct{} {
	r.mapMu.Lock()
	defer r.mapMu.Unlock()

	if _, exists := r.locks[ownerID]; !exists {
		r.locks[ownerID] = make(chan struct{}, 1)
	}
	return r.locks[ownerID]
}

// WithAccountLock serialises fn per owner and applies its write atomically.
func (r *MemoryLedgerRepository) WithAccountLock(ctx context.Context, ownerID uuid.UUID, fn models.AccountTransform) (*models.LedgerWrite, error) {
	lock := r.accountLock(ownerID)
	timer := time.NewTimer(r.lockTimeout)
	defer timer.Stop()

	select {
	case lock <- struct{}{}:
	case <-timer.C:
		return nil, fmt.Errorf("%w: owner %s", models.ErrLockTimeout, ownerID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-lock }()

	account := r.loadOrCreate(ownerID)
	write, err := fn(ctx, &memoryLedgerView{repo: r, account: account})
	if err != nil {
		return nil, err
	}
	if write == nil {
		return nil, nil
	}
	if err := checkWrite(account, write); err != nil {
		logger.Log.Errorw("rejected ledger write", "owner_id", ownerID, "error", err)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	txn := write.Transaction
	switch write.Op {
	case models.WriteInsert:
		if _, taken := r.references[txn.ExternalReference]; taken {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateReference, txn.ExternalReference)
		}
		if _, exists := r.transactions[txn.ID]; exists {
			return nil, fmt.Errorf("%w: transaction id %s already exists", models.ErrInvariantViolation, txn.ID)
		}
		r.references[txn.ExternalReference] = txn.ID
	case models.WriteUpdate:
		current, exists := r.transactions[txn.ID]
		if !exists || current.AccountID != txn.AccountID {
			return nil, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, txn.ID)
		}
		if current.Status != models.StatusPending {
			return nil, fmt.Errorf("%w: transaction %s is not pending", models.ErrInvalidStateTransition, txn.ID)
		}
	}

	r.accounts[ownerID] = write.Account
	r.transactions[txn.ID] = cloneTransaction(txn)

	logger.Log.Infow("ledger write",
		"owner_id", ownerID,
		"transaction_id", txn.ID,
		"status", txn.Status,
		"available", write.Account.AvailableBalance,
		"blocked", write.Account.BlockedBalance,
	)
	return write, nil
}

func (r *MemoryLedgerRepository) loadOrCreate(ownerID uuid.UUID) models.WalletAccount {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[ownerID]
	if !exists {
		account = models.NewWalletAccount(ownerID, time.Now())
		r.accounts[ownerID] = account
	}
	return account
}

// GetAccount returns the owner's account, or nil if none was created yet.
func (r *MemoryLedgerRepository) GetAccount(ctx context.Context, ownerID uuid.UUID) (*models.WalletAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[ownerID]
	if !exists {
		return nil, nil
	}
	return &account, nil
}

// GetTransaction returns a transaction by id.
func (r *MemoryLedgerRepository) GetTransaction(ctx context.Context, id string) (models.WalletTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	txn, exists := r.transactions[id]
	if !exists {
		return models.WalletTransaction{}, models.ErrTransactionNotFound
	}
	return cloneTransaction(txn), nil
}

// GetTransactionByReference returns the transaction registered under an external reference.
func (r *MemoryLedgerRepository) GetTransactionByReference(ctx context.Context, reference string) (models.WalletTransaction, error) {
	r.mu.RLock()
	id, exists := r.references[reference]
	r.mu.RUnlock()
	if !exists {
		return models.WalletTransaction{}, models.ErrTransactionNotFound
	}
	return r.GetTransaction(ctx, id)
}

// ListTransactions returns up to limit transactions of the owner, newest first.
func (r *MemoryLedgerRepository) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit int, cursor string) ([]models.WalletTransaction, error) {
	limit = models.ClampPageSize(limit)
	txns := r.filter(func(t models.WalletTransaction) bool {
		return t.OwnerID == ownerID && (cursor == "" || t.ID < cursor)
	})
	sort.Slice(txns, func(i, j int) bool { return txns[i].ID > txns[j].ID })
	if len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

// ListPending returns up to limit PENDING transactions with ids greater than afterID, oldest first.
func (r *MemoryLedgerRepository) ListPending(ctx context.Context, afterID string, limit int) ([]models.WalletTransaction, error) {
	txns := r.filter(func(t models.WalletTransaction) bool {
		return t.Status == models.StatusPending && t.ID > afterID
	})
	sort.Slice(txns, func(i, j int) bool { return txns[i].ID < txns[j].ID })
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

func (r *MemoryLedgerRepository) filter(keep func(models.WalletTransaction) bool) []models.WalletTransaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.WalletTransaction
	for _, t := range r.transactions {
		if keep(t) {
			out = append(out, cloneTransaction(t))
		}
	}
	return out
}

func cloneTransaction(t models.WalletTransaction) models.WalletTransaction {
	if t.Metadata != nil {
		t.Metadata = append([]byte(nil), t.Metadata...)
	}
	if t.DispatchedAt != nil {
		at := *t.DispatchedAt
		t.DispatchedAt = &at
	}
	if t.SettledAt != nil {
		at := *t.SettledAt
		t.SettledAt = &at
	}
	return t
}

type memoryLedgerView struct {
	repo    *MemoryLedgerRepository
	account models.WalletAccount
}

func (v *memoryLedgerView) Account() models.WalletAccount {
	return v.account
}

func (v *memoryLedgerView) Transaction(ctx context.Context, id string) (models.WalletTransaction, error) {
	txn, err := v.repo.GetTransaction(ctx, id)
	if err != nil {
		return txn, err
	}
	if txn.AccountID != v.account.ID {
		return models.WalletTransaction{}, models.ErrTransactionNotFound
	}
	return txn, nil
}
