package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"golang.org/x/sync/errgroup"
)

// ReasonRetryBudgetExhausted is the failure reason of transactions the rail never answered.
const ReasonRetryBudgetExhausted = "retry budget exhausted"

// Rail is the external payment rail.
type Rail interface {
	AttemptSettlement(ctx context.Context, txn models.WalletTransaction) (models.Outcome, error) // Submits txn for settlement
	LookupSettlement(ctx context.Context, reference string) (models.Outcome, bool, error)        // Reports a known outcome for reference
}

// SettlementConfig tunes the settlement engine.
type SettlementConfig struct {
	Workers        int           // Concurrent settlement workers
	RailTimeout    time.Duration // Bound on a single rail call
	RetryBudget    int           // Rail attempts before a transaction is failed
	InitialBackoff time.Duration // First retry delay
	MaxBackoff     time.Duration // Retry delay cap
	PollInterval   time.Duration // Interval of the PENDING sweep
	SweepBatch     int           // Page size of the PENDING sweep
}

func (c SettlementConfig) withDefaults() SettlementConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RailTimeout <= 0 {
		c.RailTimeout = 5 * time.Second
	}
	if c.RetryBudget <= 0 {
		c.RetryBudget = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = 30 * c.InitialBackoff
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = 100
	}
	return c
}

func (c SettlementConfig) String() string {
	return fmt.Sprintf("workers=%d rail_timeout=%s retry_budget=%d backoff=%s..%s poll=%s",
		c.Workers, c.RailTimeout, c.RetryBudget, c.InitialBackoff, c.MaxBackoff, c.PollInterval)
}

// SettlementEngine drives PENDING transactions to a terminal state against the rail.
// Transactions of one account are settled one at a time in admission order.
type SettlementEngine struct {
	store LedgerStore
	rail  Rail
	cfg   SettlementConfig
	ledgerNotifier

	sched   *scheduler
	group   *errgroup.Group
	running atomic.Bool
	now     func() time.Time
}

// NewSettlementEngine creates a settlement engine. Call Start to run it.
func NewSettlementEngine(
	store LedgerStore,
	rail Rail,
	cache BalanceCache,
	events *EventPublisher,
	cfg SettlementConfig,
) *SettlementEngine {
	return &SettlementEngine{
		store:          store,
		rail:           rail,
		cfg:            cfg.withDefaults(),
		ledgerNotifier: ledgerNotifier{cache: cache, events: events},
		sched:          newScheduler(),
		now:            time.Now,
	}
}

// Enqueue schedules a PENDING transaction. It never blocks and ignores duplicates.
func (e *SettlementEngine) Enqueue(txn models.WalletTransaction) {
	if txn.Status != models.StatusPending {
		return
	}
	if e.sched.push(txn.OwnerID, txn.ID) {
		logger.Log.Debugw("transaction scheduled for settlement", "transaction_id", txn.ID, "owner_id", txn.OwnerID)
	}
}

// Start reconciles in-flight transactions and starts the workers and the PENDING sweep.
// They stop when ctx is cancelled; Wait blocks until they have.
func (e *SettlementEngine) Start(ctx context.Context) {
	if err := e.Reconcile(ctx); err != nil {
		logger.Log.Errorw("startup reconciliation incomplete, sweep will resume it", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.cfg.Workers; i++ {
		g.Go(func() error {
			e.work(gctx)
			return nil
		})
	}
	g.Go(func() error {
		e.poll(gctx)
		return nil
	})
	e.group = g
	e.running.Store(true)

	logger.Log.Infow("settlement engine started", "config", e.cfg.String())
}

// Wait blocks until the engine has stopped.
func (e *SettlementEngine) Wait() error {
	if e.group == nil {
		return nil
	}
	err := e.group.Wait()
	e.running.Store(false)
	return err
}

// Running reports whether the engine is started and not yet stopped.
func (e *SettlementEngine) Running() bool {
	return e.running.Load()
}

// Backlog returns the number of transactions scheduled for settlement.
func (e *SettlementEngine) Backlog() int {
	return e.sched.size()
}

// Reconcile resolves every PENDING transaction left by a previous run. Dispatched
// ones are looked up on the rail first; whatever is still open is scheduled.
func (e *SettlementEngine) Reconcile(ctx context.Context) error {
	reconciled, scheduled := 0, 0
	err := e.forEachPending(ctx, func(txn models.WalletTransaction) {
		if txn.IsDispatched() {
			if outcome, ok := e.lookup(ctx, txn); ok && !e.settle(ctx, txn, outcome) {
				reconciled++
				return
			}
		}
		e.Enqueue(txn)
		scheduled++
	})
	logger.Log.Infow("settlement reconciliation finished", "reconciled", reconciled, "scheduled", scheduled, "error", err)
	return err
}

// HandleCallback applies an outcome pushed by the rail. A TIMEOUT carries no
// decision and is ignored. ErrInvalidStateTransition means the transaction had
// already settled.
func (e *SettlementEngine) HandleCallback(ctx context.Context, reference string, outcome models.Outcome) error {
	txn, err := e.store.GetTransactionByReference(ctx, reference)
	if err != nil {
		return err
	}
	if outcome == models.OutcomeTimeout {
		logger.Log.Infow("ignoring rail callback without decision", "transaction_id", txn.ID, "reference", reference)
		return nil
	}

	status, reason := terminalStatus(outcome)
	_, err = e.transition(ctx, txn.OwnerID, txn.ID, status, reason)
	return err
}

func (e *SettlementEngine) poll(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.running.Store(false)
			return
		case <-ticker.C:
			if err := e.forEachPending(ctx, e.Enqueue); err != nil && ctx.Err() == nil {
				logger.Log.Warnw("pending sweep failed", "error", err)
			}
		}
	}
}

func (e *SettlementEngine) forEachPending(ctx context.Context, fn func(models.WalletTransaction)) error {
	after := ""
	for {
		batch, err := e.store.ListPending(ctx, after, e.cfg.SweepBatch)
		if err != nil {
			return err
		}
		for _, txn := range batch {
			fn(txn)
		}
		if len(batch) < e.cfg.SweepBatch {
			return nil
		}
		after = batch[len(batch)-1].ID
	}
}

func (e *SettlementEngine) work(ctx context.Context) {
	for {
		ownerID, id, ok := e.sched.next(ctx)
		if !ok {
			return
		}
		if e.process(ctx, ownerID, id) {
			delay := e.sched.retry(ownerID, e.newBackOff)
			logger.Log.Infow("settlement retry scheduled", "transaction_id", id, "owner_id", ownerID, "delay", delay)
			continue
		}
		e.sched.done(ownerID)
	}
}

func (e *SettlementEngine) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.InitialBackoff
	b.MaxInterval = e.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// process runs one settlement step for the head of an account queue and
// reports whether it has to be retried later.
func (e *SettlementEngine) process(ctx context.Context, ownerID uuid.UUID, id string) bool {
	txn, err := e.store.GetTransaction(ctx, id)
	if errors.Is(err, models.ErrTransactionNotFound) {
		return false
	}
	if err != nil {
		logger.Log.Warnw("failed to load transaction for settlement", "transaction_id", id, "error", err)
		return ctx.Err() == nil
	}
	if txn.Status != models.StatusPending {
		return false
	}

	// The rail may have settled an earlier attempt whose answer was lost.
	if txn.Attempts > 0 {
		if outcome, ok := e.lookup(ctx, txn); ok {
			return e.settle(ctx, txn, outcome)
		}
	}
	if txn.Attempts >= e.cfg.RetryBudget {
		return e.exhaust(ctx, txn)
	}

	dispatched, err := e.markDispatched(ctx, txn)
	if err != nil {
		if settled(err) {
			return false
		}
		logger.Log.Warnw("failed to record dispatch", "transaction_id", id, "owner_id", ownerID, "error", err)
		return true
	}

	outcome := e.attempt(ctx, dispatched)
	if ctx.Err() != nil {
		return true
	}
	// The outcome is final once the rail has answered.
	ctx = context.WithoutCancel(ctx)
	if outcome != models.OutcomeTimeout {
		return e.settle(ctx, dispatched, outcome)
	}

	logger.Log.Warnw("settlement attempt timed out",
		"transaction_id", id,
		"attempt", dispatched.Attempts,
		"retry_budget", e.cfg.RetryBudget,
	)
	if dispatched.Attempts < e.cfg.RetryBudget {
		return true
	}
	if outcome, ok := e.lookup(ctx, dispatched); ok {
		return e.settle(ctx, dispatched, outcome)
	}
	return e.exhaust(ctx, dispatched)
}

func (e *SettlementEngine) markDispatched(ctx context.Context, txn models.WalletTransaction) (models.WalletTransaction, error) {
	write, err := e.store.WithAccountLock(ctx, txn.OwnerID, func(ctx context.Context, view models.LedgerView) (*models.LedgerWrite, error) {
		current, err := view.Transaction(ctx, txn.ID)
		if err != nil {
			return nil, err
		}
		next, err := current.MarkDispatched(e.now())
		if err != nil {
			return nil, err
		}
		return &models.LedgerWrite{Account: view.Account(), Transaction: next, Op: models.WriteUpdate}, nil
	})
	if err != nil {
		return models.WalletTransaction{}, err
	}
	return write.Transaction, nil
}

type railResult struct {
	outcome models.Outcome
	err     error
}

// attempt calls the rail under RailTimeout. Errors and unknown answers count as TIMEOUT.
func (e *SettlementEngine) attempt(ctx context.Context, txn models.WalletTransaction) models.Outcome {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.RailTimeout)
	defer cancel()

	done := make(chan railResult, 1)
	go func() {
		outcome, err := e.rail.AttemptSettlement(callCtx, txn)
		done <- railResult{outcome: outcome, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			logger.Log.Warnw("rail attempt failed", "transaction_id", txn.ID, "attempt", txn.Attempts, "error", res.err)
			return models.OutcomeTimeout
		}
		if _, ok := models.ParseOutcome(string(res.outcome)); !ok {
			logger.Log.Warnw("unknown rail outcome", "transaction_id", txn.ID, "outcome", res.outcome)
			return models.OutcomeTimeout
		}
		return res.outcome
	case <-callCtx.Done():
		return models.OutcomeTimeout
	}
}

// lookup asks the rail for a definitive outcome of a previous attempt.
func (e *SettlementEngine) lookup(ctx context.Context, txn models.WalletTransaction) (models.Outcome, bool) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.RailTimeout)
	defer cancel()

	outcome, found, err := e.rail.LookupSettlement(callCtx, txn.ExternalReference)
	if err != nil {
		logger.Log.Warnw("rail lookup failed", "transaction_id", txn.ID, "reference", txn.ExternalReference, "error", err)
		return "", false
	}
	if !found || (outcome != models.OutcomeSuccess && outcome != models.OutcomeFailure) {
		return "", false
	}
	return outcome, true
}

// settle applies a definitive outcome and reports whether it has to be retried.
func (e *SettlementEngine) settle(ctx context.Context, txn models.WalletTransaction, outcome models.Outcome) bool {
	status, reason := terminalStatus(outcome)
	_, err := e.transition(ctx, txn.OwnerID, txn.ID, status, reason)
	if err == nil || settled(err) {
		return false
	}
	logger.Log.Warnw("failed to apply settlement outcome", "transaction_id", txn.ID, "outcome", outcome, "error", err)
	return true
}

// exhaust fails a transaction the rail never answered and raises an operator alert.
func (e *SettlementEngine) exhaust(ctx context.Context, txn models.WalletTransaction) bool {
	failed, err := e.transition(ctx, txn.OwnerID, txn.ID, models.StatusFailed, ReasonRetryBudgetExhausted)
	if err != nil {
		return !settled(err)
	}

	logger.Log.Errorw("settlement alert",
		"transaction_id", failed.ID,
		"owner_id", failed.OwnerID,
		"reference", failed.ExternalReference,
		"attempts", failed.Attempts,
		"reason", ReasonRetryBudgetExhausted,
	)
	e.events.PublishAlert(ctx, failed, ReasonRetryBudgetExhausted)
	return false
}

// transition moves a PENDING transaction to status and applies its balance effect atomically.
func (e *SettlementEngine) transition(
	ctx context.Context,
	ownerID uuid.UUID,
	id string,
	status models.TransactionStatus,
	reason string,
) (models.WalletTransaction, error) {
	write, err := e.store.WithAccountLock(ctx, ownerID, func(ctx context.Context, view models.LedgerView) (*models.LedgerWrite, error) {
		txn, err := view.Transaction(ctx, id)
		if err != nil {
			return nil, err
		}
		now := e.now()
		next, err := txn.Transition(status, reason, now)
		if err != nil {
			return nil, err
		}
		account, err := view.Account().ApplyTransition(txn, status, now)
		if err != nil {
			return nil, err
		}
		return &models.LedgerWrite{Account: account, Transaction: next, Op: models.WriteUpdate}, nil
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidStateTransition) {
			logger.Log.Warnw("transaction already settled", "transaction_id", id, "status", status)
		} else {
			logger.Log.Errorw("failed to settle transaction", "transaction_id", id, "status", status, "error", err)
		}
		return models.WalletTransaction{}, err
	}

	logger.Log.Infow("transaction settled",
		"transaction_id", id,
		"owner_id", ownerID,
		"status", status,
		"reason", reason,
	)
	e.committed(ctx, write, models.EventTypeForStatus(status))
	return write.Transaction, nil
}

func terminalStatus(outcome models.Outcome) (models.TransactionStatus, string) {
	if outcome == models.OutcomeSuccess {
		return models.StatusCompleted, ""
	}
	return models.StatusFailed, models.ErrRailFailure.Error()
}

// settled reports whether err means the transaction is no longer PENDING.
func settled(err error) bool {
	return errors.Is(err, models.ErrInvalidStateTransition) || errors.Is(err, models.ErrTransactionNotFound)
}
