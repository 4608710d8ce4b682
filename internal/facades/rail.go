package facades

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// RailDecision picks the outcome of the first attempt for a reference.
type RailDecision func(txn models.WalletTransaction) models.Outcome

// AlwaysSucceed settles every transaction.
func AlwaysSucceed(models.WalletTransaction) models.Outcome {
	return models.OutcomeSuccess
}

// RandomDecision fails a failureRate share of attempts and leaves a timeoutRate share unanswered.
func RandomDecision(failureRate, timeoutRate float64) RailDecision {
	return func(models.WalletTransaction) models.Outcome {
		p := rand.Float64()
		switch {
		case p < timeoutRate:
			return models.OutcomeTimeout
		case p < timeoutRate+failureRate:
			return models.OutcomeFailure
		default:
			return models.OutcomeSuccess
		}
	}
}

// SimulatedRail stands in for the external payment rail.
// Decided outcomes are remembered per external reference, so a repeated
// attempt or lookup for the same reference reports the same result.
type SimulatedRail struct {
	latency time.Duration
	decide  RailDecision

	mu       sync.Mutex
	outcomes map[string]models.Outcome
}

// NewSimulatedRail creates a rail answering after latency. A nil decide settles everything.
func NewSimulatedRail(latency time.Duration, decide RailDecision) *SimulatedRail {
	if decide == nil {
		decide = AlwaysSucceed
	}
	return &SimulatedRail{
		latency:  latency,
		decide:   decide,
		outcomes: make(map[string]models.Outcome),
	}
}

// AttemptSettlement submits txn and returns the rail's answer.
func (r *SimulatedRail) AttemptSettlement(ctx context.Context, txn models.WalletTransaction) (models.Outcome, error) {
	if err := r.wait(ctx); err != nil {
		logger.Log.Warnw("rail attempt abandoned", "reference", txn.ExternalReference, "error", err)
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if outcome, exists := r.outcomes[txn.ExternalReference]; exists {
		return outcome, nil
	}
	outcome := r.decide(txn)
	if outcome != models.OutcomeTimeout {
		r.outcomes[txn.ExternalReference] = outcome
	}

	logger.Log.Infow("rail attempt",
		"transaction_id", txn.ID,
		"reference", txn.ExternalReference,
		"amount", txn.Amount.String(),
		"outcome", outcome,
	)
	return outcome, nil
}

// LookupSettlement reports the outcome recorded for reference, if any.
func (r *SimulatedRail) LookupSettlement(ctx context.Context, reference string) (models.Outcome, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	outcome, exists := r.outcomes[reference]
	return outcome, exists, nil
}

// Record stores an outcome decided outside the simulator, e.g. by a rail callback.
func (r *SimulatedRail) Record(reference string, outcome models.Outcome) {
	if outcome == models.OutcomeTimeout {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[reference] = outcome
}

func (r *SimulatedRail) wait(ctx context.Context) error {
	if r.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(r.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
