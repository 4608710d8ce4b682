package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// CancelWriter defines the interface that the service must implement.
type CancelWriter interface {
	CancelTransaction(ctx context.Context, ownerID uuid.UUID, transactionID string) (models.WalletTransaction, error)
}

// NewCancelHandler returns an HTTP handler cancelling a transaction not yet sent to the rail.
// @Summary Cancel transaction
// @Description Cancels a PENDING transaction the settlement engine has not dispatched yet.
// @Tags wallet
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} handlers.TransactionResponse "Transaction cancelled"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "Transaction not found"
// @Failure 409 {object} handlers.ErrorResponse "Transaction is no longer pending"
// @Router /wallet/transactions/{id}/cancel [post]
// @Security BearerAuth
func NewCancelHandler(svc CancelWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ownerID, ok := ownerFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		id := chi.URLParam(r, "id")
		txn, err := svc.CancelTransaction(ctx, ownerID, id)
		if err != nil {
			status, message := statusFromError(err)
			logger.Log.Warnw("cancellation rejected", "owner_id", ownerID, "transaction_id", id, "status", status, "error", err)
			writeError(w, status, message)
			return
		}

		writeJSON(w, http.StatusOK, TransactionResponse{
			Message:     "Transaction cancelled",
			Transaction: txn,
		})
	}
}
