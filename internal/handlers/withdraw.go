package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// WithdrawWriter defines the interface that the service must implement.
type WithdrawWriter interface {
	RequestWithdrawal(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, reference string, metadata json.RawMessage) (models.WalletTransaction, error)
}

// NewWithdrawHandler returns an HTTP handler admitting withdrawals.
// @Summary Withdraw funds
// @Description Reserves the amount and admits a PENDING withdrawal.
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body handlers.TransactionRequest true "Withdraw Request"
// @Success 202 {object} handlers.TransactionResponse "Withdrawal accepted"
// @Failure 400 {object} handlers.ErrorResponse "Invalid amount or insufficient funds"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 409 {object} handlers.ErrorResponse "External reference conflict"
// @Failure 503 {object} handlers.ErrorResponse "Service temporarily unavailable"
// @Router /wallet/withdraw [post]
// @Security BearerAuth
func NewWithdrawHandler(svc WithdrawWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ownerID, ok := ownerFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req TransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Warnw("failed to decode withdraw request", "owner_id", ownerID, "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		txn, err := svc.RequestWithdrawal(ctx, ownerID, req.Amount, req.ExternalReference, req.Metadata)
		if err != nil {
			status, message := statusFromError(err)
			logger.Log.Warnw("withdrawal rejected", "owner_id", ownerID, "amount", req.Amount.String(), "status", status, "error", err)
			writeError(w, status, message)
			return
		}

		writeJSON(w, http.StatusAccepted, TransactionResponse{
			Message:     "Withdrawal accepted for settlement",
			Transaction: txn,
		})
	}
}
