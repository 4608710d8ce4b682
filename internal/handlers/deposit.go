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

// DepositWriter defines the interface that the service must implement.
type DepositWriter interface {
	RequestDeposit(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, reference string, metadata json.RawMessage) (models.WalletTransaction, error)
}

// TransactionRequest represents the JSON body of a deposit or withdrawal
// swagger:model TransactionRequest
type TransactionRequest struct {
	// Amount, positive with at most two decimal places
	// required: true
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"100.50"`

	// Idempotency key, generated when omitted
	ExternalReference string `json:"external_reference,omitempty" example:"order-42"`

	// Opaque payload stored with the transaction
	Metadata json.RawMessage `json:"metadata,omitempty" swaggertype:"object"`
}

// TransactionResponse represents an accepted or updated transaction
// swagger:model TransactionResponse
type TransactionResponse struct {
	// Status message
	Message string `json:"message"`

	// Transaction as recorded in the ledger
	Transaction models.WalletTransaction `json:"transaction"`
}

// NewDepositHandler returns an HTTP handler admitting deposits.
// @Summary Deposit funds
// @Description Admits a PENDING deposit. Balance changes once the rail settles it.
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body handlers.TransactionRequest true "Deposit Request"
// @Success 202 {object} handlers.TransactionResponse "Deposit accepted"
// @Failure 400 {object} handlers.ErrorResponse "Invalid amount"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 409 {object} handlers.ErrorResponse "External reference conflict"
// @Failure 503 {object} handlers.ErrorResponse "Service temporarily unavailable"
// @Router /wallet/deposit [post]
// @Security BearerAuth
func NewDepositHandler(svc DepositWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ownerID, ok := ownerFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req TransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Warnw("failed to decode deposit request", "owner_id", ownerID, "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		txn, err := svc.RequestDeposit(ctx, ownerID, req.Amount, req.ExternalReference, req.Metadata)
		if err != nil {
			status, message := statusFromError(err)
			logger.Log.Warnw("deposit rejected", "owner_id", ownerID, "amount", req.Amount.String(), "status", status, "error", err)
			writeError(w, status, message)
			return
		}

		writeJSON(w, http.StatusAccepted, TransactionResponse{
			Message:     "Deposit accepted for settlement",
			Transaction: txn,
		})
	}
}
