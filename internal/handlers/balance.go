package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// BalanceReader defines the interface that the service must implement.
type BalanceReader interface {
	GetBalance(ctx context.Context, ownerID uuid.UUID) (models.Balance, error)
}

// BalanceResponse represents the wallet balance
// swagger:model BalanceResponse
type BalanceResponse struct {
	// Funds attributed to the owner
	TotalBalance decimal.Decimal `json:"total_balance" swaggertype:"string" example:"1000.00"`

	// Funds free to withdraw
	AvailableBalance decimal.Decimal `json:"available_balance" swaggertype:"string" example:"500.00"`

	// Funds reserved by in-flight withdrawals
	BlockedBalance decimal.Decimal `json:"blocked_balance" swaggertype:"string" example:"500.00"`

	// Last balance change
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGetBalanceHandler returns an HTTP handler for fetching the wallet balance.
// @Summary Get wallet balance
// @Description Returns total, available and blocked balance. The snapshot may lag behind in-flight settlements.
// @Tags wallet
// @Produce json
// @Success 200 {object} handlers.BalanceResponse "Wallet balance"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 503 {object} handlers.ErrorResponse "Service temporarily unavailable"
// @Router /balance [get]
// @Security BearerAuth
func NewGetBalanceHandler(svc BalanceReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ownerID, ok := ownerFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		balance, err := svc.GetBalance(ctx, ownerID)
		if err != nil {
			status, message := statusFromError(err)
			logger.Log.Errorw("failed to get balance", "owner_id", ownerID, "error", err)
			writeError(w, status, message)
			return
		}

		writeJSON(w, http.StatusOK, BalanceResponse{
			TotalBalance:     balance.TotalBalance,
			AvailableBalance: balance.AvailableBalance,
			BlockedBalance:   balance.BlockedBalance,
			UpdatedAt:        balance.UpdatedAt,
		})
	}
}
