package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// TransactionsReader defines the interface that the service must implement.
type TransactionsReader interface {
	ListTransactions(ctx context.Context, ownerID uuid.UUID, pageSize int, cursor string) (models.TransactionPage, error)
}

// NewListTransactionsHandler returns an HTTP handler for the transaction history.
// @Summary List transactions
// @Description Returns the owner's transactions, newest first. Pass next_cursor back as cursor for the next page.
// @Tags wallet
// @Produce json
// @Param limit query int false "Page size, default 20, max 100"
// @Param cursor query string false "Cursor from the previous page"
// @Success 200 {object} models.TransactionPage "Transaction page"
// @Failure 400 {object} handlers.ErrorResponse "Invalid limit"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 503 {object} handlers.ErrorResponse "Service temporarily unavailable"
// @Router /wallet/transactions [get]
// @Security BearerAuth
func NewListTransactionsHandler(svc TransactionsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ownerID, ok := ownerFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		query := r.URL.Query()
		limit := 0
		if raw := query.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "Invalid limit")
				return
			}
			limit = n
		}

		page, err := svc.ListTransactions(ctx, ownerID, limit, query.Get("cursor"))
		if err != nil {
			status, message := statusFromError(err)
			logger.Log.Errorw("failed to list transactions", "owner_id", ownerID, "error", err)
			writeError(w, status, message)
			return
		}

		if page.Transactions == nil {
			page.Transactions = []models.WalletTransaction{}
		}
		writeJSON(w, http.StatusOK, page)
	}
}
