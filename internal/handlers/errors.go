package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// ErrorResponse represents an error response
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	// default: Invalid amount
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusFromError maps ledger errors to an HTTP status and a client-safe message.
func statusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidAmount):
		return http.StatusBadRequest, "Invalid amount"
	case errors.Is(err, models.ErrInvalidMetadata):
		return http.StatusBadRequest, "Invalid metadata"
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusBadRequest, "Insufficient funds"
	case errors.Is(err, models.ErrUnsupportedKind):
		return http.StatusBadRequest, "Unsupported transaction kind"
	case errors.Is(err, models.ErrTransactionNotFound):
		return http.StatusNotFound, "Transaction not found"
	case errors.Is(err, models.ErrIdempotencyConflict):
		return http.StatusConflict, "External reference already used for a different request"
	case errors.Is(err, models.ErrInvalidStateTransition):
		return http.StatusConflict, "Transaction is no longer pending"
	case errors.Is(err, models.ErrStoreUnavailable), errors.Is(err, models.ErrLockTimeout):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// ownerFromContext returns the wallet owner authenticated by the auth middleware.
func ownerFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := jwt.FromContext(ctx)
	if !ok || claims.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return claims.UserID, true
}
