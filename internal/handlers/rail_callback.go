package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// CallbackApplier defines the interface that the settlement engine must implement.
type CallbackApplier interface {
	HandleCallback(ctx context.Context, reference string, outcome models.Outcome) error
}

// RailCallbackRequest represents an outcome pushed by the payment rail
// swagger:model RailCallbackRequest
type RailCallbackRequest struct {
	// Reference the transaction was submitted with
	// required: true
	ExternalReference string `json:"external_reference" example:"order-42"`

	// SUCCESS, FAILURE or TIMEOUT
	// required: true
	Outcome string `json:"outcome" example:"SUCCESS"`
}

// RailCallbackResponse acknowledges a callback
// swagger:model RailCallbackResponse
type RailCallbackResponse struct {
	Message string `json:"message"`
}

// NewRailCallbackHandler returns an HTTP handler applying rail callbacks.
// @Summary Rail settlement callback
// @Description Applies a settlement outcome reported by the rail. Repeated callbacks are acknowledged without effect.
// @Tags rail
// @Accept json
// @Produce json
// @Param X-Rail-Secret header string true "Shared rail secret"
// @Param request body handlers.RailCallbackRequest true "Callback"
// @Success 200 {object} handlers.RailCallbackResponse "Callback applied"
// @Failure 400 {object} handlers.ErrorResponse "Invalid callback"
// @Failure 401 "Invalid secret"
// @Failure 404 {object} handlers.ErrorResponse "Transaction not found"
// @Failure 503 {object} handlers.ErrorResponse "Service temporarily unavailable"
// @Router /rail/callback [post]
func NewRailCallbackHandler(engine CallbackApplier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req RailCallbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExternalReference == "" {
			logger.Log.Warnw("invalid rail callback", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		outcome, ok := models.ParseOutcome(req.Outcome)
		if !ok {
			logger.Log.Warnw("unknown rail callback outcome", "reference", req.ExternalReference, "outcome", req.Outcome)
			writeError(w, http.StatusBadRequest, "Invalid outcome")
			return
		}

		err := engine.HandleCallback(ctx, req.ExternalReference, outcome)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, RailCallbackResponse{Message: "Callback applied"})
		case errors.Is(err, models.ErrInvalidStateTransition):
			logger.Log.Warnw("rail callback for settled transaction", "reference", req.ExternalReference, "outcome", outcome)
			writeJSON(w, http.StatusOK, RailCallbackResponse{Message: "Transaction already settled"})
		default:
			status, message := statusFromError(err)
			logger.Log.Errorw("failed to apply rail callback", "reference", req.ExternalReference, "outcome", outcome, "error", err)
			writeError(w, status, message)
		}
	}
}
