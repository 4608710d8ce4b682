package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelHandler(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name               string
		id                 string
		mockErr            error
		expectedStatusCode int
	}{
		{name: "cancelled", id: "01JOK", expectedStatusCode: http.StatusOK},
		{name: "unknown transaction", id: "01JNONE", mockErr: models.ErrTransactionNotFound, expectedStatusCode: http.StatusNotFound},
		{name: "already dispatched", id: "01JSENT", mockErr: models.ErrInvalidStateTransition, expectedStatusCode: http.StatusConflict},
		{name: "store unavailable", id: "01JDOWN", mockErr: models.ErrStoreUnavailable, expectedStatusCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockWriter := NewMockCancelWriter(ctrl)
			txn := models.WalletTransaction{ID: tt.id, OwnerID: userID, Status: models.StatusCancelled}
			if tt.mockErr != nil {
				txn = models.WalletTransaction{}
			}
			mockWriter.EXPECT().CancelTransaction(gomock.Any(), userID, tt.id).Return(txn, tt.mockErr)

			r := chi.NewRouter()
			r.Post("/wallet/transactions/{id}/cancel", NewCancelHandler(mockWriter))

			req := withOwner(httptest.NewRequest(http.MethodPost, "/wallet/transactions/"+tt.id+"/cancel", nil), userID)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatusCode, rr.Code)
			if tt.mockErr == nil {
				var resp TransactionResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, models.StatusCancelled, resp.Transaction.Status)
			}
		})
	}
}
