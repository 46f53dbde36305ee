package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/assistant-billing/internal/services/billing"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ConfirmUpgrade(ctx context.Context, req billing.ConfirmRequest) (billing.ConfirmResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(billing.ConfirmResult), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestCallbackHandler_Query(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantReq    *billing.ConfirmRequest
		result     billing.ConfirmResult
		err        error
		wantStatus int
		wantResult string
	}{
		{
			name:       "confirmed",
			query:      "?order_id=order_1&payment_status=paid",
			wantReq:    &billing.ConfirmRequest{OrderID: "order_1"},
			result:     billing.Confirmed,
			wantStatus: http.StatusOK,
			wantResult: "confirmed",
		},
		{
			name:       "already confirmed",
			query:      "?order_id=order_1&payment_status=paid",
			wantReq:    &billing.ConfirmRequest{OrderID: "order_1"},
			result:     billing.AlreadyConfirmed,
			wantStatus: http.StatusOK,
			wantResult: "already_confirmed",
		},
		{
			name:       "provider ids",
			query:      "?razorpay_order_id=order_2&razorpay_payment_id=pay_1&razorpay_signature=abc",
			wantReq:    &billing.ConfirmRequest{OrderID: "order_2", PaymentID: "pay_1", Signature: "abc"},
			result:     billing.Confirmed,
			wantStatus: http.StatusOK,
			wantResult: "confirmed",
		},
		{
			name:       "unknown order",
			query:      "?order_id=order_404&payment_status=paid",
			wantReq:    &billing.ConfirmRequest{OrderID: "order_404"},
			result:     billing.NotFound,
			wantStatus: http.StatusNotFound,
			wantResult: "not_found",
		},
		{
			name:       "not settled",
			query:      "?order_id=order_1&payment_status=paid",
			wantReq:    &billing.ConfirmRequest{OrderID: "order_1"},
			err:        fmt.Errorf("billing.ConfirmUpgrade: %w", billing.ErrNotSettled),
			wantStatus: http.StatusPaymentRequired,
		},
		{
			name:       "bad signature",
			query:      "?order_id=order_1&razorpay_payment_id=pay_1&razorpay_signature=bad",
			wantReq:    &billing.ConfirmRequest{OrderID: "order_1", PaymentID: "pay_1", Signature: "bad"},
			err:        fmt.Errorf("billing.ConfirmUpgrade: %w", billing.ErrInvalidSignature),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "provider down",
			query:      "?order_id=order_1",
			wantReq:    &billing.ConfirmRequest{OrderID: "order_1"},
			err:        fmt.Errorf("billing.ConfirmUpgrade: %w", billing.ErrExternalService),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "store failure",
			query:      "?order_id=order_1",
			wantReq:    &billing.ConfirmRequest{OrderID: "order_1"},
			err:        errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "payment failed",
			query:      "?order_id=order_1&payment_status=failed",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing order id",
			query:      "?payment_status=paid",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.wantReq != nil {
				svc.On("ConfirmUpgrade", mock.Anything, *tt.wantReq).Return(tt.result, tt.err).Once()
			}

			req := httptest.NewRequest(http.MethodGet, "/billing/callback"+tt.query, nil)
			rr := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantResult != "" {
				var resp struct {
					Data Data `json:"data"`
				}
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantResult, resp.Data.Result)
			}
			if tt.wantReq == nil {
				svc.AssertNotCalled(t, "ConfirmUpgrade", mock.Anything, mock.Anything)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestCallbackHandler_PostForm(t *testing.T) {
	svc := new(ServiceMock)
	want := billing.ConfirmRequest{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}
	svc.On("ConfirmUpgrade", mock.Anything, want).Return(billing.Confirmed, nil).Once()

	form := url.Values{
		"razorpay_order_id":   {"order_1"},
		"razorpay_payment_id": {"pay_1"},
		"razorpay_signature":  {"sig"},
	}
	req := httptest.NewRequest(http.MethodPost, "/billing/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	New(newNoopLogger(), svc).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}
