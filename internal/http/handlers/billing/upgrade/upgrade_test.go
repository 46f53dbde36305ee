package upgrade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/assistant-billing/internal/models"
	"github.com/magabrotheeeer/assistant-billing/internal/services/billing"
	"github.com/magabrotheeeer/assistant-billing/internal/session"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) BeginUpgrade(ctx context.Context, username string) (*models.OrderHandle, error) {
	args := m.Called(ctx, username)
	h, _ := args.Get(0).(*models.OrderHandle)
	return h, args.Error(1)
}

type SessionsMock struct {
	mock.Mock
}

func (m *SessionsMock) Save(ctx context.Context, sess *session.Session) error {
	return m.Called(ctx, sess).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func serve(h *Handler, sess *session.Session) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/billing/upgrade", nil)
	if sess != nil {
		req = req.WithContext(session.WithSession(req.Context(), sess))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestUpgradeHandler_Success(t *testing.T) {
	svc := new(ServiceMock)
	sessions := new(SessionsMock)
	sess := &session.Session{ID: "sid", Username: "alice"}
	handle := &models.OrderHandle{
		OrderID:  "order_1",
		Amount:   19900,
		Currency: "INR",
		Status:   models.OrderStatusCreated,
		Checkout: models.CheckoutInfo{KeyID: "rzp_test"},
	}

	svc.On("BeginUpgrade", mock.Anything, "alice").Return(handle, nil).Once()
	sessions.On("Save", mock.Anything, sess).Return(nil).Once()

	rr := serve(New(newNoopLogger(), svc, sessions), sess)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp struct {
		Data models.OrderHandle `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "order_1", resp.Data.OrderID)
	assert.Equal(t, "rzp_test", resp.Data.Checkout.KeyID)
	assert.Same(t, handle, sess.PendingOrder)

	svc.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestUpgradeHandler_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "provider down", err: fmt.Errorf("billing.BeginUpgrade: %w", billing.ErrExternalService), wantStatus: http.StatusBadGateway},
		{name: "store failure", err: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			sessions := new(SessionsMock)
			sess := &session.Session{ID: "sid", Username: "alice"}
			svc.On("BeginUpgrade", mock.Anything, "alice").Return(nil, tt.err).Once()

			rr := serve(New(newNoopLogger(), svc, sessions), sess)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Nil(t, sess.PendingOrder)
			sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestUpgradeHandler_NoSession(t *testing.T) {
	svc := new(ServiceMock)
	rr := serve(New(newNoopLogger(), svc, new(SessionsMock)), nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "BeginUpgrade", mock.Anything, mock.Anything)
}
