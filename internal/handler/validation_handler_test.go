package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"jastip/internal/middleware"
	"jastip/internal/model"
	"jastip/internal/service/validation"
	"jastip/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeValidationService scripted validation service for handler tests
type fakeValidationService struct {
	lastReq *validation.ValidateRequest
	result  *validation.ValidateResult
	err     error
}

func (f *fakeValidationService) Validate(ctx context.Context, req *validation.ValidateRequest) (*validation.ValidateResult, error) {
	f.lastReq = req
	return f.result, f.err
}

func (f *fakeValidationService) ValidateFinal(ctx context.Context, req *validation.ValidateRequest) (*validation.ValidateResult, error) {
	f.lastReq = req
	return f.result, f.err
}

func (f *fakeValidationService) IsValidationOverdue(order *model.Order, now time.Time) bool {
	return false
}

func (f *fakeValidationService) ListOverdue(ctx context.Context, limit int) ([]*model.Order, error) {
	return nil, f.err
}

func newValidationRouter(svc validation.Service) *gin.Engine {
	router := gin.New()
	h := NewValidationHandler(svc)
	// Seller identity injected directly, bypassing JWT validation.
	router.Use(func(c *gin.Context) {
		c.Set(middleware.SellerIDKey, uint64(9))
	})
	router.POST("/orders/:id/validate", h.Validate)
	router.POST("/orders/:id/validate-final", h.ValidateFinal)
	router.GET("/orders/overdue-validations", h.ListOverdue)
	return router
}

func TestValidateEndpoint(t *testing.T) {
	svc := &fakeValidationService{
		result: &validation.ValidateResult{
			OrderID:   100,
			OrderCode: "ORD-2025-0001",
			Status:    model.OrderStatusAwaitingFinalPayment,
		},
	}
	router := newValidationRouter(svc)

	body := `{"action":"accept","shipping_fee":5000}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/100/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "awaiting_final_payment")

	assert.Equal(t, uint64(100), svc.lastReq.OrderID)
	assert.Equal(t, uint64(9), svc.lastReq.SellerID)
	assert.Equal(t, validation.ActionAccept, svc.lastReq.Action)
	assert.Equal(t, int64(5000), svc.lastReq.ShippingFee)
}

func TestValidateEndpointBadOrderID(t *testing.T) {
	router := newValidationRouter(&fakeValidationService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/abc/validate", strings.NewReader(`{"action":"accept"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateEndpointBadAction(t *testing.T) {
	router := newValidationRouter(&fakeValidationService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/100/validate", strings.NewReader(`{"action":"maybe"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateEndpointStockConflict(t *testing.T) {
	svc := &fakeValidationService{
		err: utils.NewError(utils.CodeStockUnavailable, "insufficient stock for product 1"),
	}
	router := newValidationRouter(svc)

	body := `{"action":"accept","shipping_fee":5000}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/100/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient stock")
}

func TestValidateFinalEndpoint(t *testing.T) {
	svc := &fakeValidationService{
		result: &validation.ValidateResult{
			OrderID:   100,
			OrderCode: "ORD-2025-0001",
			Status:    model.OrderStatusPaid,
		},
	}
	router := newValidationRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/100/validate-final", strings.NewReader(`{"action":"accept"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "paid")
}

func TestValidateEndpointMissingSeller(t *testing.T) {
	router := gin.New()
	h := NewValidationHandler(&fakeValidationService{})
	router.POST("/orders/:id/validate", h.Validate)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders/100/validate", strings.NewReader(`{"action":"accept"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
