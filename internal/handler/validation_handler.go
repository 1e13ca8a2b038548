package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"jastip/internal/middleware"
	"jastip/internal/service/validation"
	"jastip/pkg/utils"
)

// ValidationHandler seller validation endpoints
type ValidationHandler struct {
	validationSvc validation.Service
}

// NewValidationHandler creates a validation handler
func NewValidationHandler(validationSvc validation.Service) *ValidationHandler {
	return &ValidationHandler{
		validationSvc: validationSvc,
	}
}

// Validate handles POST /api/v1/orders/:id/validate
func (h *ValidationHandler) Validate(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	result, err := h.validationSvc.Validate(c.Request.Context(), req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	utils.Success(c, result)
}

// ValidateFinal handles POST /api/v1/orders/:id/validate-final
func (h *ValidationHandler) ValidateFinal(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	result, err := h.validationSvc.ValidateFinal(c.Request.Context(), req)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	utils.Success(c, result)
}

// ListOverdue handles GET /api/v1/orders/overdue-validations
func (h *ValidationHandler) ListOverdue(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 500 {
		limit = 100
	}

	orders, err := h.validationSvc.ListOverdue(c.Request.Context(), limit)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	utils.Success(c, gin.H{
		"list":  orders,
		"count": len(orders),
	})
}

func (h *ValidationHandler) bindRequest(c *gin.Context) (*validation.ValidateRequest, bool) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.Error(c, utils.CodeInvalidParam, "Invalid order ID")
		return nil, false
	}

	sellerID, ok := middleware.GetSellerID(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "Missing seller identity")
		return nil, false
	}

	var req validation.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.CodeInvalidParam, "Invalid request body: "+err.Error())
		return nil, false
	}

	req.OrderID = orderID
	req.SellerID = sellerID
	return &req, true
}
