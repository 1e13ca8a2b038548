package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"jastip/internal/service/stocklock"
	"jastip/pkg/utils"
)

// StockLockHandler reservation introspection endpoints for operators
type StockLockHandler struct {
	locker stocklock.Locker
}

// NewStockLockHandler creates a stock lock handler
func NewStockLockHandler(locker stocklock.Locker) *StockLockHandler {
	return &StockLockHandler{locker: locker}
}

// ListLocks handles GET /api/v1/stock-locks
func (h *StockLockHandler) ListLocks(c *gin.Context) {
	reservations := h.locker.ListActive()
	utils.Success(c, gin.H{
		"list":  reservations,
		"count": len(reservations),
	})
}

// GetLock handles GET /api/v1/stock-locks/:orderID
func (h *StockLockHandler) GetLock(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("orderID"), 10, 64)
	if err != nil {
		utils.Error(c, utils.CodeInvalidParam, "Invalid order ID")
		return
	}

	utils.Success(c, gin.H{
		"order_id": orderID,
		"locked":   h.locker.IsLocked(orderID),
	})
}

// Health handles GET /api/v1/stock-locks/health
func (h *StockLockHandler) Health(c *gin.Context) {
	utils.Success(c, h.locker.Health())
}

// Sweep handles POST /api/v1/stock-locks/sweep for manual expiry runs
func (h *StockLockHandler) Sweep(c *gin.Context) {
	released := h.locker.SweepExpired(c.Request.Context())
	utils.Success(c, gin.H{
		"released": released,
	})
}
