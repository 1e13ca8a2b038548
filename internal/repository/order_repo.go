package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"jastip/internal/model"
)

// ErrOrderNotFound order does not exist
var ErrOrderNotFound = errors.New("order not found")

// AcceptanceUpdate carries everything the accept transition persists in a
// single optimistic write.
type AcceptanceUpdate struct {
	SellerID           uint64
	ValidatedAt        time.Time
	TotalPrice         int64
	DPAmount           int64
	FinalAmount        int64
	ShippingFee        int64
	ServiceFee         int64
	PlatformCommission int64
	FinalBreakdown     string
}

// OrderRepository order repository interface
type OrderRepository interface {
	// Create order with items
	Create(ctx context.Context, order *model.Order) error

	// Load order with its items and trip
	GetWithDetails(ctx context.Context, id uint64) (*model.Order, error)

	// Transition awaiting_validation -> awaiting_final_payment, persisting
	// the accepted breakdown. Returns false if the status guard failed.
	ApplyAcceptance(ctx context.Context, id uint64, upd AcceptanceUpdate) (bool, error)

	// Transition awaiting_validation -> rejected. Returns false if the
	// status guard failed.
	ApplyRejection(ctx context.Context, id uint64, sellerID uint64, reason string, at time.Time) (bool, error)

	// Transition awaiting_final_validation -> paid. Returns false if the
	// status guard failed.
	ApplyFinalAcceptance(ctx context.Context, id uint64, sellerID uint64, at time.Time) (bool, error)

	// Transition awaiting_final_validation -> awaiting_final_payment
	// (proof rejected, re-upload required).
	ApplyFinalRejection(ctx context.Context, id uint64, sellerID uint64, reason string, at time.Time) (bool, error)

	// List orders stuck in awaiting_validation past the SLA cutoff
	ListOverdueValidations(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error)
}

// orderRepository order repository implementation
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create creates an order with its items
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetWithDetails loads an order with its items and trip
func (r *orderRepository) GetWithDetails(ctx context.Context, id uint64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Trip").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ApplyAcceptance persists the accept transition. The WHERE clause on status
// is the optimistic-concurrency guard: a racing call sees zero rows affected.
func (r *orderRepository) ApplyAcceptance(ctx context.Context, id uint64, upd AcceptanceUpdate) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, model.OrderStatusAwaitingValidation).
		Updates(map[string]interface{}{
			"status":              model.OrderStatusAwaitingFinalPayment,
			"validated_at":        upd.ValidatedAt,
			"validated_by":        upd.SellerID,
			"total_price":         upd.TotalPrice,
			"dp_amount":           upd.DPAmount,
			"final_amount":        upd.FinalAmount,
			"shipping_fee":        upd.ShippingFee,
			"service_fee":         upd.ServiceFee,
			"platform_commission": upd.PlatformCommission,
			"final_breakdown":     upd.FinalBreakdown,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ApplyRejection persists the reject transition
func (r *orderRepository) ApplyRejection(ctx context.Context, id uint64, sellerID uint64, reason string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, model.OrderStatusAwaitingValidation).
		Updates(map[string]interface{}{
			"status":           model.OrderStatusRejected,
			"validated_at":     at,
			"validated_by":     sellerID,
			"rejection_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ApplyFinalAcceptance settles the order
func (r *orderRepository) ApplyFinalAcceptance(ctx context.Context, id uint64, sellerID uint64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, model.OrderStatusAwaitingFinalValidation).
		Updates(map[string]interface{}{
			"status":       model.OrderStatusPaid,
			"validated_at": at,
			"validated_by": sellerID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ApplyFinalRejection sends the order back for a new final-payment proof
func (r *orderRepository) ApplyFinalRejection(ctx context.Context, id uint64, sellerID uint64, reason string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, model.OrderStatusAwaitingFinalValidation).
		Updates(map[string]interface{}{
			"status":           model.OrderStatusAwaitingFinalPayment,
			"validated_at":     at,
			"validated_by":     sellerID,
			"rejection_reason": reason,
			"final_proof_url":  nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListOverdueValidations lists orders awaiting validation past the SLA cutoff
func (r *orderRepository) ListOverdueValidations(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Trip").
		Where("status = ? AND dp_paid_at < ?", model.OrderStatusAwaitingValidation, cutoff).
		Order("dp_paid_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
