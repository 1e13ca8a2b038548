package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jastip/internal/model"
	"jastip/internal/monitor"
	"jastip/internal/notify"
	"jastip/internal/repository"
	"jastip/internal/service/pricing"
	"jastip/internal/service/stocklock"
	"jastip/pkg/lock"
	"jastip/pkg/log"
	"jastip/pkg/utils"
)

// Action seller decision on a validation request
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// ValidateRequest seller validation input
type ValidateRequest struct {
	OrderID  uint64 `json:"-"`
	SellerID uint64 `json:"-"`

	Action Action `json:"action" binding:"required,oneof=accept reject"`

	// Accept path. ShippingFee is required when the order carries goods.
	ShippingFee int64 `json:"shipping_fee" binding:"min=0"`
	ServiceFee  int64 `json:"service_fee" binding:"min=0"`

	// Reject path.
	RejectionReason string `json:"rejection_reason" binding:"max=500"`
}

// ValidateResult outcome of a validation call
type ValidateResult struct {
	OrderID     uint64             `json:"order_id"`
	OrderCode   string             `json:"order_code"`
	Status      model.OrderStatus  `json:"status"`
	Breakdown   *pricing.Breakdown `json:"breakdown,omitempty"`
	PaymentLink string             `json:"payment_link,omitempty"`
}

// Config validation service tunables
type Config struct {
	// PaymentBase is the base URL final-payment links are built from.
	PaymentBase string
	// SLA is how long an order may sit in awaiting_validation before it
	// counts as overdue.
	SLA time.Duration
	// LockExtension applied when a rejected final proof sends the order
	// back for re-upload.
	LockExtension time.Duration

	// Metrics and Tracer are optional; nil disables recording.
	Metrics *monitor.MetricsCollector
	Tracer  *monitor.Tracer
}

// Service order validation orchestrator interface
type Service interface {
	// Validate applies the seller's accept/reject decision to an order in
	// awaiting_validation.
	Validate(ctx context.Context, req *ValidateRequest) (*ValidateResult, error)

	// ValidateFinal applies the seller's decision on the final payment proof
	// of an order in awaiting_final_validation.
	ValidateFinal(ctx context.Context, req *ValidateRequest) (*ValidateResult, error)

	// IsValidationOverdue reports whether the order has been waiting for
	// seller validation longer than the SLA.
	IsValidationOverdue(order *model.Order, now time.Time) bool

	// ListOverdue lists orders past the validation SLA
	ListOverdue(ctx context.Context, limit int) ([]*model.Order, error)
}

// service order validation orchestrator implementation
type service struct {
	orders   repository.OrderRepository
	engine   pricing.Engine
	locker   stocklock.Locker
	notifier notify.Notifier
	mutex    *lock.KeyedMutex
	cfg      Config

	now func() time.Time
}

// NewService creates a validation service
func NewService(orders repository.OrderRepository, engine pricing.Engine, locker stocklock.Locker, notifier notify.Notifier, cfg Config) Service {
	if cfg.SLA <= 0 {
		cfg.SLA = 24 * time.Hour
	}
	if cfg.LockExtension <= 0 {
		cfg.LockExtension = stocklock.DefaultExtension
	}
	return &service{
		orders:   orders,
		engine:   engine,
		locker:   locker,
		notifier: notifier,
		mutex:    lock.NewKeyedMutex(),
		cfg:      cfg,
		now:      time.Now,
	}
}

func orderKey(id uint64) string {
	return fmt.Sprintf("order:%d", id)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Stages reported on validation metrics
const (
	stageInitial = "initial"
	stageFinal   = "final"
)

// Validate applies the seller's decision to an order awaiting validation.
// Calls for the same order are serialized; the status guard in the repository
// is the second line of defense against racing processes.
func (s *service) Validate(ctx context.Context, req *ValidateRequest) (*ValidateResult, error) {
	ctx, span := s.cfg.Tracer.StartSpan(ctx, "order.validate")
	defer span.End()

	start := time.Now()
	result, err := s.validate(ctx, req)
	s.cfg.Metrics.RecordValidation(stageInitial, string(req.Action), outcome(err), time.Since(start))
	return result, err
}

func (s *service) validate(ctx context.Context, req *ValidateRequest) (*ValidateResult, error) {
	if err := s.mutex.Lock(ctx, orderKey(req.OrderID)); err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "validation interrupted")
	}
	defer s.mutex.Unlock(orderKey(req.OrderID))

	order, err := s.loadOwnedOrder(ctx, req.OrderID, req.SellerID)
	if err != nil {
		return nil, err
	}

	if !order.CanValidate() {
		return nil, utils.NewErrorf(utils.CodeInvalidState,
			"order %s is %s, expected %s", order.OrderCode, order.Status, model.OrderStatusAwaitingValidation)
	}

	switch req.Action {
	case ActionAccept:
		return s.accept(ctx, order, req)
	case ActionReject:
		return s.reject(ctx, order, req)
	default:
		return nil, utils.NewErrorf(utils.CodeInvalidParam, "unknown action %q", req.Action)
	}
}

// accept computes the authoritative price, commits the stock reservation and
// persists the transition. Stock is released again if the status write loses
// a race.
func (s *service) accept(ctx context.Context, order *model.Order, req *ValidateRequest) (*ValidateResult, error) {
	if order.HasGoodsItem() && req.ShippingFee <= 0 {
		return nil, utils.NewError(utils.CodeValidation, "shipping fee is required for orders with goods items")
	}

	// A zero trip percentage means no override; the engine substitutes its
	// configured default.
	dpPercent := 0
	if order.Trip != nil {
		dpPercent = order.Trip.DPPercent
	}

	breakdown := s.engine.CalculateBreakdown(ctx, order.Items, req.ShippingFee, req.ServiceFee, dpPercent)
	s.cfg.Metrics.RecordPriceBreakdown(breakdown.CommissionSource)
	if !s.engine.ValidateBreakdown(breakdown) {
		return nil, utils.NewError(utils.CodeInternalError, "price breakdown failed consistency check")
	}

	items := lockItems(order.Items)
	if err := s.locker.Lock(ctx, order.ID, items); err != nil {
		s.cfg.Metrics.RecordStockLock("lock", "error")
		var insufficient *stocklock.InsufficientStockError
		if errors.As(err, &insufficient) {
			return nil, utils.WrapError(err, utils.CodeStockUnavailable, insufficient.Error())
		}
		if errors.Is(err, stocklock.ErrAlreadyLocked) {
			return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s already has an active stock reservation", order.OrderCode)
		}
		return nil, utils.WrapError(err, utils.CodeInternalError, "stock reservation failed")
	}
	s.cfg.Metrics.RecordStockLock("lock", "success")

	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		s.rollbackReservation(ctx, order.ID)
		return nil, utils.WrapError(err, utils.CodeInternalError, "failed to serialize breakdown")
	}

	ok, err := s.orders.ApplyAcceptance(ctx, order.ID, repository.AcceptanceUpdate{
		SellerID:           req.SellerID,
		ValidatedAt:        s.now(),
		TotalPrice:         breakdown.TotalFinal,
		DPAmount:           breakdown.DPAmount,
		FinalAmount:        breakdown.RemainingAmount,
		ShippingFee:        breakdown.ShippingFee,
		ServiceFee:         breakdown.ServiceFee,
		PlatformCommission: breakdown.PlatformCommission,
		FinalBreakdown:     string(breakdownJSON),
	})
	if err != nil {
		s.rollbackReservation(ctx, order.ID)
		return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to persist acceptance")
	}
	if !ok {
		s.rollbackReservation(ctx, order.ID)
		return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s was modified concurrently", order.OrderCode)
	}

	paymentLink := fmt.Sprintf("%s/orders/%s/final", s.cfg.PaymentBase, order.OrderCode)

	log.WithFields(map[string]interface{}{
		"order_id":    order.ID,
		"order_code":  order.OrderCode,
		"seller_id":   req.SellerID,
		"total_final": breakdown.TotalFinal,
		"remaining":   breakdown.RemainingAmount,
	}).Info("Order accepted")

	go s.notifier.NotifyOrderValidated(context.WithoutCancel(ctx), notify.OrderEvent{
		OrderID:       order.ID,
		OrderCode:     order.OrderCode,
		ParticipantID: order.ParticipantID,
		GuestID:       order.GuestID,
		FinalAmount:   breakdown.RemainingAmount,
		PaymentLink:   paymentLink,
		OccurredAt:    s.now(),
	})

	return &ValidateResult{
		OrderID:     order.ID,
		OrderCode:   order.OrderCode,
		Status:      model.OrderStatusAwaitingFinalPayment,
		Breakdown:   breakdown,
		PaymentLink: paymentLink,
	}, nil
}

// reject persists the reject transition. Any stock reservation is released
// with restoration, though normally none exists before acceptance.
func (s *service) reject(ctx context.Context, order *model.Order, req *ValidateRequest) (*ValidateResult, error) {
	if req.RejectionReason == "" {
		return nil, utils.NewError(utils.CodeValidation, "rejection reason is required")
	}

	ok, err := s.orders.ApplyRejection(ctx, order.ID, req.SellerID, req.RejectionReason, s.now())
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to persist rejection")
	}
	if !ok {
		return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s was modified concurrently", order.OrderCode)
	}

	if err := s.locker.Release(ctx, order.ID, true); err != nil {
		s.cfg.Metrics.RecordStockLock("release", "error")
		log.WithFields(map[string]interface{}{
			"order_id": order.ID,
			"error":    err.Error(),
		}).Error("Failed to release stock reservation on rejection")
	} else {
		s.cfg.Metrics.RecordStockLock("release", "success")
	}

	log.WithFields(map[string]interface{}{
		"order_id":   order.ID,
		"order_code": order.OrderCode,
		"seller_id":  req.SellerID,
		"reason":     req.RejectionReason,
	}).Info("Order rejected")

	go s.notifier.NotifyOrderRejected(context.WithoutCancel(ctx), notify.OrderEvent{
		OrderID:       order.ID,
		OrderCode:     order.OrderCode,
		ParticipantID: order.ParticipantID,
		GuestID:       order.GuestID,
		Reason:        req.RejectionReason,
		OccurredAt:    s.now(),
	})

	return &ValidateResult{
		OrderID:   order.ID,
		OrderCode: order.OrderCode,
		Status:    model.OrderStatusRejected,
	}, nil
}

// ValidateFinal applies the seller's decision on the final payment proof
func (s *service) ValidateFinal(ctx context.Context, req *ValidateRequest) (*ValidateResult, error) {
	ctx, span := s.cfg.Tracer.StartSpan(ctx, "order.validate_final")
	defer span.End()

	start := time.Now()
	result, err := s.validateFinal(ctx, req)
	s.cfg.Metrics.RecordValidation(stageFinal, string(req.Action), outcome(err), time.Since(start))
	return result, err
}

func (s *service) validateFinal(ctx context.Context, req *ValidateRequest) (*ValidateResult, error) {
	if err := s.mutex.Lock(ctx, orderKey(req.OrderID)); err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "validation interrupted")
	}
	defer s.mutex.Unlock(orderKey(req.OrderID))

	order, err := s.loadOwnedOrder(ctx, req.OrderID, req.SellerID)
	if err != nil {
		return nil, err
	}

	if !order.CanValidateFinal() {
		return nil, utils.NewErrorf(utils.CodeInvalidState,
			"order %s is %s, expected %s", order.OrderCode, order.Status, model.OrderStatusAwaitingFinalValidation)
	}

	switch req.Action {
	case ActionAccept:
		return s.acceptFinal(ctx, order, req)
	case ActionReject:
		return s.rejectFinal(ctx, order, req)
	default:
		return nil, utils.NewErrorf(utils.CodeInvalidParam, "unknown action %q", req.Action)
	}
}

// acceptFinal settles the order. The reservation is released without
// restoration: the committed decrement becomes the sale.
func (s *service) acceptFinal(ctx context.Context, order *model.Order, req *ValidateRequest) (*ValidateResult, error) {
	ok, err := s.orders.ApplyFinalAcceptance(ctx, order.ID, req.SellerID, s.now())
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to persist settlement")
	}
	if !ok {
		return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s was modified concurrently", order.OrderCode)
	}

	if err := s.locker.Release(ctx, order.ID, false); err != nil {
		s.cfg.Metrics.RecordStockLock("release", "error")
		log.WithFields(map[string]interface{}{
			"order_id": order.ID,
			"error":    err.Error(),
		}).Error("Failed to drop stock reservation on settlement")
	} else {
		s.cfg.Metrics.RecordStockLock("release", "success")
	}

	log.WithFields(map[string]interface{}{
		"order_id":   order.ID,
		"order_code": order.OrderCode,
		"seller_id":  req.SellerID,
	}).Info("Order settled")

	go s.notifier.NotifyOrderSettled(context.WithoutCancel(ctx), notify.OrderEvent{
		OrderID:       order.ID,
		OrderCode:     order.OrderCode,
		ParticipantID: order.ParticipantID,
		GuestID:       order.GuestID,
		OccurredAt:    s.now(),
	})

	return &ValidateResult{
		OrderID:   order.ID,
		OrderCode: order.OrderCode,
		Status:    model.OrderStatusPaid,
	}, nil
}

// rejectFinal sends the order back for a fresh proof. The reservation is kept
// and extended so the buyer has time to re-upload.
func (s *service) rejectFinal(ctx context.Context, order *model.Order, req *ValidateRequest) (*ValidateResult, error) {
	if req.RejectionReason == "" {
		return nil, utils.NewError(utils.CodeValidation, "rejection reason is required")
	}

	ok, err := s.orders.ApplyFinalRejection(ctx, order.ID, req.SellerID, req.RejectionReason, s.now())
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to persist proof rejection")
	}
	if !ok {
		return nil, utils.NewErrorf(utils.CodeInvalidState, "order %s was modified concurrently", order.OrderCode)
	}

	if s.locker.Extend(order.ID, s.cfg.LockExtension) {
		s.cfg.Metrics.RecordStockLock("extend", "success")
	} else {
		s.cfg.Metrics.RecordStockLock("extend", "error")
		log.WithFields(map[string]interface{}{
			"order_id": order.ID,
		}).Warn("No stock reservation to extend on proof rejection")
	}

	log.WithFields(map[string]interface{}{
		"order_id":   order.ID,
		"order_code": order.OrderCode,
		"seller_id":  req.SellerID,
		"reason":     req.RejectionReason,
	}).Info("Final payment proof rejected")

	go s.notifier.NotifyOrderRejected(context.WithoutCancel(ctx), notify.OrderEvent{
		OrderID:       order.ID,
		OrderCode:     order.OrderCode,
		ParticipantID: order.ParticipantID,
		GuestID:       order.GuestID,
		Reason:        req.RejectionReason,
		OccurredAt:    s.now(),
	})

	return &ValidateResult{
		OrderID:   order.ID,
		OrderCode: order.OrderCode,
		Status:    model.OrderStatusAwaitingFinalPayment,
	}, nil
}

// IsValidationOverdue reports whether the order sat in awaiting_validation
// past the SLA.
func (s *service) IsValidationOverdue(order *model.Order, now time.Time) bool {
	if order.Status != model.OrderStatusAwaitingValidation || order.DPPaidAt == nil {
		return false
	}
	return now.After(order.DPPaidAt.Add(s.cfg.SLA))
}

// ListOverdue lists orders past the validation SLA
func (s *service) ListOverdue(ctx context.Context, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := s.now().Add(-s.cfg.SLA)
	orders, err := s.orders.ListOverdueValidations(ctx, cutoff, limit)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to list overdue validations")
	}
	return orders, nil
}

func (s *service) loadOwnedOrder(ctx context.Context, orderID, sellerID uint64) (*model.Order, error) {
	order, err := s.orders.GetWithDetails(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, utils.ErrOrderNotFound
		}
		return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to load order")
	}

	if order.SellerID() != sellerID {
		return nil, utils.ErrForbidden
	}

	return order, nil
}

// rollbackReservation undoes a stock lock taken in a failed acceptance
func (s *service) rollbackReservation(ctx context.Context, orderID uint64) {
	if err := s.locker.Release(ctx, orderID, true); err != nil {
		s.cfg.Metrics.RecordStockLock("release", "error")
		log.WithFields(map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		}).Error("Failed to roll back stock reservation")
		return
	}
	s.cfg.Metrics.RecordStockLock("release", "success")
}

// lockItems maps order line items to reservation items
func lockItems(items []model.OrderItem) []stocklock.Item {
	out := make([]stocklock.Item, 0, len(items))
	for _, item := range items {
		out = append(out, stocklock.Item{
			ProductID:   item.ProductID,
			ProductType: item.ProductType,
			Quantity:    item.Quantity,
		})
	}
	return out
}
