package pricing

import (
	"context"
	"math"

	"jastip/internal/model"
	"jastip/pkg/log"
)

// MinDPAmount default floor for any down payment, in rupiah
const MinDPAmount int64 = 10000

// FallbackCommissionPercent default rate used when the rate lookup fails
const FallbackCommissionPercent float64 = 5

// Commission rate provenance recorded on the breakdown
const (
	CommissionSourceSettings = "settings"
	CommissionSourceFallback = "fallback"
)

// EngineConfig pricing tunables. Zero values fall back to the platform
// defaults above.
type EngineConfig struct {
	FallbackCommissionPercent float64
	MinDPAmount               int64
	DefaultDPPercent          int
}

// Breakdown itemized computation justifying an order's final charged total.
// All amounts are integer rupiah.
type Breakdown struct {
	Subtotal           int64   `json:"subtotal"`
	ShippingFee        int64   `json:"shipping_fee"`
	JastiperMarkup     int64   `json:"jastiper_markup"`
	TaskFee            int64   `json:"task_fee"`
	ServiceFee         int64   `json:"service_fee"`
	PlatformCommission int64   `json:"platform_commission"`
	CommissionPercent  float64 `json:"commission_percent"`
	CommissionSource   string  `json:"commission_source,omitempty"`
	TotalFinal         int64   `json:"total_final"`
	DPAmount           int64   `json:"dp_amount"`
	RemainingAmount    int64   `json:"remaining_amount"`
}

// Engine price calculation engine interface
type Engine interface {
	// Down payment for a subtotal at the given percentage, floored at MinDPAmount
	CalculateDPAmount(subtotal int64, percent int) int64

	// Full price breakdown for a set of order items
	CalculateBreakdown(ctx context.Context, items []model.OrderItem, shippingFee, serviceFee int64, dpPercent int) *Breakdown

	// Consistency assertion over a computed breakdown
	ValidateBreakdown(b *Breakdown) bool

	// Total parcel weight in grams, input for the courier rate lookup
	CalculateTotalWeight(items []model.OrderItem) int
}

// engine price calculation engine implementation
type engine struct {
	rates RateProvider
	cfg   EngineConfig
}

// NewEngine creates a pricing engine with the platform defaults
func NewEngine(rates RateProvider) Engine {
	return NewEngineWithConfig(rates, EngineConfig{})
}

// NewEngineWithConfig creates a pricing engine with configured tunables
func NewEngineWithConfig(rates RateProvider, cfg EngineConfig) Engine {
	if cfg.FallbackCommissionPercent <= 0 {
		cfg.FallbackCommissionPercent = FallbackCommissionPercent
	}
	if cfg.MinDPAmount <= 0 {
		cfg.MinDPAmount = MinDPAmount
	}
	if cfg.DefaultDPPercent <= 0 {
		cfg.DefaultDPPercent = model.DefaultDPPercent
	}
	return &engine{rates: rates, cfg: cfg}
}

// CalculateDPAmount computes the down payment. Rounding is always up so the
// platform never under-collects a deposit.
func (e *engine) CalculateDPAmount(subtotal int64, percent int) int64 {
	if percent <= 0 {
		percent = e.cfg.DefaultDPPercent
	}
	amount := ceilDiv(subtotal*int64(percent), 100)
	if amount < e.cfg.MinDPAmount {
		amount = e.cfg.MinDPAmount
	}
	return amount
}

// CalculateBreakdown computes the full price breakdown. A failing commission
// rate lookup never aborts the calculation; the fallback rate is substituted.
func (e *engine) CalculateBreakdown(ctx context.Context, items []model.OrderItem, shippingFee, serviceFee int64, dpPercent int) *Breakdown {
	var subtotal, taskFee int64
	var markupHundredths int64
	hasGoods := false

	for _, item := range items {
		itemTotal := item.PriceAtOrder * int64(item.Quantity)
		subtotal += itemTotal

		switch item.ProductType {
		case model.ProductTypeGoods:
			hasGoods = true
		case model.ProductTypeTasks:
			taskFee += itemTotal
		}

		// Markup accumulates in hundredths of a rupiah so percent
		// policies round once, on the summed total.
		switch item.MarkupType {
		case model.MarkupTypePercent:
			markupHundredths += itemTotal * item.MarkupValue
		case model.MarkupTypeFlat:
			markupHundredths += item.MarkupValue * int64(item.Quantity) * 100
		}
	}

	// Service-only orders never carry shipping.
	if !hasGoods {
		shippingFee = 0
	}

	markup := ceilDiv(markupHundredths, 100)

	rate, source := e.commissionPercent(ctx)
	commission := int64(math.Ceil(float64(subtotal+markup) * rate / 100))

	totalFinal := subtotal + shippingFee + markup + serviceFee + commission

	dpAmount := e.CalculateDPAmount(subtotal, dpPercent)
	remaining := totalFinal - dpAmount
	if remaining < 0 {
		remaining = 0
	}

	return &Breakdown{
		Subtotal:           subtotal,
		ShippingFee:        shippingFee,
		JastiperMarkup:     markup,
		TaskFee:            taskFee,
		ServiceFee:         serviceFee,
		PlatformCommission: commission,
		CommissionPercent:  rate,
		CommissionSource:   source,
		TotalFinal:         totalFinal,
		DPAmount:           dpAmount,
		RemainingAmount:    remaining,
	}
}

// ValidateBreakdown recomputes the additive check within a 1-rupiah rounding
// tolerance. Used as a consistency assertion before persisting.
func (e *engine) ValidateBreakdown(b *Breakdown) bool {
	sum := b.Subtotal + b.ShippingFee + b.JastiperMarkup + b.ServiceFee + b.PlatformCommission
	diff := sum - b.TotalFinal
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

// CalculateTotalWeight sums item weights, assuming the default weight for
// products with none recorded.
func (e *engine) CalculateTotalWeight(items []model.OrderItem) int {
	total := 0
	for _, item := range items {
		weight := item.WeightGram
		if weight <= 0 {
			weight = model.DefaultWeightGram
		}
		total += weight * item.Quantity
	}
	return total
}

func (e *engine) commissionPercent(ctx context.Context) (float64, string) {
	rate, err := e.rates.CommissionPercent(ctx)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error":    err.Error(),
			"fallback": e.cfg.FallbackCommissionPercent,
		}).Warn("Commission rate lookup failed, using fallback")
		return e.cfg.FallbackCommissionPercent, CommissionSourceFallback
	}
	if rate < 0 || rate > 100 {
		log.WithFields(map[string]interface{}{
			"rate":     rate,
			"fallback": e.cfg.FallbackCommissionPercent,
		}).Warn("Commission rate out of range, using fallback")
		return e.cfg.FallbackCommissionPercent, CommissionSourceFallback
	}
	return rate, CommissionSourceSettings
}

// ceilDiv integer division rounding up
func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
