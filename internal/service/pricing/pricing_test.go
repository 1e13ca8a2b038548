package pricing

import (
	"context"
	"errors"
	"testing"

	"jastip/internal/model"
)

type failingRateProvider struct{}

func (failingRateProvider) CommissionPercent(ctx context.Context) (float64, error) {
	return 0, errors.New("redis: connection refused")
}

func newTestEngine() Engine {
	return NewEngine(StaticRateProvider{Rate: 5})
}

func TestCalculateDPAmount(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name     string
		subtotal int64
		percent  int
		want     int64
	}{
		{"standard 20 percent", 100000, 20, 20000},
		{"rounds up", 100001, 20, 20001},
		{"floor applies to small subtotal", 20000, 20, 10000},
		{"zero subtotal still floors", 0, 20, 10000},
		{"zero percent falls back to default", 100000, 0, 20000},
		{"custom percent", 100000, 50, 50000},
		{"odd percentage rounds up", 99999, 33, 33000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.CalculateDPAmount(tt.subtotal, tt.percent)
			if got != tt.want {
				t.Errorf("CalculateDPAmount(%d, %d) = %d, want %d", tt.subtotal, tt.percent, got, tt.want)
			}
			if got < MinDPAmount {
				t.Errorf("DP %d below floor %d", got, MinDPAmount)
			}
		})
	}
}

func TestCalculateBreakdown_WorkedScenario(t *testing.T) {
	e := newTestEngine()

	// 2 x 50000 goods at 10% markup, 5000 shipping, 5% commission.
	items := []model.OrderItem{
		{
			ProductID:    1,
			ProductType:  model.ProductTypeGoods,
			PriceAtOrder: 50000,
			Quantity:     2,
			MarkupType:   model.MarkupTypePercent,
			MarkupValue:  10,
		},
	}

	b := e.CalculateBreakdown(context.Background(), items, 5000, 0, 20)

	if b.Subtotal != 100000 {
		t.Errorf("subtotal = %d, want 100000", b.Subtotal)
	}
	if b.JastiperMarkup != 10000 {
		t.Errorf("markup = %d, want 10000", b.JastiperMarkup)
	}
	if b.PlatformCommission != 5500 {
		t.Errorf("commission = %d, want 5500", b.PlatformCommission)
	}
	if b.TotalFinal != 120500 {
		t.Errorf("total = %d, want 120500", b.TotalFinal)
	}
	if b.DPAmount != 20000 {
		t.Errorf("dp = %d, want 20000", b.DPAmount)
	}
	if b.RemainingAmount != 100500 {
		t.Errorf("remaining = %d, want 100500", b.RemainingAmount)
	}
	if !e.ValidateBreakdown(b) {
		t.Error("breakdown failed additive check")
	}
}

func TestCalculateBreakdown_ServiceOnlyOrderDropsShipping(t *testing.T) {
	e := newTestEngine()

	items := []model.OrderItem{
		{
			ProductType:  model.ProductTypeTasks,
			PriceAtOrder: 200000,
			Quantity:     1,
			MarkupType:   model.MarkupTypeFlat,
			MarkupValue:  15000,
		},
	}

	b := e.CalculateBreakdown(context.Background(), items, 25000, 0, 20)

	if b.ShippingFee != 0 {
		t.Errorf("shipping = %d, want 0 for service-only order", b.ShippingFee)
	}
	if b.TaskFee != 200000 {
		t.Errorf("task fee = %d, want 200000", b.TaskFee)
	}
	if b.JastiperMarkup != 15000 {
		t.Errorf("markup = %d, want 15000", b.JastiperMarkup)
	}
	if !e.ValidateBreakdown(b) {
		t.Error("breakdown failed additive check")
	}
}

func TestCalculateBreakdown_FlatMarkupMultipliesQuantity(t *testing.T) {
	e := newTestEngine()

	items := []model.OrderItem{
		{
			ProductType:  model.ProductTypeGoods,
			PriceAtOrder: 30000,
			Quantity:     3,
			MarkupType:   model.MarkupTypeFlat,
			MarkupValue:  2000,
		},
	}

	b := e.CalculateBreakdown(context.Background(), items, 0, 0, 20)

	if b.JastiperMarkup != 6000 {
		t.Errorf("markup = %d, want 6000", b.JastiperMarkup)
	}
}

func TestCalculateBreakdown_PercentMarkupRoundsOnceOnSum(t *testing.T) {
	e := newTestEngine()

	// Two items whose individual percent markups are fractional: 3333*3%
	// = 99.99 each. Summed then ceiled: ceil(199.98) = 200, not 100+100.
	items := []model.OrderItem{
		{ProductType: model.ProductTypeGoods, PriceAtOrder: 3333, Quantity: 1, MarkupType: model.MarkupTypePercent, MarkupValue: 3},
		{ProductType: model.ProductTypeGoods, PriceAtOrder: 3333, Quantity: 1, MarkupType: model.MarkupTypePercent, MarkupValue: 3},
	}

	b := e.CalculateBreakdown(context.Background(), items, 0, 0, 20)

	if b.JastiperMarkup != 200 {
		t.Errorf("markup = %d, want 200", b.JastiperMarkup)
	}
}

func TestCalculateBreakdown_RemainingNeverNegative(t *testing.T) {
	e := newTestEngine()

	// Tiny subtotal where the DP floor exceeds the order total.
	items := []model.OrderItem{
		{ProductType: model.ProductTypeGoods, PriceAtOrder: 2000, Quantity: 1, MarkupType: model.MarkupTypeFlat},
	}

	b := e.CalculateBreakdown(context.Background(), items, 0, 0, 20)

	if b.DPAmount != MinDPAmount {
		t.Errorf("dp = %d, want floor %d", b.DPAmount, MinDPAmount)
	}
	if b.RemainingAmount != 0 {
		t.Errorf("remaining = %d, want 0", b.RemainingAmount)
	}
}

func TestCalculateBreakdown_RateLookupFailureFallsBack(t *testing.T) {
	e := NewEngine(failingRateProvider{})

	items := []model.OrderItem{
		{ProductType: model.ProductTypeGoods, PriceAtOrder: 100000, Quantity: 1, MarkupType: model.MarkupTypeFlat},
	}

	b := e.CalculateBreakdown(context.Background(), items, 0, 0, 20)

	if b.CommissionPercent != FallbackCommissionPercent {
		t.Errorf("rate = %f, want fallback %f", b.CommissionPercent, FallbackCommissionPercent)
	}
	if b.CommissionSource != CommissionSourceFallback {
		t.Errorf("source = %q, want %q", b.CommissionSource, CommissionSourceFallback)
	}
	if b.PlatformCommission != 5000 {
		t.Errorf("commission = %d, want 5000", b.PlatformCommission)
	}
}

func TestEngineConfigOverrides(t *testing.T) {
	// Configured tunables take precedence over the platform defaults.
	e := NewEngineWithConfig(failingRateProvider{}, EngineConfig{
		FallbackCommissionPercent: 8,
		MinDPAmount:               25000,
		DefaultDPPercent:          30,
	})

	if got := e.CalculateDPAmount(100000, 0); got != 30000 {
		t.Errorf("dp with configured default percent = %d, want 30000", got)
	}
	if got := e.CalculateDPAmount(10000, 0); got != 25000 {
		t.Errorf("dp floor = %d, want configured 25000", got)
	}

	items := []model.OrderItem{
		{ProductType: model.ProductTypeGoods, PriceAtOrder: 100000, Quantity: 1, MarkupType: model.MarkupTypeFlat},
	}
	b := e.CalculateBreakdown(context.Background(), items, 0, 0, 0)

	if b.CommissionPercent != 8 {
		t.Errorf("fallback rate = %f, want configured 8", b.CommissionPercent)
	}
	if b.PlatformCommission != 8000 {
		t.Errorf("commission = %d, want 8000", b.PlatformCommission)
	}
	if b.DPAmount != 30000 {
		t.Errorf("dp = %d, want 30000", b.DPAmount)
	}
}

func TestCalculateBreakdown_RecordsSettingsSource(t *testing.T) {
	e := newTestEngine()

	items := []model.OrderItem{
		{ProductType: model.ProductTypeGoods, PriceAtOrder: 100000, Quantity: 1, MarkupType: model.MarkupTypeFlat},
	}
	b := e.CalculateBreakdown(context.Background(), items, 0, 0, 20)

	if b.CommissionSource != CommissionSourceSettings {
		t.Errorf("source = %q, want %q", b.CommissionSource, CommissionSourceSettings)
	}
}

func TestValidateBreakdown_Additivity(t *testing.T) {
	e := newTestEngine()

	cases := [][]model.OrderItem{
		{
			{ProductType: model.ProductTypeGoods, PriceAtOrder: 17999, Quantity: 3, MarkupType: model.MarkupTypePercent, MarkupValue: 7},
			{ProductType: model.ProductTypeTasks, PriceAtOrder: 45000, Quantity: 1, MarkupType: model.MarkupTypeFlat, MarkupValue: 5000},
		},
		{
			{ProductType: model.ProductTypeGoods, PriceAtOrder: 1, Quantity: 1, MarkupType: model.MarkupTypePercent, MarkupValue: 1},
		},
		{
			{ProductType: model.ProductTypeTasks, PriceAtOrder: 99999, Quantity: 7, MarkupType: model.MarkupTypePercent, MarkupValue: 13},
		},
		{},
	}

	for i, items := range cases {
		b := e.CalculateBreakdown(context.Background(), items, 12345, 678, 20)
		if !e.ValidateBreakdown(b) {
			t.Errorf("case %d: breakdown failed additive check: %+v", i, b)
		}
	}
}

func TestValidateBreakdown_DetectsTampering(t *testing.T) {
	e := newTestEngine()

	b := &Breakdown{
		Subtotal:           100000,
		ShippingFee:        5000,
		JastiperMarkup:     10000,
		PlatformCommission: 5500,
		TotalFinal:         999999,
	}

	if e.ValidateBreakdown(b) {
		t.Error("expected tampered breakdown to fail validation")
	}
}

func TestCalculateTotalWeight(t *testing.T) {
	e := newTestEngine()

	items := []model.OrderItem{
		{WeightGram: 500, Quantity: 2},
		{WeightGram: 0, Quantity: 3}, // defaults to 1000g
	}

	if got := e.CalculateTotalWeight(items); got != 4000 {
		t.Errorf("weight = %d, want 4000", got)
	}
}
