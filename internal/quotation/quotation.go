package quotation

import (
	"context"
	"fmt"

	"github.com/roach88/mealplan/internal/plan"
)

// bpsDenominator is 100% in basis points.
const bpsDenominator = 10000

// Pricing holds the fees applied on top of the dish subtotal.
// Rates are basis points; amounts are in the smallest currency unit.
type Pricing struct {
	ServiceFeeBps      int64 `json:"serviceFeeBps" yaml:"service_fee_bps"`
	VATBps             int64 `json:"vatBps" yaml:"vat_bps"`
	TransportFeePerDay int64 `json:"transportFeePerDay" yaml:"transport_fee_per_day"`
	PromotionAmount    int64 `json:"promotionAmount" yaml:"promotion_amount"`
	PromotionBps       int64 `json:"promotionBps" yaml:"promotion_bps"`
}

// Totals are the plan-level quotation figures.
//
//	Total = Subtotal - Promotion + ServiceFee + TransportFee + VAT
//
// Promotion never exceeds Subtotal. Service fee and promotion are computed
// on Subtotal; VAT on everything before VAT.
type Totals struct {
	TotalDishes  int   `json:"totalDishes"`
	DeliveryDays int   `json:"deliveryDays"`
	Subtotal     int64 `json:"subtotal"`
	Promotion    int64 `json:"promotion"`
	ServiceFee   int64 `json:"serviceFee"`
	TransportFee int64 `json:"transportFee"`
	VAT          int64 `json:"vat"`
	Total        int64 `json:"total"`
}

// Quotation is the price quote for a plan.
type Quotation struct {
	PlanID string      `json:"planId"`
	PerDay []DayRollup `json:"perDay"`
	Totals Totals      `json:"totals"`
}

// Compute prices a plan. Days with no ordered dishes do not incur the
// transport fee.
func Compute(p plan.Plan, pricing Pricing) Quotation {
	rollup := RollupPlan(p.OrderDetail, PurposePricing)

	t := Totals{
		TotalDishes: rollup.TotalDishes,
		Subtotal:    rollup.TotalPrice,
	}
	for _, d := range rollup.Days {
		if d.TotalDishes > 0 {
			t.DeliveryDays++
		}
	}

	t.Promotion = pricing.PromotionAmount + applyBps(t.Subtotal, pricing.PromotionBps)
	if t.Promotion > t.Subtotal {
		t.Promotion = t.Subtotal
	}
	t.ServiceFee = applyBps(t.Subtotal, pricing.ServiceFeeBps)
	t.TransportFee = int64(t.DeliveryDays) * pricing.TransportFeePerDay

	beforeVAT := t.Subtotal - t.Promotion + t.ServiceFee + t.TransportFee
	t.VAT = applyBps(beforeVAT, pricing.VATBps)
	t.Total = beforeVAT + t.VAT

	return Quotation{PlanID: p.ID, PerDay: rollup.Days, Totals: t}
}

// applyBps returns amount*bps/10000 rounded half up.
func applyBps(amount, bps int64) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*bps + bpsDenominator/2) / bpsDenominator
}

// PlanReader reads plan snapshots.
type PlanReader interface {
	GetPlan(ctx context.Context, planID string) (plan.Plan, error)
}

// Service computes quotations for stored plans.
type Service struct {
	plans   PlanReader
	pricing Pricing
}

// NewService creates a quotation Service.
func NewService(plans PlanReader, pricing Pricing) *Service {
	return &Service{plans: plans, pricing: pricing}
}

// ComputeQuotation reads the plan and prices it.
func (s *Service) ComputeQuotation(ctx context.Context, planID string) (Quotation, error) {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return Quotation{}, fmt.Errorf("compute quotation: %w", err)
	}
	return Compute(p, s.pricing), nil
}

// Reminders reads the plan and lists reminder targets.
func (s *Service) Reminders(ctx context.Context, planID string) ([]DayReminder, error) {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("reminders: %w", err)
	}
	return Reminders(p.OrderDetail), nil
}
