// Package quotation derives dish counts, prices and reminder targets from a
// plan document. It only reads plans and never takes the plan lock.
package quotation

import (
	"sort"

	"github.com/roach88/mealplan/internal/plan"
)

// Purpose selects which entries count as "ordered".
//
// The two purposes disagree on one case on purpose: a notAllowed entry that
// still carries a foodId. Pricing counts it because the dish was consumed.
// Reminder ignores it because the member is not expected to act. They are
// kept as separate purposes rather than unified.
type Purpose int

const (
	// PurposePricing counts joined entries plus notAllowed and expired
	// entries that still carry a food.
	PurposePricing Purpose = iota + 1

	// PurposeReminder counts joined entries only.
	PurposeReminder
)

// String returns the purpose name used in logs and CLI output.
func (p Purpose) String() string {
	switch p {
	case PurposePricing:
		return "pricing"
	case PurposeReminder:
		return "reminder"
	}
	return "unknown"
}

// Ordered reports whether e counts as an ordered dish for purpose p.
func (p Purpose) Ordered(e plan.MemberOrderEntry) bool {
	if e.FoodID == "" {
		return false
	}
	switch p {
	case PurposePricing:
		return e.Status == plan.StatusJoined ||
			e.Status == plan.StatusNotAllowed ||
			e.Status == plan.StatusExpired
	case PurposeReminder:
		return e.Status == plan.StatusJoined
	}
	return false
}

// FoodFrequency is how many times one food was ordered on a day.
type FoodFrequency struct {
	FoodID    string `json:"foodId"`
	FoodName  string `json:"foodName"`
	Frequency int    `json:"frequency"`
	UnitPrice int64  `json:"unitPrice"`
}

// DayRollup summarizes one day.
type DayRollup struct {
	Day           plan.DayKey     `json:"day"`
	TotalDishes   int             `json:"totalDishes"`
	TotalPrice    int64           `json:"totalPrice"`
	FoodFrequency []FoodFrequency `json:"foodFrequency"`
}

// PerDayRollup counts the day's ordered dishes for purpose, multiplies by
// the day's catalog price, and sums.
//
// When the booker ordered by line item the line items are priced instead
// of member entries; reminder rollups always look at member entries.
func PerDayRollup(key plan.DayKey, day plan.DayOrder, purpose Purpose) DayRollup {
	counts := map[string]int{}
	if purpose == PurposePricing && len(day.LineItems) > 0 {
		for _, li := range day.LineItems {
			if li.Quantity > 0 {
				counts[li.FoodID] += li.Quantity
			}
		}
	} else {
		for _, e := range day.MemberOrders {
			if purpose.Ordered(e) {
				counts[e.FoodID]++
			}
		}
	}

	r := DayRollup{Day: key, FoodFrequency: make([]FoodFrequency, 0, len(counts))}
	for foodID, n := range counts {
		name, price := foodInfo(day, foodID)
		r.FoodFrequency = append(r.FoodFrequency, FoodFrequency{
			FoodID:    foodID,
			FoodName:  name,
			Frequency: n,
			UnitPrice: price,
		})
		r.TotalDishes += n
		r.TotalPrice += int64(n) * price
	}
	sort.Slice(r.FoodFrequency, func(i, j int) bool {
		a, b := r.FoodFrequency[i], r.FoodFrequency[j]
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.FoodID < b.FoodID
	})
	return r
}

// foodInfo looks a food up in the day's snapshot, falling back to the line
// item and finally to the raw id with a zero price.
func foodInfo(day plan.DayOrder, foodID string) (string, int64) {
	if f, ok := day.FoodList[foodID]; ok {
		return f.Name, f.Price
	}
	for _, li := range day.LineItems {
		if li.FoodID == foodID {
			return li.Name, li.UnitPrice
		}
	}
	return foodID, 0
}

// PlanRollup is the sum of every day's rollup.
type PlanRollup struct {
	Days        []DayRollup `json:"days"`
	TotalDishes int         `json:"totalDishes"`
	TotalPrice  int64       `json:"totalPrice"`
}

// RollupPlan sums PerDayRollup across all days in chronological order.
func RollupPlan(detail plan.OrderDetail, purpose Purpose) PlanRollup {
	out := PlanRollup{Days: make([]DayRollup, 0, len(detail))}
	for _, key := range detail.Days() {
		r := PerDayRollup(key, detail[key], purpose)
		out.Days = append(out.Days, r)
		out.TotalDishes += r.TotalDishes
		out.TotalPrice += r.TotalPrice
	}
	return out
}
