package plan

import (
	"fmt"
	"sort"
)

// DaySetup seeds one day when a plan is created.
type DaySetup struct {
	Restaurant Restaurant
	FoodList   map[string]Food
}

// NewPlan creates a plan whose days are fixed to the order's date window.
// Every participant starts with an empty entry on every day. Days without a
// setup get an empty restaurant and food list.
func NewPlan(planID string, order Order, setups map[DayKey]DaySetup) (Plan, error) {
	loc := order.GeneralInfo.Location()
	days := DaysBetween(order.GeneralInfo.StartDate, order.GeneralInfo.EndDate, loc)
	if len(days) == 0 {
		return Plan{}, fmt.Errorf("new plan %s: order %s has an empty date window", planID, order.ID)
	}

	known := make(map[DayKey]bool, len(days))
	detail := make(OrderDetail, len(days))
	for _, d := range days {
		known[d] = true
		setup := setups[d]
		members := make(map[string]MemberOrderEntry, len(order.Participants))
		for _, p := range order.Participants {
			members[p] = EmptyEntry()
		}
		foods := make(map[string]Food, len(setup.FoodList))
		for id, f := range setup.FoodList {
			foods[id] = f
		}
		detail[d] = DayOrder{
			Restaurant:   setup.Restaurant,
			FoodList:     foods,
			MemberOrders: members,
		}
	}
	for d := range setups {
		if !known[d] {
			return Plan{}, fmt.Errorf("new plan %s: %w", planID, NewUnknownDay(d))
		}
	}

	return Plan{ID: planID, OrderID: order.ID, OrderDetail: detail}, nil
}

// Days returns the plan's day keys in chronological order.
func (d OrderDetail) Days() []DayKey {
	days := make([]DayKey, 0, len(d))
	for k := range d {
		days = append(days, k)
	}
	SortDays(days)
	return days
}

// Day returns the DayOrder for key.
func (d OrderDetail) Day(key DayKey) (DayOrder, bool) {
	day, ok := d[key]
	return day, ok
}

// SameDays reports whether both details have exactly the same day keys.
func (d OrderDetail) SameDays(other OrderDetail) bool {
	if len(d) != len(other) {
		return false
	}
	for k := range d {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// WithDay returns a new OrderDetail with key replaced by day.
// The other days are shared, not copied. Unknown keys are rejected so
// the set of days never changes.
func (d OrderDetail) WithDay(key DayKey, day DayOrder) (OrderDetail, error) {
	if _, ok := d[key]; !ok {
		return nil, NewUnknownDay(key)
	}
	next := make(OrderDetail, len(d))
	for k, v := range d {
		next[k] = v
	}
	next[key] = day
	return next, nil
}

// Clone returns a deep copy.
func (d OrderDetail) Clone() OrderDetail {
	if d == nil {
		return nil
	}
	next := make(OrderDetail, len(d))
	for k, v := range d {
		next[k] = v.Clone()
	}
	return next
}

// Validate checks every day's entries against the package invariants.
func (d OrderDetail) Validate() error {
	for _, k := range d.Days() {
		if err := d[k].Validate(k); err != nil {
			return err
		}
	}
	return nil
}

// Entry returns memberID's entry, or an empty entry if the member has none.
func (day DayOrder) Entry(memberID string) MemberOrderEntry {
	if e, ok := day.MemberOrders[memberID]; ok {
		if e.Status == "" {
			e.Status = StatusEmpty
		}
		return e
	}
	return EmptyEntry()
}

// HasFood reports whether foodID is selectable on this day.
// The empty sentinel is always selectable.
func (day DayOrder) HasFood(foodID string) bool {
	if foodID == "" {
		return true
	}
	_, ok := day.FoodList[foodID]
	return ok
}

// WithMemberEntry returns a copy of day with memberID's entry replaced.
func (day DayOrder) WithMemberEntry(memberID string, e MemberOrderEntry) DayOrder {
	members := make(map[string]MemberOrderEntry, len(day.MemberOrders)+1)
	for k, v := range day.MemberOrders {
		members[k] = v
	}
	members[memberID] = e
	day.MemberOrders = members
	return day
}

// WithTransaction returns a copy of day pointing at a sub-order transaction.
func (day DayOrder) WithTransaction(transactionID, lastTransition string) DayOrder {
	day.TransactionID = transactionID
	day.LastTransition = lastTransition
	return day
}

// Clone returns a deep copy.
func (day DayOrder) Clone() DayOrder {
	next := day
	if day.FoodList != nil {
		next.FoodList = make(map[string]Food, len(day.FoodList))
		for k, v := range day.FoodList {
			next.FoodList[k] = v
		}
	}
	if day.MemberOrders != nil {
		next.MemberOrders = make(map[string]MemberOrderEntry, len(day.MemberOrders))
		for k, v := range day.MemberOrders {
			next.MemberOrders[k] = v
		}
	}
	if day.LineItems != nil {
		next.LineItems = append([]LineItem(nil), day.LineItems...)
	}
	return next
}

// MemberIDs returns the day's member ids sorted.
func (day DayOrder) MemberIDs() []string {
	ids := make([]string, 0, len(day.MemberOrders))
	for id := range day.MemberOrders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the day's entries. key is used for error context.
func (day DayOrder) Validate(key DayKey) error {
	for _, memberID := range day.MemberIDs() {
		e := day.MemberOrders[memberID]
		if !e.Status.Valid() {
			return WithLocation(NewInvalidEdit("validate", e.Status, "unknown status"), "", key, memberID)
		}
		if !day.HasFood(e.FoodID) {
			return WithLocation(NewUnknownFood(key, e.FoodID), "", key, memberID)
		}
	}
	return nil
}
