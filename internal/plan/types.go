package plan

import "time"

// Status is a participant's entry status for one day.
type Status string

const (
	StatusEmpty      Status = "empty"
	StatusJoined     Status = "joined"
	StatusNotJoined  Status = "notJoined"
	StatusNotAllowed Status = "notAllowed"
	StatusExpired    Status = "expired"
)

// Valid reports whether s is one of the five statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusEmpty, StatusJoined, StatusNotJoined, StatusNotAllowed, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further edits are accepted.
func (s Status) Terminal() bool {
	return s == StatusExpired
}

// MemberOrderEntry is one participant's selection for one day.
// FoodID is "" when nothing is selected.
type MemberOrderEntry struct {
	FoodID      string `json:"foodId"`
	Status      Status `json:"status"`
	Requirement string `json:"requirement"`
}

// EmptyEntry is the entry of a participant who has not acted yet.
func EmptyEntry() MemberOrderEntry {
	return MemberOrderEntry{Status: StatusEmpty}
}

// Food is a catalog snapshot item.
type Food struct {
	Name  string `json:"foodName"`
	Price int64  `json:"foodPrice"`
}

// Restaurant is the day's restaurant selection.
type Restaurant struct {
	ID     string `json:"id"`
	Name   string `json:"restaurantName"`
	MenuID string `json:"menuId,omitempty"`
}

// LineItem is a priced quantity of a food, used when the booker orders
// dishes in bulk instead of per participant.
type LineItem struct {
	FoodID    string `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

// DayOrder is one calendar day of a plan.
type DayOrder struct {
	Restaurant     Restaurant                  `json:"restaurant"`
	FoodList       map[string]Food             `json:"foodList"`
	MemberOrders   map[string]MemberOrderEntry `json:"memberOrders"`
	TransactionID  string                      `json:"transactionId,omitempty"`
	LastTransition string                      `json:"lastTransition,omitempty"`
	LineItems      []LineItem                  `json:"lineItems,omitempty"`
}

// OrderDetail maps each day of a plan to its DayOrder.
type OrderDetail map[DayKey]DayOrder

// Plan is the weekly container of day-by-day meal orders for one order.
type Plan struct {
	ID          string      `json:"id"`
	OrderID     string      `json:"orderId"`
	OrderDetail OrderDetail `json:"orderDetail"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// GeneralInfo holds the order's booking window.
type GeneralInfo struct {
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	Deadline     time.Time `json:"deadlineDate"`
	DeliveryHour string    `json:"deliveryHour"`
	Timezone     string    `json:"timezone,omitempty"`
}

// Location returns the order's time zone, defaulting to UTC.
func (g GeneralInfo) Location() *time.Location {
	if g.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Order is one booking cycle owned by a booker.
type Order struct {
	ID           string      `json:"id"`
	CompanyID    string      `json:"companyId"`
	BookerID     string      `json:"bookerId"`
	Participants []string    `json:"participants"`
	Plans        []string    `json:"plans"`
	State        OrderState  `json:"orderState"`
	GeneralInfo  GeneralInfo `json:"generalInfo"`
}

// HasParticipant reports whether memberID participates in the order.
func (o Order) HasParticipant(memberID string) bool {
	for _, p := range o.Participants {
		if p == memberID {
			return true
		}
	}
	return false
}
