package plan

// OrderState is the lifecycle state of an Order.
type OrderState string

const (
	OrderStateDraft          OrderState = "draft"
	OrderStatePicking        OrderState = "picking"
	OrderStateInProgress     OrderState = "inProgress"
	OrderStatePendingPayment OrderState = "pendingPayment"
	OrderStateCompleted      OrderState = "completed"
	OrderStateReviewed       OrderState = "reviewed"
	OrderStateCanceled       OrderState = "canceled"
)

// orderTransitions lists, per state, the states an order may move to.
var orderTransitions = map[OrderState][]OrderState{
	OrderStateDraft:          {OrderStatePicking, OrderStateCanceled},
	OrderStatePicking:        {OrderStateInProgress, OrderStateCanceled},
	OrderStateInProgress:     {OrderStatePendingPayment, OrderStateCanceled},
	OrderStatePendingPayment: {OrderStateCompleted},
	OrderStateCompleted:      {OrderStateReviewed},
}

// CanTransitionTo reports whether s may move to next.
func (s OrderState) CanTransitionTo(next OrderState) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Editable reports whether participants and the booker may still change
// member entries.
func (s OrderState) Editable() bool {
	return s == OrderStateDraft || s == OrderStatePicking || s == OrderStateInProgress
}

// Advance returns o moved to next, or INVALID_TRANSITION.
func (o Order) Advance(next OrderState) (Order, error) {
	if !o.State.CanTransitionTo(next) {
		return o, NewInvalidTransition("order", string(o.State), string(next))
	}
	o.State = next
	return o, nil
}
