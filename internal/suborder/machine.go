// Package suborder implements the fulfillment state machine for one
// (day, restaurant) sub-order transaction.
//
// Only the last transition label is stored. The current state is always
// recomputed from it with CurrentState, so the label and the state cannot
// disagree.
package suborder

import (
	"fmt"
	"sort"

	"github.com/roach88/mealplan/internal/plan"
)

// State is a sub-order fulfillment state.
type State string

const (
	StateInitial          State = "initial"
	StateInitiated        State = "initiated"
	StatePartnerConfirmed State = "partner-confirmed"
	StatePartnerRejected  State = "partner-rejected"
	StateDelivering       State = "delivering"
	StateCanceled         State = "canceled"
	StateFailedDelivery   State = "failed-delivery"
	StateCompleted        State = "completed"
	StateReviewed         State = "reviewed"
	StateExpiredReview    State = "expired-review"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCanceled || s == StateFailedDelivery || s == StateReviewed
}

// Transition is a transition label. The empty label means no transition
// has happened yet.
type Transition string

const (
	TransitionInitiate                     Transition = "initiate-transaction"
	TransitionPartnerConfirm               Transition = "partner-confirm-sub-order"
	TransitionPartnerReject                Transition = "partner-reject-sub-order"
	TransitionExpiredStartDelivery         Transition = "expired-start-delivery"
	TransitionOperatorCancelPlan           Transition = "operator-cancel-plan"
	TransitionStartDelivery                Transition = "start-delivery"
	TransitionOperatorCancelAfterConfirmed Transition = "operator-cancel-after-partner-confirmed"
	TransitionOperatorCancelAfterRejected  Transition = "operator-cancel-after-partner-rejected"
	TransitionExpiredDelivery              Transition = "expired-delivery"
	TransitionCancelDelivery               Transition = "cancel-delivery"
	TransitionCompleteDelivery             Transition = "complete-delivery"
	TransitionRestaurantReview             Transition = "restaurant-review"
	TransitionExpiredReviewTime            Transition = "expired-review-time"
	TransitionReviewAfterExpireTime        Transition = "restaurant-review-after-expire-time"
)

type edge struct {
	from State
	to   State
}

// table is the complete transition table. Each label has exactly one source
// and one target state.
var table = map[Transition]edge{
	TransitionInitiate:                     {StateInitial, StateInitiated},
	TransitionPartnerConfirm:               {StateInitiated, StatePartnerConfirmed},
	TransitionPartnerReject:                {StateInitiated, StatePartnerRejected},
	TransitionExpiredStartDelivery:         {StateInitiated, StateFailedDelivery},
	TransitionOperatorCancelPlan:           {StateInitiated, StateCanceled},
	TransitionStartDelivery:                {StatePartnerConfirmed, StateDelivering},
	TransitionOperatorCancelAfterConfirmed: {StatePartnerConfirmed, StateCanceled},
	TransitionOperatorCancelAfterRejected:  {StatePartnerRejected, StateCanceled},
	TransitionExpiredDelivery:              {StateDelivering, StateFailedDelivery},
	TransitionCancelDelivery:               {StateDelivering, StateFailedDelivery},
	TransitionCompleteDelivery:             {StateDelivering, StateCompleted},
	TransitionRestaurantReview:             {StateCompleted, StateReviewed},
	TransitionExpiredReviewTime:            {StateCompleted, StateExpiredReview},
	TransitionReviewAfterExpireTime:        {StateExpiredReview, StateReviewed},
}

const machineName = "sub-order"

// CurrentState returns the state reached by last. The empty label maps to
// StateInitial. An unknown label is a corrupt record and is reported as an
// error rather than guessed.
func CurrentState(last Transition) (State, error) {
	if last == "" {
		return StateInitial, nil
	}
	e, ok := table[last]
	if !ok {
		return "", fmt.Errorf("unknown last transition %q", last)
	}
	return e.to, nil
}

// Next returns the state reached by applying t after last.
// Fails with INVALID_TRANSITION if t does not leave the current state.
func Next(last, t Transition) (State, error) {
	cur, err := CurrentState(last)
	if err != nil {
		return "", err
	}
	e, ok := table[t]
	if !ok || e.from != cur {
		return cur, plan.NewInvalidTransition(machineName, string(cur), string(t))
	}
	return e.to, nil
}

// Allowed returns the transitions that leave s, sorted by label.
func Allowed(s State) []Transition {
	var out []Transition
	for t, e := range table {
		if e.from == s {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseTransition validates a transition label.
func ParseTransition(s string) (Transition, error) {
	t := Transition(s)
	if _, ok := table[t]; !ok {
		return "", fmt.Errorf("unknown transition %q", s)
	}
	return t, nil
}
