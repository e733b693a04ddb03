package harness

import "github.com/roach88/mealplan/internal/quotation"

// Step operations recorded in the trace.
const (
	OpEdit       = "edit"
	OpBatch      = "batch"
	OpInitiate   = "initiate"
	OpTransition = "transition"
	OpExpire     = "expire"
	OpSettle     = "settle"
)

// OutcomeOK is the trace outcome of a step that succeeded.
const OutcomeOK = "ok"

// TraceEvent records one executed step. Steps of a concurrent group are
// recorded in declaration order with the same Step index.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Actor   string `json:"actor,omitempty"`
	Day     string `json:"day,omitempty"`
	Member  string `json:"member,omitempty"`
	Outcome string `json:"outcome"`
	Status  string `json:"status,omitempty"`
	Food    string `json:"food,omitempty"`
	State   string `json:"state,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// EntryState is a member entry in the final state.
type EntryState struct {
	Status      string `json:"status"`
	Food        string `json:"food,omitempty"`
	Requirement string `json:"requirement,omitempty"`
}

// DayState is one day of the final plan, keyed by date.
type DayState struct {
	Restaurant     string                `json:"restaurant,omitempty"`
	LastTransition string                `json:"lastTransition,omitempty"`
	Members        map[string]EntryState `json:"members"`
}

// FinalState is the settled state read after the runtime is closed.
type FinalState struct {
	Days          map[string]DayState `json:"days"`
	Quote         quotation.Totals    `json:"quote"`
	Verifications map[string]int      `json:"verifications"`
	Alerts        int                 `json:"alerts"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates every step met its expectation and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the settled plan, quotation and verification state.
	Final FinalState `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
