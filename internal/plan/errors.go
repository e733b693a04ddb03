package plan

import (
	"errors"
	"fmt"
	"time"
)

// Error is the single error type surfaced by the plan core.
//
// Code identifies the category; the identifier fields are filled in as the
// error travels outward (see WithLocation). Details carries extra context
// for logs and alerts.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// PlanID, Day and MemberID locate the failed operation when known.
	PlanID   string
	Day      DayKey
	MemberID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes plan errors.
type ErrorCode string

const (
	// ErrCodeStoreUnavailable indicates the backing store could not be reached.
	// Transient: safe to retry with backoff.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// ErrCodeLockTimeout indicates the advisory lock was not acquired in time.
	// Transient: retry, but never assume the prior attempt applied.
	ErrCodeLockTimeout ErrorCode = "LOCK_TIMEOUT"

	// ErrCodeEntryExpired indicates an edit against an expired entry.
	ErrCodeEntryExpired ErrorCode = "ENTRY_EXPIRED"

	// ErrCodeInvalidTransition indicates a state machine transition that is
	// not defined for the current state.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeVerificationFailure indicates the consistency verifier itself
	// failed. This is distinct from a detected mismatch.
	ErrCodeVerificationFailure ErrorCode = "VERIFICATION_FAILURE"

	// ErrCodePlanNotFound indicates the plan does not exist.
	ErrCodePlanNotFound ErrorCode = "PLAN_NOT_FOUND"

	// ErrCodeUnknownDay indicates a day key outside the plan's fixed days.
	ErrCodeUnknownDay ErrorCode = "UNKNOWN_DAY"

	// ErrCodeUnknownFood indicates a foodId missing from the day's food list.
	ErrCodeUnknownFood ErrorCode = "UNKNOWN_FOOD"

	// ErrCodeDayKeysChanged indicates a write that would add or drop days.
	ErrCodeDayKeysChanged ErrorCode = "DAY_KEYS_CHANGED"

	// ErrCodeInvalidEdit indicates an edit that is malformed or not allowed
	// from the entry's current status.
	ErrCodeInvalidEdit ErrorCode = "INVALID_EDIT"

	// ErrCodeSubOrderNotFound indicates an unknown sub-order transaction.
	ErrCodeSubOrderNotFound ErrorCode = "SUB_ORDER_NOT_FOUND"
)

// Transient reports whether a caller may retry an operation that failed
// with this code.
func (c ErrorCode) Transient() bool {
	return c == ErrCodeStoreUnavailable || c == ErrCodeLockTimeout
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.PlanID != "" {
		msg += fmt.Sprintf(" (plan=%s", e.PlanID)
		if e.Day != "" {
			msg += fmt.Sprintf(", day=%s", e.Day)
		}
		if e.MemberID != "" {
			msg += fmt.Sprintf(", member=%s", e.MemberID)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsTransient reports whether err is safe to retry.
func IsTransient(err error) bool {
	return CodeOf(err).Transient()
}

// IsEntryExpired reports whether err is an ENTRY_EXPIRED error.
func IsEntryExpired(err error) bool {
	return HasCode(err, ErrCodeEntryExpired)
}

// IsInvalidTransition reports whether err is an INVALID_TRANSITION error.
func IsInvalidTransition(err error) bool {
	return HasCode(err, ErrCodeInvalidTransition)
}

// IsVerificationFailure reports whether err is a VERIFICATION_FAILURE error.
func IsVerificationFailure(err error) bool {
	return HasCode(err, ErrCodeVerificationFailure)
}

// WithLocation returns a copy of err's *Error with the identifiers filled in
// where they are still empty. Errors that are not *Error are returned as is.
func WithLocation(err error, planID string, day DayKey, memberID string) error {
	var pe *Error
	if !errors.As(err, &pe) {
		return err
	}
	cp := *pe
	if cp.PlanID == "" {
		cp.PlanID = planID
	}
	if cp.Day == "" {
		cp.Day = day
	}
	if cp.MemberID == "" {
		cp.MemberID = memberID
	}
	return &cp
}

// NewStoreUnavailable wraps a store failure.
func NewStoreUnavailable(planID string, err error) *Error {
	return &Error{
		Code:    ErrCodeStoreUnavailable,
		Message: "plan store unavailable",
		PlanID:  planID,
		Err:     err,
	}
}

// NewLockTimeout reports a lock that was not acquired within waited.
func NewLockTimeout(key string, waited time.Duration) *Error {
	return &Error{
		Code:    ErrCodeLockTimeout,
		Message: fmt.Sprintf("lock %q not acquired within %s", key, waited),
		Details: map[string]string{
			"lock_key": key,
			"waited":   waited.String(),
		},
	}
}

// NewEntryExpired reports an edit against an expired entry.
func NewEntryExpired(edit EditKind) *Error {
	return &Error{
		Code:    ErrCodeEntryExpired,
		Message: fmt.Sprintf("entry is expired; %s rejected", edit),
		Details: map[string]string{"edit": string(edit)},
	}
}

// NewInvalidTransition reports a transition not defined for state.
func NewInvalidTransition(machine, state, transition string) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("%s: transition %q not allowed from state %q", machine, transition, state),
		Details: map[string]string{
			"machine":    machine,
			"state":      state,
			"transition": transition,
		},
	}
}

// NewVerificationFailure wraps an error raised while verifying a mutation.
func NewVerificationFailure(jobID, planID string, err error) *Error {
	return &Error{
		Code:    ErrCodeVerificationFailure,
		Message: fmt.Sprintf("consistency verification job %s failed", jobID),
		PlanID:  planID,
		Details: map[string]string{"job_id": jobID},
		Err:     err,
	}
}

// NewPlanNotFound reports a missing plan.
func NewPlanNotFound(planID string) *Error {
	return &Error{
		Code:    ErrCodePlanNotFound,
		Message: "plan not found",
		PlanID:  planID,
	}
}

// NewUnknownDay reports a day key that is not part of the plan.
func NewUnknownDay(day DayKey) *Error {
	return &Error{
		Code:    ErrCodeUnknownDay,
		Message: fmt.Sprintf("day %s is not part of the plan", day),
		Day:     day,
	}
}

// NewUnknownFood reports a foodId missing from the day's food list.
func NewUnknownFood(day DayKey, foodID string) *Error {
	return &Error{
		Code:    ErrCodeUnknownFood,
		Message: fmt.Sprintf("food %q is not on the menu for this day", foodID),
		Day:     day,
		Details: map[string]string{"food_id": foodID},
	}
}

// NewDayKeysChanged reports a write that would change the set of days.
func NewDayKeysChanged(planID string, want, got int) *Error {
	return &Error{
		Code:    ErrCodeDayKeysChanged,
		Message: "order detail day keys are immutable",
		PlanID:  planID,
		Details: map[string]string{
			"stored_days":  fmt.Sprintf("%d", want),
			"written_days": fmt.Sprintf("%d", got),
		},
	}
}

// NewInvalidEdit reports an edit that cannot be applied.
func NewInvalidEdit(edit EditKind, status Status, reason string) *Error {
	return &Error{
		Code:    ErrCodeInvalidEdit,
		Message: fmt.Sprintf("%s on %s entry: %s", edit, status, reason),
		Details: map[string]string{
			"edit":   string(edit),
			"status": string(status),
		},
	}
}

// NewSubOrderNotFound reports an unknown sub-order transaction.
func NewSubOrderNotFound(subOrderID string) *Error {
	return &Error{
		Code:    ErrCodeSubOrderNotFound,
		Message: fmt.Sprintf("sub-order %s not found", subOrderID),
		Details: map[string]string{"sub_order_id": subOrderID},
	}
}
