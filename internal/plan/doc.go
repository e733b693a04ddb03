// Package plan defines the meal plan document and the rules that govern it.
//
// A Plan owns an OrderDetail: a mapping from day key to DayOrder. Each
// DayOrder carries a restaurant selection, a snapshot of the restaurant's
// food list, and one MemberOrderEntry per participant.
//
// # Invariants
//
//   - Day keys are fixed when the plan is created. Mutations may change the
//     values under a day but never add or remove a day.
//   - A foodId referenced by an entry exists in that day's food list, or is
//     the empty string.
//   - Entry status is always one of the five Status values.
//
// # Clone-on-write
//
// OrderDetail, DayOrder and MemberOrderEntry are treated as values. Every
// update goes through a With* method that copies the path it changes and
// shares the rest. Callers never mutate a map they did not allocate.
//
// Entry changes are computed by Transition, a pure function over a bounded
// edit vocabulary. See transition.go.
package plan
