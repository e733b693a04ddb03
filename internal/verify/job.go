package verify

import (
	"sort"
	"time"

	"github.com/roach88/mealplan/internal/plan"
)

// Action is one edit applied during a mutation, in the order applied.
type Action struct {
	Seq         int64         `json:"seq"`
	At          time.Time     `json:"at"`
	ActorID     string        `json:"actorId"`
	Day         plan.DayKey   `json:"day"`
	MemberID    string        `json:"memberId"`
	Edit        plan.EditKind `json:"edit"`
	FoodID      string        `json:"foodId,omitempty"`
	Requirement string        `json:"requirement,omitempty"`
}

// Expected maps day -> member -> the entry the mutator wrote.
type Expected map[plan.DayKey]map[string]plan.MemberOrderEntry

// Set records the entry written for (day, member).
func (e Expected) Set(day plan.DayKey, memberID string, entry plan.MemberOrderEntry) {
	members, ok := e[day]
	if !ok {
		members = make(map[string]plan.MemberOrderEntry)
		e[day] = members
	}
	members[memberID] = entry
}

// Days returns the touched days in chronological order.
func (e Expected) Days() []plan.DayKey {
	days := make([]plan.DayKey, 0, len(e))
	for d := range e {
		days = append(days, d)
	}
	plan.SortDays(days)
	return days
}

// Job is one verification request, built by the mutator after it unlocks.
type Job struct {
	JobID     string    `json:"jobId"`
	OrderID   string    `json:"orderId"`
	PlanID    string    `json:"planId"`
	ActorID   string    `json:"actorId"`
	StartedAt time.Time `json:"startedAt"`

	// Expected holds, per touched day, the final entry of every touched
	// member as written.
	Expected Expected `json:"expected"`

	// Actions lists the edits in the order they were applied.
	Actions []Action `json:"actions"`

	// WrittenDigest is plan.Digest of the document the mutator wrote.
	WrittenDigest string `json:"writtenDigest,omitempty"`

	// Location renders day keys as dates. Defaults to UTC.
	Location *time.Location `json:"-"`
}

// Field names compared by Diff.
const (
	FieldFoodID      = "foodId"
	FieldStatus      = "status"
	FieldRequirement = "requirement"
)

// Mismatch is one member entry that no longer holds what was written.
type Mismatch struct {
	Day      plan.DayKey
	MemberID string
	Expected plan.MemberOrderEntry
	Actual   plan.MemberOrderEntry

	// DayMissing is set when the actual document has no such day.
	DayMissing bool

	// Fields lists the differing fields in FieldFoodID, FieldStatus,
	// FieldRequirement order.
	Fields []string
}

// Diff compares expected entries against the actual document and returns
// every mismatch ordered by day then member. It is pure.
func Diff(expected Expected, actual plan.OrderDetail) []Mismatch {
	var out []Mismatch
	for _, day := range expected.Days() {
		members := expected[day]
		dayOrder, ok := actual.Day(day)
		for _, id := range sortedMembers(members) {
			want := members[id]
			if !ok {
				out = append(out, Mismatch{
					Day:        day,
					MemberID:   id,
					Expected:   want,
					DayMissing: true,
					Fields:     []string{FieldFoodID, FieldStatus, FieldRequirement},
				})
				continue
			}
			got := dayOrder.Entry(id)
			if fields := differingFields(want, got); len(fields) > 0 {
				out = append(out, Mismatch{
					Day:      day,
					MemberID: id,
					Expected: want,
					Actual:   got,
					Fields:   fields,
				})
			}
		}
	}
	return out
}

func differingFields(want, got plan.MemberOrderEntry) []string {
	var fields []string
	if want.FoodID != got.FoodID {
		fields = append(fields, FieldFoodID)
	}
	if want.Status != got.Status {
		fields = append(fields, FieldStatus)
	}
	if want.Requirement != got.Requirement {
		fields = append(fields, FieldRequirement)
	}
	return fields
}

func sortedMembers(members map[string]plan.MemberOrderEntry) []string {
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
