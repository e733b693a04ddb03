package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/mealplan/internal/plan"
)

// Outcome is the result category of a verification job.
type Outcome string

const (
	// OutcomeMatch means every touched entry still holds what was written.
	OutcomeMatch Outcome = "match"

	// OutcomeMismatch means at least one write was lost or overwritten.
	OutcomeMismatch Outcome = "mismatch"

	// OutcomeIncomplete means the job ran out of time; the report carries
	// whatever was known at that point.
	OutcomeIncomplete Outcome = "incomplete"

	// OutcomeError means the verifier itself failed.
	OutcomeError Outcome = "error"
)

// Party is a user with a resolved display name. Name falls back to ID.
type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FoodRef is a food with a resolved name. Name falls back to ID; both are
// empty for "no food".
type FoodRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EntryView is a member entry with the food name resolved.
type EntryView struct {
	Food        FoodRef     `json:"food"`
	Status      plan.Status `json:"status"`
	Requirement string      `json:"requirement"`
}

// Row is one member's expected and actual entry. Actual is nil when the
// actual state is unknown.
type Row struct {
	Member   Party      `json:"member"`
	Expected EntryView  `json:"expected"`
	Actual   *EntryView `json:"actual"`
	Fields   []string   `json:"fields"`
}

// DayDiff groups the rows of one day.
type DayDiff struct {
	Day  plan.DayKey `json:"day"`
	Date string      `json:"date"`
	Rows []Row       `json:"rows"`
}

// ActionLine is an Action with names resolved.
type ActionLine struct {
	Seq         int64         `json:"seq"`
	At          time.Time     `json:"at"`
	Actor       Party         `json:"actor"`
	Day         plan.DayKey   `json:"day"`
	Date        string        `json:"date"`
	Member      Party         `json:"member"`
	Edit        plan.EditKind `json:"edit"`
	Food        *FoodRef      `json:"food,omitempty"`
	Requirement string        `json:"requirement,omitempty"`
}

// Report is the single structured alert published for a job.
type Report struct {
	JobID         string       `json:"jobId"`
	OrderID       string       `json:"orderId"`
	PlanID        string       `json:"planId"`
	Actor         Party        `json:"actor"`
	Outcome       Outcome      `json:"outcome"`
	StartedAt     time.Time    `json:"startedAt"`
	DetectedAt    time.Time    `json:"detectedAt"`
	Days          []DayDiff    `json:"days"`
	Actions       []ActionLine `json:"actions"`
	WrittenDigest string       `json:"writtenDigest,omitempty"`
	ActualDigest  string       `json:"actualDigest,omitempty"`
	Note          string       `json:"note,omitempty"`
}

// MismatchCount returns the number of rows across all days.
func (r Report) MismatchCount() int {
	n := 0
	for _, d := range r.Days {
		n += len(d.Rows)
	}
	return n
}

// Summary is a one-line description for chat sinks and logs.
func (r Report) Summary() string {
	switch r.Outcome {
	case OutcomeIncomplete:
		return fmt.Sprintf("verification of plan %s (order %s) by %s did not finish: %s",
			r.PlanID, r.OrderID, r.Actor.Name, r.Note)
	default:
		return fmt.Sprintf("plan %s (order %s): %d entr%s written by %s did not persist across %d day(s)",
			r.PlanID, r.OrderID, r.MismatchCount(), plural(r.MismatchCount()), r.Actor.Name, len(r.Days))
	}
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

// FoodCatalog resolves food names.
type FoodCatalog interface {
	FoodName(ctx context.Context, foodID string) (string, error)
}

// UserDirectory resolves user display names.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// resolver looks up names once per report. Lookup failures fall back to
// the food list snapshot, then to the raw id.
type resolver struct {
	ctx    context.Context
	foods  FoodCatalog
	users  UserDirectory
	detail plan.OrderDetail

	foodNames map[string]string
	userNames map[string]string
}

func newResolver(ctx context.Context, foods FoodCatalog, users UserDirectory, detail plan.OrderDetail) *resolver {
	return &resolver{
		ctx:       ctx,
		foods:     foods,
		users:     users,
		detail:    detail,
		foodNames: make(map[string]string),
		userNames: make(map[string]string),
	}
}

func (r *resolver) user(id string) Party {
	if name, ok := r.userNames[id]; ok {
		return Party{ID: id, Name: name}
	}
	name := id
	if r.users != nil && id != "" {
		if n, err := r.users.DisplayName(r.ctx, id); err == nil && n != "" {
			name = n
		}
	}
	r.userNames[id] = name
	return Party{ID: id, Name: name}
}

func (r *resolver) food(day plan.DayKey, id string) FoodRef {
	if id == "" {
		return FoodRef{}
	}
	if name, ok := r.foodNames[id]; ok {
		return FoodRef{ID: id, Name: name}
	}
	name := ""
	if r.foods != nil {
		if n, err := r.foods.FoodName(r.ctx, id); err == nil {
			name = n
		}
	}
	if name == "" {
		if d, ok := r.detail.Day(day); ok {
			name = d.FoodList[id].Name
		}
	}
	if name == "" {
		name = id
	}
	r.foodNames[id] = name
	return FoodRef{ID: id, Name: name}
}

func (r *resolver) entry(day plan.DayKey, e plan.MemberOrderEntry) EntryView {
	return EntryView{
		Food:        r.food(day, e.FoodID),
		Status:      e.Status,
		Requirement: e.Requirement,
	}
}

// buildReport assembles the report for mismatches. When mismatches is nil
// and known is false, every expected entry is listed with an unknown
// actual.
func buildReport(r *resolver, job Job, outcome Outcome, mismatches []Mismatch, known bool, detectedAt time.Time) Report {
	loc := job.Location
	if loc == nil {
		loc = time.UTC
	}

	rep := Report{
		JobID:         job.JobID,
		OrderID:       job.OrderID,
		PlanID:        job.PlanID,
		Actor:         r.user(job.ActorID),
		Outcome:       outcome,
		StartedAt:     job.StartedAt,
		DetectedAt:    detectedAt,
		Days:          []DayDiff{},
		Actions:       make([]ActionLine, 0, len(job.Actions)),
		WrittenDigest: job.WrittenDigest,
	}

	if !known {
		mismatches = unknownActuals(job.Expected)
	}

	byDay := make(map[plan.DayKey]int)
	for _, m := range mismatches {
		idx, ok := byDay[m.Day]
		if !ok {
			idx = len(rep.Days)
			byDay[m.Day] = idx
			rep.Days = append(rep.Days, DayDiff{Day: m.Day, Date: m.Day.Date(loc)})
		}
		row := Row{
			Member:   r.user(m.MemberID),
			Expected: r.entry(m.Day, m.Expected),
			Fields:   m.Fields,
		}
		if known && !m.DayMissing {
			actual := r.entry(m.Day, m.Actual)
			row.Actual = &actual
		}
		rep.Days[idx].Rows = append(rep.Days[idx].Rows, row)
	}

	for _, a := range job.Actions {
		line := ActionLine{
			Seq:         a.Seq,
			At:          a.At,
			Actor:       r.user(a.ActorID),
			Day:         a.Day,
			Date:        a.Day.Date(loc),
			Member:      r.user(a.MemberID),
			Edit:        a.Edit,
			Requirement: a.Requirement,
		}
		if a.FoodID != "" {
			f := r.food(a.Day, a.FoodID)
			line.Food = &f
		}
		rep.Actions = append(rep.Actions, line)
	}
	return rep
}

// unknownActuals lists every expected entry as unverified.
func unknownActuals(expected Expected) []Mismatch {
	var out []Mismatch
	for _, day := range expected.Days() {
		for _, id := range sortedMembers(expected[day]) {
			out = append(out, Mismatch{
				Day:      day,
				MemberID: id,
				Expected: expected[day][id],
			})
		}
	}
	return out
}
