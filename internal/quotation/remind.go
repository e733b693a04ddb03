package quotation

import (
	"github.com/roach88/mealplan/internal/plan"
)

// DayReminder lists who should be reminded to pick food on a day, next to
// what has already been ordered.
type DayReminder struct {
	Day     plan.DayKey `json:"day"`
	Pending []string    `json:"pending"`
	Ordered DayRollup   `json:"ordered"`
}

// Reminders selects members whose entry is still empty or notJoined.
// A notAllowed member is never reminded, even with no food selected.
// Days with nobody pending are omitted.
func Reminders(detail plan.OrderDetail) []DayReminder {
	var out []DayReminder
	for _, key := range detail.Days() {
		day := detail[key]
		var pending []string
		for _, memberID := range day.MemberIDs() {
			switch day.Entry(memberID).Status {
			case plan.StatusEmpty, plan.StatusNotJoined:
				pending = append(pending, memberID)
			}
		}
		if len(pending) == 0 {
			continue
		}
		out = append(out, DayReminder{
			Day:     key,
			Pending: pending,
			Ordered: PerDayRollup(key, day, PurposeReminder),
		})
	}
	return out
}
