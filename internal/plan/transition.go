package plan

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// EditKind names one edit in the member entry vocabulary.
type EditKind string

const (
	EditSetFood        EditKind = "setFood"
	EditDisallow       EditKind = "disallow"
	EditRestore        EditKind = "restore"
	EditDecline        EditKind = "decline"
	EditExpire         EditKind = "expire"
	EditSetRequirement EditKind = "setRequirement"
)

// Edit is a requested change to one MemberOrderEntry.
//
// The vocabulary is bounded so that invalid combinations such as
// "notJoined with a foodId" cannot be expressed.
type Edit struct {
	Kind        EditKind `json:"kind"`
	FoodID      string   `json:"foodId,omitempty"`
	Requirement string   `json:"requirement,omitempty"`
}

// SetFood selects foodID. An empty foodID clears the selection.
func SetFood(foodID string) Edit { return Edit{Kind: EditSetFood, FoodID: foodID} }

// Disallow marks the participant as not allowed to order for the day.
func Disallow() Edit { return Edit{Kind: EditDisallow} }

// Restore undoes Disallow or Decline.
func Restore() Edit { return Edit{Kind: EditRestore} }

// Decline records that the participant is not joining the day.
func Decline() Edit { return Edit{Kind: EditDecline} }

// Expire closes the entry once the order deadline has passed.
func Expire() Edit { return Edit{Kind: EditExpire} }

// SetRequirement replaces the free-text note.
func SetRequirement(note string) Edit { return Edit{Kind: EditSetRequirement, Requirement: note} }

// Transition computes the entry that results from applying edit to cur.
//
//	empty      + setFood(f)  -> joined(f)        setFood("") is a no-op
//	joined     + setFood(f)  -> joined(f)        setFood("") -> empty
//	notJoined  + setFood(f)  -> joined(f)        setFood("") is a no-op
//	notAllowed + setFood(f)  -> notAllowed(f)
//	any        + disallow    -> notAllowed       food kept
//	notAllowed/notJoined + restore -> empty      food cleared
//	empty/joined + restore   -> INVALID_EDIT
//	empty/joined + decline   -> notJoined        food cleared
//	notAllowed + decline     -> INVALID_EDIT
//	any        + expire      -> expired          food kept
//	expired    + any         -> ENTRY_EXPIRED
//
// Requirement survives every transition and setRequirement never changes
// status. Transition does not check foodID against the day's food list;
// callers do that with DayOrder.HasFood.
func Transition(cur MemberOrderEntry, edit Edit) (MemberOrderEntry, error) {
	if cur.Status == "" {
		cur.Status = StatusEmpty
	}
	if !cur.Status.Valid() {
		return cur, NewInvalidEdit(edit.Kind, cur.Status, "unknown current status")
	}
	if cur.Status.Terminal() {
		return cur, NewEntryExpired(edit.Kind)
	}

	next := cur
	switch edit.Kind {
	case EditSetFood:
		switch cur.Status {
		case StatusEmpty, StatusNotJoined:
			if edit.FoodID != "" {
				next.FoodID = edit.FoodID
				next.Status = StatusJoined
			}
		case StatusJoined:
			next.FoodID = edit.FoodID
			if edit.FoodID == "" {
				next.Status = StatusEmpty
			}
		case StatusNotAllowed:
			next.FoodID = edit.FoodID
		}

	case EditDisallow:
		next.Status = StatusNotAllowed

	case EditRestore:
		switch cur.Status {
		case StatusNotAllowed, StatusNotJoined:
			next.Status = StatusEmpty
			next.FoodID = ""
		default:
			return cur, NewInvalidEdit(edit.Kind, cur.Status, "nothing to restore")
		}

	case EditDecline:
		switch cur.Status {
		case StatusEmpty, StatusJoined:
			next.Status = StatusNotJoined
			next.FoodID = ""
		case StatusNotAllowed:
			return cur, NewInvalidEdit(edit.Kind, cur.Status, "restore the participant first")
		}

	case EditExpire:
		next.Status = StatusExpired

	case EditSetRequirement:
		next.Requirement = NormalizeRequirement(edit.Requirement)

	default:
		return cur, NewInvalidEdit(edit.Kind, cur.Status, "unknown edit")
	}

	return next, nil
}

// NormalizeRequirement trims a note and puts it in Unicode NFC so that
// notes typed on different keyboards compare equal.
func NormalizeRequirement(note string) string {
	return norm.NFC.String(strings.TrimSpace(note))
}
