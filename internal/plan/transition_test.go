package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joined(food string) MemberOrderEntry {
	return MemberOrderEntry{FoodID: food, Status: StatusJoined}
}

func TestTransition_Table(t *testing.T) {
	tests := []struct {
		name string
		cur  MemberOrderEntry
		edit Edit
		want MemberOrderEntry
	}{
		{"empty setFood joins", EmptyEntry(), SetFood("f1"), joined("f1")},
		{"empty setFood none is noop", EmptyEntry(), SetFood(""), EmptyEntry()},
		{"joined setFood replaces", joined("f1"), SetFood("f2"), joined("f2")},
		{"joined setFood none empties", joined("f1"), SetFood(""), EmptyEntry()},
		{"notJoined late opt-in", MemberOrderEntry{Status: StatusNotJoined}, SetFood("f1"), joined("f1")},
		{"notJoined setFood none is noop", MemberOrderEntry{Status: StatusNotJoined}, SetFood(""), MemberOrderEntry{Status: StatusNotJoined}},
		{"notAllowed keeps status on setFood", MemberOrderEntry{Status: StatusNotAllowed}, SetFood("f1"), MemberOrderEntry{FoodID: "f1", Status: StatusNotAllowed}},
		{"notAllowed setFood clears food", MemberOrderEntry{FoodID: "f1", Status: StatusNotAllowed}, SetFood(""), MemberOrderEntry{Status: StatusNotAllowed}},
		{"disallow keeps food", joined("f1"), Disallow(), MemberOrderEntry{FoodID: "f1", Status: StatusNotAllowed}},
		{"disallow empty", EmptyEntry(), Disallow(), MemberOrderEntry{Status: StatusNotAllowed}},
		{"restore notAllowed", MemberOrderEntry{Status: StatusNotAllowed}, Restore(), EmptyEntry()},
		{"restore notAllowed clears food", MemberOrderEntry{FoodID: "f1", Status: StatusNotAllowed}, Restore(), EmptyEntry()},
		{"restore notJoined", MemberOrderEntry{Status: StatusNotJoined}, Restore(), EmptyEntry()},
		{"decline joined", joined("f1"), Decline(), MemberOrderEntry{Status: StatusNotJoined}},
		{"decline empty", EmptyEntry(), Decline(), MemberOrderEntry{Status: StatusNotJoined}},
		{"expire keeps food", joined("f1"), Expire(), MemberOrderEntry{FoodID: "f1", Status: StatusExpired}},
		{"zero status treated as empty", MemberOrderEntry{}, SetFood("f1"), joined("f1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.cur, tt.edit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransition_ExpiredIsTerminal(t *testing.T) {
	expired := MemberOrderEntry{FoodID: "f1", Status: StatusExpired}
	edits := []Edit{SetFood("f1"), SetFood(""), Disallow(), Restore(), Decline(), Expire(), SetRequirement("no onion")}

	for _, edit := range edits {
		got, err := Transition(expired, edit)
		require.Error(t, err, "edit %s", edit.Kind)
		assert.True(t, IsEntryExpired(err), "edit %s: %v", edit.Kind, err)
		assert.False(t, IsTransient(err))
		assert.Equal(t, expired, got, "entry must be unchanged")
	}
}

func TestTransition_RequirementIsOrthogonal(t *testing.T) {
	statuses := []MemberOrderEntry{
		EmptyEntry(),
		joined("f1"),
		{Status: StatusNotJoined},
		{FoodID: "f2", Status: StatusNotAllowed},
	}

	for _, cur := range statuses {
		got, err := Transition(cur, SetRequirement("  less spicy "))
		require.NoError(t, err)
		assert.Equal(t, cur.Status, got.Status)
		assert.Equal(t, cur.FoodID, got.FoodID)
		assert.Equal(t, "less spicy", got.Requirement)
	}
}

func TestTransition_RequirementSurvivesStatusChanges(t *testing.T) {
	cur := MemberOrderEntry{Status: StatusEmpty, Requirement: "vegetarian"}

	got, err := Transition(cur, SetFood("f1"))
	require.NoError(t, err)
	got, err = Transition(got, Disallow())
	require.NoError(t, err)
	got, err = Transition(got, Restore())
	require.NoError(t, err)

	assert.Equal(t, MemberOrderEntry{Status: StatusEmpty, Requirement: "vegetarian"}, got)
}

func TestTransition_RequirementNFC(t *testing.T) {
	// "e" + combining acute accent composes to a single code point.
	got, err := Transition(EmptyEntry(), SetRequirement("cafe\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", got.Requirement)
}

func TestTransition_DeclineWhileDisallowed(t *testing.T) {
	cur := MemberOrderEntry{Status: StatusNotAllowed}
	_, err := Transition(cur, Decline())
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidEdit, CodeOf(err))
}

func TestTransition_RestoreNeedsDisallowOrDecline(t *testing.T) {
	for _, cur := range []MemberOrderEntry{EmptyEntry(), joined("f1")} {
		got, err := Transition(cur, Restore())
		require.Error(t, err, "restore %s", cur.Status)
		assert.Equal(t, ErrCodeInvalidEdit, CodeOf(err))
		assert.Equal(t, cur, got, "entry must be unchanged")
	}
}

func TestTransition_UnknownEdit(t *testing.T) {
	_, err := Transition(EmptyEntry(), Edit{Kind: "teleport"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidEdit, CodeOf(err))
}

func TestTransition_NeverProducesNotJoinedWithFood(t *testing.T) {
	edits := []Edit{SetFood("f1"), SetFood(""), Disallow(), Restore(), Decline(), SetRequirement("x")}
	starts := []MemberOrderEntry{
		EmptyEntry(),
		joined("f1"),
		{Status: StatusNotJoined},
		{FoodID: "f1", Status: StatusNotAllowed},
	}

	// Two-step walks cover every reachable pair of non-terminal states.
	for _, s := range starts {
		for _, e1 := range edits {
			mid, err := Transition(s, e1)
			if err != nil {
				continue
			}
			for _, e2 := range edits {
				end, err := Transition(mid, e2)
				if err != nil {
					continue
				}
				for _, e := range []MemberOrderEntry{mid, end} {
					assert.True(t, e.Status.Valid())
					if e.Status == StatusNotJoined || e.Status == StatusEmpty {
						assert.Empty(t, e.FoodID, "%s then %s from %+v", e1.Kind, e2.Kind, s)
					}
					if e.Status == StatusJoined {
						assert.NotEmpty(t, e.FoodID)
					}
				}
			}
		}
	}
}
