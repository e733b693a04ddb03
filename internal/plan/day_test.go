package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKeyOf_UTC(t *testing.T) {
	k := DayKeyOf(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, DayKey("1705276800000"), k)
	assert.Equal(t, "2024-01-15", k.Date(time.UTC))
}

func TestDayKeyOf_Location(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	k := DayKeyOf(time.Date(2024, 1, 15, 1, 0, 0, 0, loc), loc)
	assert.Equal(t, DayKey("1705251600000"), k)
	assert.Equal(t, "2024-01-15", k.Date(loc))
	assert.Equal(t, "2024-01-14", k.Date(time.UTC))
}

func TestDaysBetween(t *testing.T) {
	start := time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 17, 1, 0, 0, 0, time.UTC)

	days := DaysBetween(start, end, time.UTC)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-01-15", days[0].Date(time.UTC))
	assert.Equal(t, "2024-01-17", days[2].Date(time.UTC))

	assert.Nil(t, DaysBetween(end, start, time.UTC))
}

func TestParseDayKey(t *testing.T) {
	k, err := ParseDayKey("1705276800000")
	require.NoError(t, err)
	assert.Equal(t, int64(1705276800000), k.Millis())

	_, err = ParseDayKey("monday")
	assert.Error(t, err)
}

func TestSortDays_Numeric(t *testing.T) {
	days := []DayKey{"1705363200000", "999", "1705276800000"}
	SortDays(days)
	assert.Equal(t, []DayKey{"999", "1705276800000", "1705363200000"}, days)
}
