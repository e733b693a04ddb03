package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealplan/internal/plan"
)

func TestLoadSeedBuild(t *testing.T) {
	seed, err := LoadSeed(filepath.Join("testdata", "seed.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2", "f3"}, seed.FoodIDs())
	assert.Equal(t, []string{"alice", "bob", "carol"}, seed.UserIDs())

	order, p, err := seed.Build("UTC")
	require.NoError(t, err)

	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, plan.OrderStatePicking, order.State)
	assert.Equal(t, "Asia/Ho_Chi_Minh", order.GeneralInfo.Timezone)
	assert.True(t, order.GeneralInfo.Deadline.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))

	require.Len(t, p.OrderDetail, 3)
	days := p.OrderDetail.Days()
	loc, _ := time.LoadLocation("Asia/Ho_Chi_Minh")
	assert.Equal(t, "2024-03-04", days[0].Date(loc))
	assert.Equal(t, "2024-03-06", days[2].Date(loc))

	first := p.OrderDetail[days[0]]
	assert.Equal(t, "Pho House", first.Restaurant.Name)
	assert.Equal(t, plan.Food{Name: "Pho Bo", Price: 50000}, first.FoodList["f1"])
	assert.Equal(t, plan.EmptyEntry(), first.Entry("carol"))

	last := p.OrderDetail[days[2]]
	assert.Empty(t, last.FoodList, "days without a setup start with no foods")
	assert.Len(t, last.MemberOrders, 3)
}

func TestSeedDefaultTimezone(t *testing.T) {
	src := `
plan_id: p
order:
  id: o
  booker_id: b
  participants: [alice, alice]
  start_date: 2024-03-04
  end_date: 2024-03-04
`
	seed, err := ParseSeed("inline.yaml", []byte(src))
	require.NoError(t, err)

	order, p, err := seed.Build("UTC")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, order.Participants)
	assert.Equal(t, plan.DayKey("1709510400000"), p.OrderDetail.Days()[0])
}

func TestSeedRejects(t *testing.T) {
	base := `
plan_id: p
order:
  id: o
  booker_id: b
  participants: [alice]
  start_date: 2024-03-04
  end_date: 2024-03-05
`
	t.Run("schema", func(t *testing.T) {
		_, err := ParseSeed("inline.yaml", []byte(base+"  state: completed\n"))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("unknown food", func(t *testing.T) {
		seed, err := ParseSeed("inline.yaml", []byte(base+`
days:
  - date: 2024-03-04
    restaurant: {id: r1, name: R}
    foods: [ghost]
`))
		require.NoError(t, err)
		_, _, err = seed.Build("UTC")
		assert.True(t, plan.HasCode(err, plan.ErrCodeUnknownFood), "got %v", err)
	})

	t.Run("day outside window", func(t *testing.T) {
		seed, err := ParseSeed("inline.yaml", []byte(base+`
days:
  - date: 2024-03-09
    restaurant: {id: r1, name: R}
    foods: []
`))
		require.NoError(t, err)
		_, _, err = seed.Build("UTC")
		assert.True(t, plan.HasCode(err, plan.ErrCodeUnknownDay), "got %v", err)
	})

	t.Run("reversed window", func(t *testing.T) {
		seed, err := ParseSeed("inline.yaml", []byte(`
plan_id: p
order:
  id: o
  booker_id: b
  participants: [alice]
  start_date: 2024-03-05
  end_date: 2024-03-04
`))
		require.NoError(t, err)
		_, _, err = seed.Build("UTC")
		assert.Error(t, err)
	})
}
