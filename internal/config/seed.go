package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mealplan/internal/plan"
)

// Seed describes an order, its plan's day setups and the catalog entries
// they reference.
type Seed struct {
	PlanID string              `yaml:"plan_id"`
	Order  SeedOrder           `yaml:"order"`
	Users  map[string]string   `yaml:"users"`
	Foods  map[string]SeedFood `yaml:"foods"`
	Days   []SeedDay           `yaml:"days"`
}

// SeedOrder is the order section of a seed. Dates are YYYY-MM-DD in the
// order's timezone; the deadline is RFC 3339.
type SeedOrder struct {
	ID           string   `yaml:"id"`
	CompanyID    string   `yaml:"company_id"`
	BookerID     string   `yaml:"booker_id"`
	Participants []string `yaml:"participants"`
	StartDate    string   `yaml:"start_date"`
	EndDate      string   `yaml:"end_date"`
	Deadline     string   `yaml:"deadline"`
	DeliveryHour string   `yaml:"delivery_hour"`
	Timezone     string   `yaml:"timezone"`
	State        string   `yaml:"state"`
}

// SeedFood is a catalog food.
type SeedFood struct {
	Name  string `yaml:"name"`
	Price int64  `yaml:"price"`
}

// SeedDay selects a restaurant and its offered foods for one date.
type SeedDay struct {
	Date       string         `yaml:"date"`
	Restaurant SeedRestaurant `yaml:"restaurant"`
	Foods      []string       `yaml:"foods"`
}

// SeedRestaurant is a day's restaurant.
type SeedRestaurant struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	MenuID string `yaml:"menu_id"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed: %w", err)
	}
	return ParseSeed(path, data)
}

// ParseSeed validates data against the seed schema and decodes it.
func ParseSeed(source string, data []byte) (*Seed, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(source, "#Seed", doc); err != nil {
		return nil, err
	}

	var seed Seed
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &seed, nil
}

// Build converts the seed into an order and its new plan. defaultTimezone
// applies when the order names none.
func (s *Seed) Build(defaultTimezone string) (plan.Order, plan.Plan, error) {
	tz := s.Order.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc := time.UTC
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return plan.Order{}, plan.Plan{}, fmt.Errorf("seed: timezone %q: %w", tz, err)
		}
		loc = l
	}

	start, err := time.ParseInLocation(time.DateOnly, s.Order.StartDate, loc)
	if err != nil {
		return plan.Order{}, plan.Plan{}, fmt.Errorf("seed: start_date: %w", err)
	}
	end, err := time.ParseInLocation(time.DateOnly, s.Order.EndDate, loc)
	if err != nil {
		return plan.Order{}, plan.Plan{}, fmt.Errorf("seed: end_date: %w", err)
	}
	if end.Before(start) {
		return plan.Order{}, plan.Plan{}, fmt.Errorf("seed: end_date %s is before start_date %s", s.Order.EndDate, s.Order.StartDate)
	}
	deadline := start
	if s.Order.Deadline != "" {
		deadline, err = time.Parse(time.RFC3339, s.Order.Deadline)
		if err != nil {
			return plan.Order{}, plan.Plan{}, fmt.Errorf("seed: deadline: %w", err)
		}
	}
	state := plan.OrderStatePicking
	if s.Order.State != "" {
		state = plan.OrderState(s.Order.State)
	}

	order := plan.Order{
		ID:           s.Order.ID,
		CompanyID:    s.Order.CompanyID,
		BookerID:     s.Order.BookerID,
		Participants: dedupe(s.Order.Participants),
		State:        state,
		GeneralInfo: plan.GeneralInfo{
			StartDate:    start,
			EndDate:      end,
			Deadline:     deadline,
			DeliveryHour: s.Order.DeliveryHour,
			Timezone:     tz,
		},
	}

	setups := make(map[plan.DayKey]plan.DaySetup, len(s.Days))
	for _, d := range s.Days {
		date, err := time.ParseInLocation(time.DateOnly, d.Date, loc)
		if err != nil {
			return plan.Order{}, plan.Plan{}, fmt.Errorf("seed: day %s: %w", d.Date, err)
		}
		key := plan.DayKeyOf(date, loc)
		if _, dup := setups[key]; dup {
			return plan.Order{}, plan.Plan{}, fmt.Errorf("seed: day %s listed twice", d.Date)
		}
		foods := make(map[string]plan.Food, len(d.Foods))
		for _, id := range d.Foods {
			f, ok := s.Foods[id]
			if !ok {
				return plan.Order{}, plan.Plan{}, fmt.Errorf("seed: day %s: %w", d.Date, plan.NewUnknownFood(key, id))
			}
			foods[id] = plan.Food{Name: f.Name, Price: f.Price}
		}
		setups[key] = plan.DaySetup{
			Restaurant: plan.Restaurant{ID: d.Restaurant.ID, Name: d.Restaurant.Name, MenuID: d.Restaurant.MenuID},
			FoodList:   foods,
		}
	}

	p, err := plan.NewPlan(s.PlanID, order, setups)
	if err != nil {
		return plan.Order{}, plan.Plan{}, fmt.Errorf("seed: %w", err)
	}
	return order, p, nil
}

// FoodIDs returns the catalog food ids in sorted order.
func (s *Seed) FoodIDs() []string {
	ids := make([]string, 0, len(s.Foods))
	for id := range s.Foods {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UserIDs returns the directory user ids in sorted order.
func (s *Seed) UserIDs() []string {
	ids := make([]string, 0, len(s.Users))
	for id := range s.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
