package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mealplan/internal/config"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is an optional configuration document, validated like a
	// config file. The database is always replaced by the harness.
	Config yaml.Node `yaml:"config,omitempty"`

	// Seed is the seed document for the scenario's plan.
	Seed yaml.Node `yaml:"seed"`

	// Clock is the RFC 3339 start of the stepping clock. Defaults to
	// DefaultClockStart.
	Clock string `yaml:"clock,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the runtime is closed.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultClockStart is the stepping clock's start when a scenario sets none.
var DefaultClockStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// Step is one operation. Exactly one of the operation fields is set.
//
// The verifier compares each job with the plan as it is when the job runs,
// so a step that rewrites an entry an earlier step wrote should follow a
// settle step to keep outcomes reproducible.
type Step struct {
	// Name labels the step in failure messages.
	Name string `yaml:"name,omitempty"`

	// Actor performs the step. Defaults to the order's booker.
	Actor string `yaml:"actor,omitempty"`

	Edit       *config.BatchEdit  `yaml:"edit,omitempty"`
	Batch      []config.BatchEdit `yaml:"batch,omitempty"`
	Concurrent []Step             `yaml:"concurrent,omitempty"`
	Initiate   *InitiateStep      `yaml:"initiate,omitempty"`
	Transition *TransitionStep    `yaml:"transition,omitempty"`
	Expire     *ExpireStep        `yaml:"expire,omitempty"`

	// Settle waits for every queued verification by restarting the
	// runtime on the same database.
	Settle bool `yaml:"settle,omitempty"`

	// ExpectError is the plan error code the step must fail with, or
	// "error" for a failure that carries no code. Empty means the step
	// must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// InitiateStep opens a sub-order for a day. Restaurant defaults to the
// day's restaurant.
type InitiateStep struct {
	Day        string            `yaml:"day"`
	Restaurant string            `yaml:"restaurant,omitempty"`
	Params     map[string]string `yaml:"params,omitempty"`
}

// TransitionStep applies a transition to the sub-order last initiated for
// a day.
type TransitionStep struct {
	Day    string            `yaml:"day"`
	Name   string            `yaml:"name"`
	Params map[string]string `yaml:"params,omitempty"`
}

// ExpireStep runs the deadline sweep. At is RFC 3339 and defaults to the
// stepping clock.
type ExpireStep struct {
	At    string `yaml:"at,omitempty"`
	Force bool   `yaml:"force,omitempty"`
}

// Assertion checks the settled state after all steps.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Day and Member locate an entry or sub-order.
	Day    string `yaml:"day,omitempty"`
	Member string `yaml:"member,omitempty"`

	// Status, Food and Requirement are compared when set (entry).
	Status      string `yaml:"status,omitempty"`
	Food        string `yaml:"food,omitempty"`
	Requirement string `yaml:"requirement,omitempty"`

	// State is the expected sub-order state (sub_order).
	State string `yaml:"state,omitempty"`

	// Outcome filters verification records (verifications).
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of matching records, dishes or alerts.
	Count *int `yaml:"count,omitempty"`

	// Total is the expected quotation total (quote).
	Total *int64 `yaml:"total,omitempty"`
}

// Assertion types.
const (
	AssertEntry         = "entry"
	AssertSubOrder      = "sub_order"
	AssertQuote         = "quote"
	AssertVerifications = "verifications"
	AssertAlerts        = "alerts"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Seed.Kind == 0 {
		return fmt.Errorf("seed is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Clock != "" {
		if _, err := time.Parse(time.RFC3339, s.Clock); err != nil {
			return fmt.Errorf("clock: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step, false); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, nested bool) error {
	set := 0
	for _, ok := range []bool{
		step.Edit != nil,
		len(step.Batch) > 0,
		len(step.Concurrent) > 0,
		step.Initiate != nil,
		step.Transition != nil,
		step.Expire != nil,
		step.Settle,
	} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of edit, batch, concurrent, initiate, transition, expire, settle is required")
	}
	if step.Settle && (nested || step.ExpectError != "") {
		return fmt.Errorf("settle cannot be part of a concurrent group or expect an error")
	}

	switch {
	case len(step.Concurrent) > 0:
		if nested {
			return fmt.Errorf("concurrent groups cannot be nested")
		}
		if step.ExpectError != "" {
			return fmt.Errorf("expect_error belongs on the steps of a concurrent group")
		}
		for i, sub := range step.Concurrent {
			if err := validateStep(sub, true); err != nil {
				return fmt.Errorf("concurrent %d: %w", i, err)
			}
		}
	case step.Transition != nil:
		if step.Transition.Day == "" || step.Transition.Name == "" {
			return fmt.Errorf("transition needs day and name")
		}
	case step.Initiate != nil:
		if step.Initiate.Day == "" {
			return fmt.Errorf("initiate needs day")
		}
	case step.Expire != nil:
		if step.Expire.At != "" {
			if _, err := time.Parse(time.RFC3339, step.Expire.At); err != nil {
				return fmt.Errorf("expire at: %w", err)
			}
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertEntry:
		if a.Day == "" || a.Member == "" {
			return fmt.Errorf("entry assertion needs day and member")
		}
	case AssertSubOrder:
		if a.Day == "" || a.State == "" {
			return fmt.Errorf("sub_order assertion needs day and state")
		}
	case AssertQuote:
		if a.Total == nil && a.Count == nil {
			return fmt.Errorf("quote assertion needs total or count")
		}
	case AssertVerifications, AssertAlerts:
		if a.Count == nil {
			return fmt.Errorf("%s assertion needs count", a.Type)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
