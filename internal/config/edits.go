package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mealplan/internal/plan"
)

// EditBatch is a file of member edits applied by one actor in a single
// locked cycle.
type EditBatch struct {
	Actor string      `yaml:"actor"`
	Edits []BatchEdit `yaml:"edits"`
}

// BatchEdit is one line of an EditBatch. Day is a YYYY-MM-DD date or a raw
// day key. Action defaults to setFood.
type BatchEdit struct {
	Day    string `yaml:"day"`
	Member string `yaml:"member"`
	Action string `yaml:"action"`
	Food   string `yaml:"food"`
	Note   string `yaml:"note"`
}

// LoadEditBatch reads and validates an edit batch file.
func LoadEditBatch(path string) (*EditBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read edits: %w", err)
	}
	return ParseEditBatch(path, data)
}

// ParseEditBatch validates data against the edit batch schema and decodes it.
func ParseEditBatch(source string, data []byte) (*EditBatch, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(source, "#EditBatch", doc); err != nil {
		return nil, err
	}

	var batch EditBatch
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &batch, nil
}

// Edit converts the line into a plan edit.
func (b BatchEdit) Edit() (plan.Edit, error) {
	switch plan.EditKind(b.Action) {
	case "", plan.EditSetFood:
		return plan.SetFood(b.Food), nil
	case plan.EditDisallow:
		return plan.Disallow(), nil
	case plan.EditRestore:
		return plan.Restore(), nil
	case plan.EditDecline:
		return plan.Decline(), nil
	case plan.EditSetRequirement:
		return plan.SetRequirement(b.Note), nil
	}
	return plan.Edit{}, fmt.Errorf("unknown edit action %q", b.Action)
}
