// Package harness runs declarative planner scenarios: YAML files that
// describe a traced run (records, stages, per-artifact cache state) and the
// execution list the planner must produce for it. New planner cases are a
// YAML file, not Go code.
package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one declarative planner case.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Records describe the traced run, in record-index order.
	Records []RecordSpec `yaml:"records"`

	// Overwrite names stages forced to recompute.
	Overwrite []string `yaml:"overwrite,omitempty"`

	// OverwriteAll forces everything.
	OverwriteAll bool `yaml:"overwrite_all,omitempty"`

	// ExpectPlan is the expected execution list, each entry rendered as
	// "(recordIndex, stageName)". Empty means the planner must schedule
	// nothing.
	ExpectPlan []string `yaml:"expect_plan"`
}

// RecordSpec describes one record of the traced run.
type RecordSpec struct {
	// Params names the record's parameter set; the name doubles as the
	// pinned hash. Empty means no parameter set.
	Params string `yaml:"params,omitempty"`

	// CopyOf clones a prior record's bindings before this record's stages
	// run, the way user code forks a record mid-pipeline.
	CopyOf *int `yaml:"copy_of,omitempty"`

	// Aggregate marks this record as an aggregate over the listed record
	// indices.
	Aggregate bool  `yaml:"aggregate,omitempty"`
	Inputs    []int `yaml:"inputs,omitempty"`

	Stages []StageSpec `yaml:"stages"`
}

// StageSpec describes one traced stage invocation.
type StageSpec struct {
	Name    string   `yaml:"name"`
	Inputs  []string `yaml:"inputs,omitempty"`
	Outputs []string `yaml:"outputs,omitempty"`

	// Cached marks every output of this stage as having a valid cache
	// entry in the snapshot.
	Cached bool `yaml:"cached,omitempty"`
}

// LoadScenario reads and parses a scenario file, rejecting unknown fields
// so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Records) == 0 {
		return fmt.Errorf("at least one record is required")
	}
	for i, rec := range s.Records {
		if rec.Aggregate && rec.CopyOf != nil {
			return fmt.Errorf("record %d: aggregate and copy_of are mutually exclusive", i)
		}
		if !rec.Aggregate && len(rec.Inputs) > 0 {
			return fmt.Errorf("record %d: inputs requires aggregate: true", i)
		}
		if rec.CopyOf != nil && (*rec.CopyOf < 0 || *rec.CopyOf >= i) {
			return fmt.Errorf("record %d: copy_of must name an earlier record", i)
		}
		for _, input := range rec.Inputs {
			if input < 0 || input >= i {
				return fmt.Errorf("record %d: aggregate input %d must name an earlier record", i, input)
			}
		}
		for j, stage := range rec.Stages {
			if stage.Name == "" {
				return fmt.Errorf("record %d stage %d: name is required", i, j)
			}
		}
	}
	return nil
}
