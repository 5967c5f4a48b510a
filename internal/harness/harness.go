package harness

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ORNL/curifactory-go/internal/dag"
	"github.com/ORNL/curifactory-go/internal/params"
	"github.com/ORNL/curifactory-go/internal/record"
)

// BuildRun materializes the scenario's traced run: records, bindings, and
// an artifact table with the declared cache snapshot. Parameter-set hashes
// are pinned to the declared names, so runs are deterministic without any
// real hashing.
func BuildRun(s *Scenario) ([]*record.Record, *record.ArtifactTable, error) {
	table := record.NewArtifactTable()
	records := make([]*record.Record, 0, len(s.Records))

	for recordIndex, spec := range s.Records {
		rec, err := buildRecord(records, spec)
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", recordIndex, err)
		}
		records = append(records, rec)

		for _, stageSpec := range spec.Stages {
			rec.BeginStage(stageSpec.Name)
			for _, input := range stageSpec.Inputs {
				index, ok := rec.ArtifactRef(input)
				if !ok {
					return nil, nil, fmt.Errorf("record %d stage %q: input %q has no producer",
						recordIndex, stageSpec.Name, input)
				}
				rec.AddStageInput(index)
			}
			for _, output := range stageSpec.Outputs {
				index := table.Add(record.Artifact{
					RecordIndex: recordIndex,
					StageName:   stageSpec.Name,
					Name:        output,
					Cached:      stageSpec.Cached,
				})
				rec.AddStageOutput(index)
				rec.Bind(output, index, nil)
			}
		}
	}
	return records, table, nil
}

func buildRecord(built []*record.Record, spec RecordSpec) (*record.Record, error) {
	set := pinnedSet(spec.Params)

	if spec.CopyOf != nil {
		return built[*spec.CopyOf].MakeCopy(set), nil
	}

	rec := record.New(set)
	if spec.Aggregate {
		rec.IsAggregate = true
		inputHashes := make([]string, 0, len(spec.Inputs))
		for _, inputIndex := range spec.Inputs {
			input := built[inputIndex]
			rec.InputRecords = append(rec.InputRecords, input)
			hash, err := input.Hash()
			if err != nil {
				return nil, err
			}
			inputHashes = append(inputHashes, hash)
		}
		active := params.NoneHash
		if set != nil {
			active = spec.Params
		}
		rec.ComboHash = params.ComboHash(active, inputHashes)
	}
	return rec, nil
}

func pinnedSet(name string) params.ParamSet {
	if name == "" {
		return nil
	}
	set := &params.MapSet{}
	set.Name = name
	set.SetHash(name)
	return set
}

// RunScenario executes one scenario file: build the run, plan it, and
// compare the rendered execution list against expect_plan.
func RunScenario(t *testing.T, path string) {
	t.Helper()

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	records, table, err := BuildRun(scenario)
	require.NoError(t, err)

	overwrite := make(map[string]bool, len(scenario.Overwrite))
	for _, name := range scenario.Overwrite {
		overwrite[name] = true
	}
	plan, err := dag.New(records, table).Plan(dag.PlanningContext{
		OverwriteStages: overwrite,
		OverwriteAll:    scenario.OverwriteAll,
	})
	require.NoError(t, err)

	rendered := make([]string, 0, len(plan))
	for _, pair := range plan {
		rendered = append(rendered, pair.String())
	}
	expected := scenario.ExpectPlan
	if expected == nil {
		expected = []string{}
	}
	assert.Equal(t, expected, rendered, scenario.Description)
}

// RunDir runs every scenario file in a directory as a subtest named after
// the file.
func RunDir(t *testing.T, dir string) {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files in %s", dir)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			RunScenario(t, path)
		})
	}
}
