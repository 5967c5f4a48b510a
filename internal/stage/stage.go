// Package stage is the invocation machinery for named computation units.
// A Stage declares its input and output names, an optional cacher per
// output, and the function that computes the outputs; Apply is the single
// invocation path for both the trace pass and the real pass.
//
// ARCHITECTURE
//
// Apply always records linkage first: it resolves declared input names
// against the record's bindings, registers every declared output in the
// run's artifact table, and probes the cachers so the artifact table
// carries a truthful cache-state snapshot. In trace mode it returns right
// there, before any user logic or cache loading. In the real pass it then
// either short-circuits from cache or runs the stage body and saves the
// results. Tracing is a capability check inside this one path, never a
// second code path.
package stage

import (
	"context"
	"fmt"

	"github.com/ORNL/curifactory-go/internal/cache"
	"github.com/ORNL/curifactory-go/internal/dag"
	"github.com/ORNL/curifactory-go/internal/manager"
	"github.com/ORNL/curifactory-go/internal/record"
)

// RunFunc computes a stage's outputs from its resolved inputs. Values are
// returned in declared output order.
type RunFunc func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error)

// Stage is one named computation unit. The same Stage value may be applied
// to many records within a run; cacher paths are re-bound on every
// application, so cachers are safe to share across records in a
// single-threaded run.
type Stage struct {
	Name    string
	Inputs  []string
	Outputs []string

	// Cachers holds one caching strategy per declared output, or nil when
	// the stage opts out of caching entirely.
	Cachers []cache.Cacher

	// SuppressMissingInputs lets the stage run with unresolved inputs
	// (delivered as nil) instead of failing the trace.
	SuppressMissingInputs bool

	Run RunFunc
}

// Apply invokes the stage against rec. See ApplyWith.
func (s *Stage) Apply(ctx context.Context, mgr *manager.Manager, rec *record.Record) error {
	return s.ApplyWith(ctx, mgr, rec, nil)
}

// ApplyWith invokes the stage against rec, with overrides supplying input
// values directly by name. An overridden input needs no producing artifact;
// its linkage is recorded as unresolved and tolerated.
func (s *Stage) ApplyWith(ctx context.Context, mgr *manager.Manager, rec *record.Record, overrides map[string]any) error {
	recordIndex, err := mgr.RecordIndex(rec)
	if err != nil {
		return fmt.Errorf("stage %q: %w", s.Name, err)
	}
	if err := cache.ValidateCachers(s.Outputs, s.Cachers); err != nil {
		return fmt.Errorf("stage %q: %w", s.Name, err)
	}

	pair := dag.StagePair{RecordIndex: recordIndex, Stage: s.Name}
	rec.BeginStage(s.Name)

	inputs, err := s.resolveInputs(mgr, rec, pair, overrides)
	if err != nil {
		return err
	}

	outputIndices, cached, err := s.registerOutputs(mgr, rec, recordIndex)
	if err != nil {
		return err
	}

	if mgr.TraceMode {
		return nil
	}

	if cached && !(mgr.HasPlan() && mgr.Planned(pair)) {
		return s.loadOutputs(mgr, rec, outputIndices)
	}
	return s.runAndSave(ctx, mgr, rec, pair, inputs, outputIndices)
}

// resolveInputs records one linkage entry per declared input and collects
// the values the stage body will receive.
func (s *Stage) resolveInputs(mgr *manager.Manager, rec *record.Record, pair dag.StagePair, overrides map[string]any) (map[string]any, error) {
	inputs := make(map[string]any, len(s.Inputs))
	var missing []string
	for _, name := range s.Inputs {
		if value, ok := overrides[name]; ok {
			rec.AddStageInput(record.MissingArtifact)
			mgr.TolerateMissing(pair)
			inputs[name] = value
			continue
		}
		if index, ok := rec.ArtifactRef(name); ok {
			rec.AddStageInput(index)
			inputs[name] = rec.State[name]
			continue
		}
		rec.AddStageInput(record.MissingArtifact)
		if s.SuppressMissingInputs {
			mgr.TolerateMissing(pair)
			inputs[name] = nil
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) > 0 {
		return nil, &MissingInputError{Pair: pair, Record: rec.Name(), Inputs: missing}
	}
	return inputs, nil
}

func (s *Stage) registerOutputs(mgr *manager.Manager, rec *record.Record, recordIndex int) ([]int, bool, error) {
	return registerOutputs(mgr, rec, recordIndex, s.Name, s.Outputs, s.Cachers)
}

// registerOutputs binds cacher paths, takes the cache-state probe, and
// registers every declared output in the artifact table. Returns the table
// indices and whether the stage as a whole may serve from cache.
func registerOutputs(mgr *manager.Manager, rec *record.Record, recordIndex int, stageName string, outputs []string, cachers []cache.Cacher) ([]int, bool, error) {
	for i, name := range outputs {
		if cachers == nil {
			break
		}
		path, err := mgr.ArtifactPath(rec, stageName, name)
		if err != nil {
			return nil, false, fmt.Errorf("stage %q: %w", stageName, err)
		}
		cachers[i].SetPath(path)
	}

	cached := cachers != nil && cache.StageCached(rec, cachers)
	overwrite := cache.OverwriteRequested(rec)

	indices := make([]int, len(outputs))
	for i, name := range outputs {
		artifact := record.Artifact{
			RecordIndex: recordIndex,
			StageName:   stageName,
			Name:        name,
		}
		if cachers != nil {
			artifact.Path = cachers[i].Path()
			artifact.Cached = !overwrite && cachers[i].Check()
		}
		index := mgr.Artifacts.Add(artifact)
		rec.AddStageOutput(index)
		rec.Bind(name, index, nil)
		indices[i] = index
	}
	return indices, cached, nil
}

func (s *Stage) loadOutputs(mgr *manager.Manager, rec *record.Record, outputIndices []int) error {
	for i, name := range s.Outputs {
		value, err := s.Cachers[i].Load()
		if err != nil {
			return fmt.Errorf("stage %q: load cached %q: %w", s.Name, name, err)
		}
		rec.Bind(name, outputIndices[i], value)
	}
	mgr.Logger().Info("stage served from cache", "stage", s.Name, "record", rec.Name())
	return nil
}

func (s *Stage) runAndSave(ctx context.Context, mgr *manager.Manager, rec *record.Record, pair dag.StagePair, inputs map[string]any, outputIndices []int) error {
	mgr.Logger().Info("stage executing", "stage", s.Name, "record", rec.Name())
	values, err := s.Run(ctx, rec, inputs)
	if err != nil {
		return fmt.Errorf("stage %q: %w", s.Name, err)
	}
	if len(values) != len(s.Outputs) {
		return &OutputCountError{Pair: pair, Declared: len(s.Outputs), Returned: len(values)}
	}
	for i, name := range s.Outputs {
		rec.Bind(name, outputIndices[i], values[i])
		if s.Cachers == nil || mgr.DryCache {
			continue
		}
		if err := s.Cachers[i].Save(values[i]); err != nil {
			return fmt.Errorf("stage %q: save %q: %w", s.Name, name, err)
		}
		if err := mgr.Artifacts.SetCached(outputIndices[i], true, s.Cachers[i].Path()); err != nil {
			return fmt.Errorf("stage %q: %w", s.Name, err)
		}
	}
	return nil
}
