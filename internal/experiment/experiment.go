// Package experiment orchestrates one run end to end: trace the pipeline
// with stage bodies disabled, build the dependency graph, plan the
// execution list, then run the pipeline for real with the planned pairs
// forced.
//
// The pipeline function is invoked twice with the same manager; the trace
// pass and the real pass must visit stages in the same order, which holds
// for any pipeline whose shape does not depend on computed stage values.
package experiment

import (
	"context"
	"fmt"
	"os"

	"github.com/ORNL/curifactory-go/internal/dag"
	"github.com/ORNL/curifactory-go/internal/manager"
	"github.com/ORNL/curifactory-go/internal/params"
	"github.com/ORNL/curifactory-go/internal/registry"
)

// Pipeline is user experiment code: create records for parameter sets and
// apply stages to them.
type Pipeline func(ctx context.Context, mgr *manager.Manager, sets []params.ParamSet) error

// Options tunes one run.
type Options struct {
	// Indices restricts the run to a subset of parameter-set indices, the
	// partition a sharded invocation was assigned. Nil runs every set.
	Indices []int

	// MapOnly stops after planning; nothing executes and nothing is cached.
	MapOnly bool

	// Registry, when set, records the run and every parameter set used.
	Registry *registry.Registry

	// Hostname recorded with the run. Defaults to os.Hostname.
	Hostname string
}

// Result reports what a run planned and, unless MapOnly, executed.
type Result struct {
	Reference string

	// Plan is the ordered execution list from the planning pass.
	Plan []dag.StagePair

	// RunMap is the human-readable rendering of the traced graph.
	RunMap string
}

// Run executes the pipeline against the given parameter sets.
func Run(ctx context.Context, mgr *manager.Manager, sets []params.ParamSet, pipeline Pipeline, opts Options) (*Result, error) {
	selected, err := selectSets(sets, opts.Indices)
	if err != nil {
		return nil, err
	}

	if err := recordRunStart(ctx, mgr, opts, selected); err != nil {
		return nil, err
	}

	mgr.TraceMode = true
	if err := pipeline(ctx, mgr, selected); err != nil {
		failRun(ctx, mgr, opts)
		return nil, fmt.Errorf("trace pass: %w", err)
	}
	mgr.TraceMode = false
	mgr.Logger().Info("trace pass complete",
		"records", len(mgr.Records), "artifacts", mgr.Artifacts.Len())

	d := mgr.MapRecords()
	runMap, err := d.Dump()
	if err != nil {
		failRun(ctx, mgr, opts)
		return nil, fmt.Errorf("render run map: %w", err)
	}
	plan, err := d.Plan(mgr.PlanningContext())
	if err != nil {
		failRun(ctx, mgr, opts)
		return nil, fmt.Errorf("plan execution: %w", err)
	}
	mgr.Logger().Info("execution planned", "stages", len(plan))

	result := &Result{Reference: mgr.Reference(), Plan: plan, RunMap: runMap}
	if opts.MapOnly {
		return result, updateRunStatus(ctx, mgr, opts, registry.StatusMapOnly)
	}

	mgr.SetPlanned(plan)
	mgr.Reset()
	if err := pipeline(ctx, mgr, selected); err != nil {
		failRun(ctx, mgr, opts)
		return nil, fmt.Errorf("execution pass: %w", err)
	}

	return result, updateRunStatus(ctx, mgr, opts, registry.StatusComplete)
}

func selectSets(sets []params.ParamSet, indices []int) ([]params.ParamSet, error) {
	if indices == nil {
		return sets, nil
	}
	selected := make([]params.ParamSet, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(sets) {
			return nil, fmt.Errorf("parameter set index %d out of range (have %d sets)", i, len(sets))
		}
		selected = append(selected, sets[i])
	}
	return selected, nil
}

func recordRunStart(ctx context.Context, mgr *manager.Manager, opts Options, sets []params.ParamSet) error {
	if opts.Registry == nil {
		return nil
	}
	for _, set := range sets {
		if err := opts.Registry.RegisterParamSet(ctx, set); err != nil {
			return err
		}
	}
	return updateRunStatus(ctx, mgr, opts, registry.StatusStarted)
}

func updateRunStatus(ctx context.Context, mgr *manager.Manager, opts Options, status string) error {
	if opts.Registry == nil {
		return nil
	}
	hostname := opts.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	return opts.Registry.WriteRun(ctx, registry.Run{
		Reference:  mgr.Reference(),
		Experiment: mgr.ExperimentName,
		RunNumber:  mgr.RunNumber,
		Timestamp:  mgr.RunTimestamp,
		RunID:      mgr.RunID,
		Overwrite:  mgr.Overwrite,
		Hostname:   hostname,
		Status:     status,
	})
}

// failRun marks the run failed in the registry; the original error is what
// the caller reports, so a registry write failure here is only logged.
func failRun(ctx context.Context, mgr *manager.Manager, opts Options) {
	if err := updateRunStatus(ctx, mgr, opts, registry.StatusFailed); err != nil {
		mgr.Logger().Warn("could not record run failure", "error", err)
	}
}
