package stage

import (
	"context"
	"fmt"
	"slices"

	"github.com/ORNL/curifactory-go/internal/cache"
	"github.com/ORNL/curifactory-go/internal/dag"
	"github.com/ORNL/curifactory-go/internal/manager"
	"github.com/ORNL/curifactory-go/internal/params"
	"github.com/ORNL/curifactory-go/internal/record"
)

// AggregateFunc computes an aggregate stage's outputs from the full set of
// input records. Values are returned in declared output order.
type AggregateFunc func(ctx context.Context, rec *record.Record, inputs []*record.Record) ([]any, error)

// Aggregate is a stage that combines results across records instead of
// consuming named artifacts. It declares no inputs; its dependency on the
// input records is structural, and the graph walk treats every output of an
// aggregated record as potentially consumed.
type Aggregate struct {
	Name    string
	Outputs []string
	Cachers []cache.Cacher
	Run     AggregateFunc
}

// Apply invokes the aggregate against rec over the given input records.
// It marks rec as an aggregate, registers the input records, and derives
// the record's combo hash before any cache path is computed.
func (a *Aggregate) Apply(ctx context.Context, mgr *manager.Manager, rec *record.Record, inputRecords []*record.Record) error {
	recordIndex, err := mgr.RecordIndex(rec)
	if err != nil {
		return fmt.Errorf("aggregate %q: %w", a.Name, err)
	}
	if err := cache.ValidateCachers(a.Outputs, a.Cachers); err != nil {
		return fmt.Errorf("aggregate %q: %w", a.Name, err)
	}

	rec.IsAggregate = true
	for _, input := range inputRecords {
		if !slices.Contains(rec.InputRecords, input) {
			rec.InputRecords = append(rec.InputRecords, input)
		}
	}
	if err := a.setComboHash(rec); err != nil {
		return err
	}

	pair := dag.StagePair{RecordIndex: recordIndex, Stage: a.Name}
	rec.BeginStage(a.Name)

	outputIndices, cached, err := registerOutputs(mgr, rec, recordIndex, a.Name, a.Outputs, a.Cachers)
	if err != nil {
		return err
	}

	if mgr.TraceMode {
		return nil
	}

	if cached && !(mgr.HasPlan() && mgr.Planned(pair)) {
		for i, name := range a.Outputs {
			value, err := a.Cachers[i].Load()
			if err != nil {
				return fmt.Errorf("aggregate %q: load cached %q: %w", a.Name, name, err)
			}
			rec.Bind(name, outputIndices[i], value)
		}
		mgr.Logger().Info("aggregate served from cache", "stage", a.Name, "record", rec.Name())
		return nil
	}

	mgr.Logger().Info("aggregate executing",
		"stage", a.Name, "record", rec.Name(), "inputs", len(rec.InputRecords))
	values, err := a.Run(ctx, rec, rec.InputRecords)
	if err != nil {
		return fmt.Errorf("aggregate %q: %w", a.Name, err)
	}
	if len(values) != len(a.Outputs) {
		return &OutputCountError{Pair: pair, Declared: len(a.Outputs), Returned: len(values)}
	}
	for i, name := range a.Outputs {
		rec.Bind(name, outputIndices[i], values[i])
		if a.Cachers == nil || mgr.DryCache {
			continue
		}
		if err := a.Cachers[i].Save(values[i]); err != nil {
			return fmt.Errorf("aggregate %q: save %q: %w", a.Name, name, err)
		}
		if err := mgr.Artifacts.SetCached(outputIndices[i], true, a.Cachers[i].Path()); err != nil {
			return fmt.Errorf("aggregate %q: %w", a.Name, err)
		}
	}
	return nil
}

// setComboHash derives the record's aggregation identity from the active
// record's own hash plus every input record's hash.
func (a *Aggregate) setComboHash(rec *record.Record) error {
	active := params.NoneHash
	if rec.Params != nil {
		h, err := params.Hash(rec.Params)
		if err != nil {
			return fmt.Errorf("aggregate %q: %w", a.Name, err)
		}
		active = h
	}
	inputHashes := make([]string, 0, len(rec.InputRecords))
	for _, input := range rec.InputRecords {
		h, err := input.Hash()
		if err != nil {
			return fmt.Errorf("aggregate %q: input record %s: %w", a.Name, input.Name(), err)
		}
		inputHashes = append(inputHashes, h)
	}
	rec.ComboHash = params.ComboHash(active, inputHashes)
	return nil
}
