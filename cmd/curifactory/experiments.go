package main

import (
	"context"
	"fmt"

	"github.com/ORNL/curifactory-go/internal/cache"
	"github.com/ORNL/curifactory-go/internal/cli"
	"github.com/ORNL/curifactory-go/internal/manager"
	"github.com/ORNL/curifactory-go/internal/params"
	"github.com/ORNL/curifactory-go/internal/record"
	"github.com/ORNL/curifactory-go/internal/stage"
)

// registerExperiments wires project experiments into the CLI. The example
// experiment below doubles as a smoke test for a fresh checkout:
//
//	curifactory run example -p <file>.cue
//
// with a parameter file whose sets carry {count: int, factor: number}.
func registerExperiments(app *cli.App) {
	app.Register("example", examplePipeline)
}

// examplePipeline generates a numeric series per parameter set, summarizes
// it, and aggregates the summaries across all sets.
func examplePipeline(ctx context.Context, mgr *manager.Manager, sets []params.ParamSet) error {
	generate := &stage.Stage{
		Name:    "generate",
		Outputs: []string{"series"},
		Cachers: []cache.Cacher{cache.NewJSONCacher()},
		Run: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
			count, factor, err := exampleValues(rec.Params)
			if err != nil {
				return nil, err
			}
			series := make([]any, count)
			for i := range series {
				series[i] = float64(i) * factor
			}
			return []any{series}, nil
		},
	}
	summarize := &stage.Stage{
		Name:    "summarize",
		Inputs:  []string{"series"},
		Outputs: []string{"summary"},
		Cachers: []cache.Cacher{cache.NewJSONCacher()},
		Run: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
			series, ok := inputs["series"].([]any)
			if !ok {
				return nil, fmt.Errorf("expected numeric series, got %T", inputs["series"])
			}
			total := 0.0
			for _, v := range series {
				f, ok := v.(float64)
				if !ok {
					return nil, fmt.Errorf("expected float64 element, got %T", v)
				}
				total += f
			}
			mean := 0.0
			if len(series) > 0 {
				mean = total / float64(len(series))
			}
			return []any{map[string]any{"count": float64(len(series)), "mean": mean}}, nil
		},
	}

	var recs []*record.Record
	for _, set := range sets {
		rec := mgr.NewRecord(set)
		if err := generate.Apply(ctx, mgr, rec); err != nil {
			return err
		}
		if err := summarize.Apply(ctx, mgr, rec); err != nil {
			return err
		}
		recs = append(recs, rec)
	}

	compare := &stage.Aggregate{
		Name:    "compare",
		Outputs: []string{"comparison"},
		Cachers: []cache.Cacher{cache.NewJSONCacher()},
		Run: func(ctx context.Context, rec *record.Record, inputs []*record.Record) ([]any, error) {
			comparison := make(map[string]any, len(inputs))
			for _, input := range inputs {
				comparison[input.Name()] = input.State["summary"]
			}
			return []any{comparison}, nil
		},
	}
	return compare.Apply(ctx, mgr, mgr.NewRecord(nil), recs)
}

// exampleValues pulls the expected fields out of a map-backed set.
func exampleValues(set params.ParamSet) (int, float64, error) {
	mapSet, ok := set.(*params.MapSet)
	if !ok {
		return 0, 0, fmt.Errorf("example experiment expects file-loaded parameter sets, got %T", set)
	}
	count, ok := toInt(mapSet.Values["count"])
	if !ok {
		return 0, 0, fmt.Errorf("parameter set %q: missing or non-integer \"count\"", set.ParamName())
	}
	factor, ok := toFloat(mapSet.Values["factor"])
	if !ok {
		return 0, 0, fmt.Errorf("parameter set %q: missing or non-numeric \"factor\"", set.ParamName())
	}
	return count, factor, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
