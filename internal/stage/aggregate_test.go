package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ORNL/curifactory-go/internal/cache"
	"github.com/ORNL/curifactory-go/internal/manager"
	"github.com/ORNL/curifactory-go/internal/params"
	"github.com/ORNL/curifactory-go/internal/record"
)

func pinned(name, hash string, overwrite bool) *trainParams {
	p := newTrainParams(name, overwrite)
	p.SetHash(hash)
	return p
}

func summingAggregate(runs *int, cachers []cache.Cacher) *Aggregate {
	return &Aggregate{
		Name:    "combine",
		Outputs: []string{"combined"},
		Cachers: cachers,
		Run: func(ctx context.Context, rec *record.Record, inputs []*record.Record) ([]any, error) {
			*runs++
			return []any{map[string]any{"records": float64(len(inputs))}}, nil
		},
	}
}

func TestAggregate_MarksRecordAndSetsComboHash(t *testing.T) {
	mgr := newManager(t)
	mgr.TraceMode = true
	r0 := mgr.NewRecord(pinned("a", "hash_a", false))
	r1 := mgr.NewRecord(pinned("b", "hash_b", false))
	agg := mgr.NewRecord(nil)

	runs := 0
	a := summingAggregate(&runs, nil)
	require.NoError(t, a.Apply(context.Background(), mgr, agg, []*record.Record{r0, r1}))

	assert.True(t, agg.IsAggregate)
	assert.Equal(t, []*record.Record{r0, r1}, agg.InputRecords)
	assert.Equal(t,
		params.ComboHash(params.NoneHash, []string{"hash_a", "hash_b"}),
		agg.ComboHash)
	assert.Zero(t, runs)
}

func TestAggregate_ComboHashIgnoresInputOrder(t *testing.T) {
	build := func(order []string) string {
		mgr := newManager(t)
		mgr.TraceMode = true
		recs := map[string]*record.Record{
			"a": mgr.NewRecord(pinned("a", "hash_a", false)),
			"b": mgr.NewRecord(pinned("b", "hash_b", false)),
		}
		agg := mgr.NewRecord(nil)
		inputs := []*record.Record{recs[order[0]], recs[order[1]]}
		runs := 0
		require.NoError(t,
			summingAggregate(&runs, nil).Apply(context.Background(), mgr, agg, inputs))
		return agg.ComboHash
	}

	assert.Equal(t, build([]string{"a", "b"}), build([]string{"b", "a"}))
}

func TestAggregate_SecondRunServesFromCache(t *testing.T) {
	cacheDir := t.TempDir()
	totalRuns := 0
	run := func() *record.Record {
		mgr := manager.New(manager.Config{ExperimentName: "example", CacheDir: cacheDir})
		r0 := mgr.NewRecord(pinned("a", "hash_a", false))
		agg := mgr.NewRecord(nil)
		a := summingAggregate(&totalRuns, []cache.Cacher{cache.NewJSONCacher()})
		require.NoError(t, a.Apply(context.Background(), mgr, agg, []*record.Record{r0}))
		return agg
	}

	run()
	require.Equal(t, 1, totalRuns)

	agg := run()
	assert.Equal(t, 1, totalRuns, "cached aggregate short-circuits the body")
	assert.NotNil(t, agg.State["combined"])
}

func TestAggregate_InputOverwriteBustsCache(t *testing.T) {
	// an aggregate record with no parameter set inherits overwrite from its
	// input records: recomputing one branch must recompute the combination
	cacheDir := t.TempDir()
	totalRuns := 0
	run := func(overwriteInput bool) {
		mgr := manager.New(manager.Config{ExperimentName: "example", CacheDir: cacheDir})
		r0 := mgr.NewRecord(pinned("a", "hash_a", overwriteInput))
		r1 := mgr.NewRecord(pinned("b", "hash_b", false))
		agg := mgr.NewRecord(nil)
		a := summingAggregate(&totalRuns, []cache.Cacher{cache.NewJSONCacher()})
		require.NoError(t, a.Apply(context.Background(), mgr, agg, []*record.Record{r0, r1}))
	}

	run(false)
	require.Equal(t, 1, totalRuns)

	run(true)
	assert.Equal(t, 2, totalRuns, "overwrite on a contributing branch reruns the aggregate")

	run(false)
	assert.Equal(t, 2, totalRuns, "with no overwrite the refreshed cache entry serves again")
}
