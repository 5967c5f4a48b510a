package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ORNL/curifactory-go/internal/cache"
	"github.com/ORNL/curifactory-go/internal/dag"
	"github.com/ORNL/curifactory-go/internal/manager"
	"github.com/ORNL/curifactory-go/internal/params"
	"github.com/ORNL/curifactory-go/internal/record"
)

type trainParams struct {
	params.Params
	Epochs int
}

func newTrainParams(name string, overwrite bool) *trainParams {
	p := &trainParams{Epochs: 10}
	p.Name = name
	p.Overwrite = overwrite
	return p
}

func newManager(t *testing.T) *manager.Manager {
	t.Helper()
	return manager.New(manager.Config{
		ExperimentName: "example",
		CacheDir:       t.TempDir(),
		RunNumber:      1,
	})
}

// countingStage returns a one-output stage whose body increments runs.
func countingStage(runs *int, cachers []cache.Cacher) *Stage {
	return &Stage{
		Name:    "count",
		Outputs: []string{"count_out"},
		Cachers: cachers,
		Run: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
			*runs++
			return []any{map[string]any{"runs": float64(*runs)}}, nil
		},
	}
}

func TestApply_TraceModeRecordsLinkageWithoutRunning(t *testing.T) {
	mgr := newManager(t)
	mgr.TraceMode = true
	rec := mgr.NewRecord(newTrainParams("test", false))

	runs := 0
	s := countingStage(&runs, []cache.Cacher{cache.NewJSONCacher()})
	require.NoError(t, s.Apply(context.Background(), mgr, rec))

	assert.Zero(t, runs, "stage bodies never run during tracing")
	assert.Equal(t, []string{"count"}, rec.Stages)
	require.Equal(t, 1, mgr.Artifacts.Len())
	artifact := mgr.Artifacts.MustGet(0)
	assert.Equal(t, "count_out", artifact.Name)
	assert.False(t, artifact.Cached)
}

func TestApply_RunsAndSaves(t *testing.T) {
	mgr := newManager(t)
	rec := mgr.NewRecord(newTrainParams("test", false))

	runs := 0
	cacher := cache.NewJSONCacher()
	s := countingStage(&runs, []cache.Cacher{cacher})
	require.NoError(t, s.Apply(context.Background(), mgr, rec))

	assert.Equal(t, 1, runs)
	assert.True(t, cacher.Check())
	artifact := mgr.Artifacts.MustGet(0)
	assert.True(t, artifact.Cached)
	assert.Equal(t, cacher.Path(), artifact.Path)
	assert.NotNil(t, rec.State["count_out"])
}

func TestApply_SecondRunServesFromCache(t *testing.T) {
	cacheDir := t.TempDir()
	run := func() (int, *record.Record) {
		mgr := manager.New(manager.Config{ExperimentName: "example", CacheDir: cacheDir})
		rec := mgr.NewRecord(newTrainParams("test", false))
		runs := 0
		s := countingStage(&runs, []cache.Cacher{cache.NewJSONCacher()})
		require.NoError(t, s.Apply(context.Background(), mgr, rec))
		return runs, rec
	}

	runs, _ := run()
	require.Equal(t, 1, runs)

	runs, rec := run()
	assert.Zero(t, runs, "cached output short-circuits the body")
	value, ok := rec.State["count_out"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), value["runs"], "loaded value comes from the first run")
}

func TestApply_DryCacheNeverWrites(t *testing.T) {
	cacheDir := t.TempDir()
	totalRuns := 0
	run := func() {
		mgr := manager.New(manager.Config{
			ExperimentName: "example",
			CacheDir:       cacheDir,
			DryCache:       true,
		})
		rec := mgr.NewRecord(newTrainParams("test", false))
		cacher := cache.NewJSONCacher()
		s := countingStage(&totalRuns, []cache.Cacher{cacher})
		require.NoError(t, s.Apply(context.Background(), mgr, rec))
		assert.False(t, cacher.Check(), "dry cache leaves no file behind")
		assert.False(t, mgr.Artifacts.MustGet(0).Cached)
	}

	run()
	run()
	assert.Equal(t, 2, totalRuns, "nothing cached, so every run executes")
}

func TestApply_OverwriteParamForcesRun(t *testing.T) {
	cacheDir := t.TempDir()
	totalRuns := 0
	run := func(overwrite bool) {
		mgr := manager.New(manager.Config{ExperimentName: "example", CacheDir: cacheDir})
		rec := mgr.NewRecord(newTrainParams("test", overwrite))
		s := countingStage(&totalRuns, []cache.Cacher{cache.NewJSONCacher()})
		require.NoError(t, s.Apply(context.Background(), mgr, rec))
	}

	run(false)
	run(true)
	assert.Equal(t, 2, totalRuns)
}

func TestApply_PlannedPairForcesRunDespiteCache(t *testing.T) {
	cacheDir := t.TempDir()
	totalRuns := 0
	run := func(plan bool) {
		mgr := manager.New(manager.Config{ExperimentName: "example", CacheDir: cacheDir})
		rec := mgr.NewRecord(newTrainParams("test", false))
		s := countingStage(&totalRuns, []cache.Cacher{cache.NewJSONCacher()})
		if plan {
			mgr.SetPlanned([]dag.StagePair{{RecordIndex: 0, Stage: "count"}})
		}
		require.NoError(t, s.Apply(context.Background(), mgr, rec))
	}

	run(false)
	run(true)
	assert.Equal(t, 2, totalRuns, "a planned stage reruns even with a valid cache entry")
}

func TestApply_MissingInputFails(t *testing.T) {
	mgr := newManager(t)
	rec := mgr.NewRecord(newTrainParams("test", false))

	s := &Stage{
		Name:   "needs_input",
		Inputs: []string{"never_produced"},
		Run: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
			return nil, nil
		},
	}
	err := s.Apply(context.Background(), mgr, rec)
	var missingErr *MissingInputError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"never_produced"}, missingErr.Inputs)
}

func TestApply_SuppressMissingInputsDeliversNil(t *testing.T) {
	mgr := newManager(t)
	rec := mgr.NewRecord(newTrainParams("test", false))

	var got map[string]any
	s := &Stage{
		Name:                  "optional_input",
		Inputs:                []string{"never_produced"},
		SuppressMissingInputs: true,
		Run: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
			got = inputs
			return nil, nil
		},
	}
	require.NoError(t, s.Apply(context.Background(), mgr, rec))
	require.Contains(t, got, "never_produced")
	assert.Nil(t, got["never_produced"])
	assert.Equal(t, []int{record.MissingArtifact}, rec.StageInputs[0])

	// the tolerated pair must not fail the tree pass
	_, err := mgr.MapRecords().BuildTrees()
	assert.NoError(t, err)
}

func TestApplyWith_OverrideSuppliesValue(t *testing.T) {
	mgr := newManager(t)
	rec := mgr.NewRecord(newTrainParams("test", false))

	var got any
	s := &Stage{
		Name:   "takes_override",
		Inputs: []string{"data"},
		Run: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
			got = inputs["data"]
			return nil, nil
		},
	}
	require.NoError(t, s.ApplyWith(context.Background(), mgr, rec, map[string]any{"data": 42}))
	assert.Equal(t, 42, got)
	assert.Equal(t, []int{record.MissingArtifact}, rec.StageInputs[0])

	_, err := mgr.MapRecords().BuildTrees()
	assert.NoError(t, err)
}

func TestApply_RejectsEmptyCacherList(t *testing.T) {
	mgr := newManager(t)
	rec := mgr.NewRecord(newTrainParams("test", false))

	s := &Stage{Name: "bad", Outputs: []string{"out"}, Cachers: []cache.Cacher{}}
	err := s.Apply(context.Background(), mgr, rec)
	assert.ErrorIs(t, err, cache.ErrEmptyCachers)
}

func TestApply_RejectsCacherCountMismatch(t *testing.T) {
	mgr := newManager(t)
	rec := mgr.NewRecord(newTrainParams("test", false))

	s := &Stage{
		Name:    "bad",
		Outputs: []string{"a", "b"},
		Cachers: []cache.Cacher{cache.NewJSONCacher()},
	}
	err := s.Apply(context.Background(), mgr, rec)
	assert.ErrorIs(t, err, cache.ErrCachersMismatch)
}

func TestApply_OutputCountMismatchFails(t *testing.T) {
	mgr := newManager(t)
	rec := mgr.NewRecord(newTrainParams("test", false))

	s := &Stage{
		Name:    "short",
		Outputs: []string{"a", "b"},
		Run: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
			return []any{1}, nil
		},
	}
	err := s.Apply(context.Background(), mgr, rec)
	var countErr *OutputCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, 2, countErr.Declared)
	assert.Equal(t, 1, countErr.Returned)
}

func TestApply_ChainedStagesShareState(t *testing.T) {
	mgr := newManager(t)
	rec := mgr.NewRecord(newTrainParams("test", false))
	ctx := context.Background()

	first := &Stage{
		Name:    "produce",
		Outputs: []string{"data"},
		Run: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
			return []any{"payload"}, nil
		},
	}
	var got any
	second := &Stage{
		Name:   "consume",
		Inputs: []string{"data"},
		Run: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
			got = inputs["data"]
			return nil, nil
		},
	}
	require.NoError(t, first.Apply(ctx, mgr, rec))
	require.NoError(t, second.Apply(ctx, mgr, rec))
	assert.Equal(t, "payload", got)
	assert.Equal(t, []int{0}, rec.StageInputs[1], "consumer links to the producer's artifact")
}
