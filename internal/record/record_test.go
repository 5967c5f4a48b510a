package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ORNL/curifactory-go/internal/params"
)

func TestArtifactTable_AppendOnlyIndexing(t *testing.T) {
	table := NewArtifactTable()

	i0 := table.Add(Artifact{RecordIndex: 0, StageName: "load", Name: "data"})
	i1 := table.Add(Artifact{RecordIndex: 0, StageName: "train", Name: "model"})

	assert.Equal(t, 0, i0)
	assert.Equal(t, 1, i1)
	assert.Equal(t, 2, table.Len())

	a, err := table.Get(i1)
	require.NoError(t, err)
	assert.Equal(t, "model", a.Name)

	_, err = table.Get(5)
	assert.Error(t, err)
	_, err = table.Get(-1)
	assert.Error(t, err, "the missing-input marker must never resolve")
}

func TestArtifactTable_SetCached(t *testing.T) {
	table := NewArtifactTable()
	i := table.Add(Artifact{Name: "data"})

	require.NoError(t, table.SetCached(i, true, "/cache/exp_abc_load_data.json"))
	a := table.MustGet(i)
	assert.True(t, a.Cached)
	assert.Equal(t, "/cache/exp_abc_load_data.json", a.Path)

	assert.Error(t, table.SetCached(99, true, ""))
}

func TestRecord_StageArraysStayInLockstep(t *testing.T) {
	r := New(nil)

	r.BeginStage("load")
	r.AddStageOutput(0)
	r.BeginStage("train")
	r.AddStageInput(0)
	r.AddStageOutput(1)

	require.NoError(t, r.CheckIntegrity())
	assert.Equal(t, []string{"load", "train"}, r.Stages)
	assert.Equal(t, [][]int{{}, {0}}, r.StageInputs)
	assert.Equal(t, [][]int{{0}, {1}}, r.StageOutputs)
}

func TestRecord_BindAndResolve(t *testing.T) {
	r := New(nil)
	r.BeginStage("load")
	r.Bind("data", 0, "value")

	index, ok := r.ArtifactRef("data")
	assert.True(t, ok)
	assert.Equal(t, 0, index)

	index, ok = r.ArtifactRef("missing")
	assert.False(t, ok)
	assert.Equal(t, MissingArtifact, index)
}

type testParams struct {
	params.Params
	Value int
}

func TestRecord_MakeCopyCarriesStateAndLineage(t *testing.T) {
	base := &testParams{Value: 1}
	base.Name = "base"
	r := New(base)
	r.BeginStage("load")
	r.Bind("data", 0, "value")

	other := &testParams{Value: 2}
	other.Name = "other"
	copied := r.MakeCopy(other)

	require.Len(t, copied.InputRecords, 1)
	assert.Same(t, r, copied.InputRecords[0])
	assert.Equal(t, "value", copied.State["data"])
	index, ok := copied.ArtifactRef("data")
	assert.True(t, ok)
	assert.Equal(t, 0, index)

	// the copy starts a fresh trace
	assert.Empty(t, copied.Stages)
	assert.Equal(t, "other", copied.Params.ParamName())
}

func TestRecord_MakeCopyKeepsParamsWhenNil(t *testing.T) {
	base := &testParams{Value: 1}
	base.Name = "base"
	r := New(base)

	copied := r.MakeCopy(nil)
	assert.Equal(t, "base", copied.Params.ParamName())
}

func TestRecord_Hash(t *testing.T) {
	set := &testParams{Value: 7}
	r := New(set)
	h, err := r.Hash()
	require.NoError(t, err)
	assert.Equal(t, params.MustHash(set), h)

	manual := New(nil)
	h, err = manual.Hash()
	require.NoError(t, err)
	assert.Equal(t, params.NoneHash, h)

	agg := New(nil)
	agg.IsAggregate = true
	agg.ComboHash = "combo123"
	h, err = agg.Hash()
	require.NoError(t, err)
	assert.Equal(t, "combo123", h)
}

func TestRecord_Name(t *testing.T) {
	set := &testParams{}
	set.Name = "train-small"
	assert.Equal(t, "train-small", New(set).Name())

	agg := New(nil)
	agg.IsAggregate = true
	assert.Equal(t, "(aggregate)", agg.Name())

	assert.Equal(t, "(manual)", New(nil).Name())
}
