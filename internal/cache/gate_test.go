package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ORNL/curifactory-go/internal/params"
	"github.com/ORNL/curifactory-go/internal/record"
)

type gateParams struct {
	params.Params
	Value int
}

func newGateParams(name string, overwrite bool) *gateParams {
	p := &gateParams{Value: 1}
	p.Name = name
	p.Overwrite = overwrite
	return p
}

// savedCacher returns a JSON cacher with a real entry on disk.
func savedCacher(t *testing.T, name string) Cacher {
	t.Helper()
	c := NewJSONCacher()
	c.SetPath(filepath.Join(t.TempDir(), name))
	require.NoError(t, c.Save(map[string]any{"ok": true}))
	require.True(t, c.Check())
	return c
}

func emptyCacher(t *testing.T, name string) Cacher {
	t.Helper()
	c := NewJSONCacher()
	c.SetPath(filepath.Join(t.TempDir(), name))
	return c
}

func TestValidateCachers(t *testing.T) {
	outputs := []string{"a", "b"}

	assert.NoError(t, ValidateCachers(outputs, nil))
	assert.ErrorIs(t, ValidateCachers(outputs, []Cacher{}), ErrEmptyCachers)
	assert.ErrorIs(t,
		ValidateCachers(outputs, []Cacher{NewJSONCacher()}),
		ErrCachersMismatch)
	assert.NoError(t, ValidateCachers(outputs, []Cacher{NewJSONCacher(), NewJSONCacher()}))
}

func TestStageCached_AllEntriesExist(t *testing.T) {
	rec := record.New(newGateParams("test", false))
	cachers := []Cacher{savedCacher(t, "a"), savedCacher(t, "b")}

	assert.True(t, StageCached(rec, cachers))
}

func TestStageCached_AnyMissingEntryInvalidates(t *testing.T) {
	rec := record.New(newGateParams("test", false))
	cachers := []Cacher{savedCacher(t, "a"), emptyCacher(t, "b")}

	assert.False(t, StageCached(rec, cachers))
}

func TestStageCached_NoCachersNeverCached(t *testing.T) {
	rec := record.New(newGateParams("test", false))
	assert.False(t, StageCached(rec, nil))
}

func TestStageCached_ParamOverwriteWins(t *testing.T) {
	rec := record.New(newGateParams("test", true))
	cachers := []Cacher{savedCacher(t, "a")}

	assert.False(t, StageCached(rec, cachers),
		"existing entry must be ignored when the set requests overwrite")
}

func TestOverwriteRequested_AggregateInspectsInputRecords(t *testing.T) {
	// aggregate record with no parameter set of its own, aggregating one
	// overwriting and one clean record
	r0 := record.New(newGateParams("r0", true))
	r1 := record.New(newGateParams("r1", false))

	agg := record.New(nil)
	agg.IsAggregate = true
	agg.InputRecords = []*record.Record{r0, r1}

	assert.True(t, OverwriteRequested(agg))

	cachers := []Cacher{savedCacher(t, "combined")}
	assert.False(t, StageCached(agg, cachers),
		"aggregate must not serve cache while a contributing branch is being recomputed")
}

func TestOverwriteRequested_AggregateCleanInputsUseCache(t *testing.T) {
	r0 := record.New(newGateParams("r0", false))
	r1 := record.New(newGateParams("r1", false))

	agg := record.New(nil)
	agg.IsAggregate = true
	agg.InputRecords = []*record.Record{r0, r1}

	assert.False(t, OverwriteRequested(agg))
	assert.True(t, StageCached(agg, []Cacher{savedCacher(t, "combined")}))
}

func TestOverwriteRequested_ManualRecordNeverOverwrites(t *testing.T) {
	manual := record.New(nil)
	assert.False(t, OverwriteRequested(manual))
}
