package params

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trainParams struct {
	Params
	LearningRate float64
	Epochs       int
	Seed         *int
}

// declared with the fields in the opposite order to trainParams
type trainParamsReordered struct {
	Params
	Seed         *int
	Epochs       int
	LearningRate float64
}

func TestHash_StableAcrossCalls(t *testing.T) {
	p := &trainParams{LearningRate: 0.01, Epochs: 5}
	p.Name = "train"

	first, err := Hash(p)
	require.NoError(t, err)
	second, err := Hash(p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestHash_OrderIndependent(t *testing.T) {
	a := &trainParams{LearningRate: 0.01, Epochs: 5}
	b := &trainParamsReordered{LearningRate: 0.01, Epochs: 5}

	hashA, err := Hash(a)
	require.NoError(t, err)
	hashB, err := Hash(b)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB,
		"field declaration order must not affect the hash")
}

func TestHash_CachedUntilCleared(t *testing.T) {
	p := &trainParams{Epochs: 5}
	original, err := Hash(p)
	require.NoError(t, err)

	// mutation after hashing must not silently change the stored hash
	p.Epochs = 50
	unchanged, err := Hash(p)
	require.NoError(t, err)
	assert.Equal(t, original, unchanged)

	p.ClearHash()
	recomputed, err := Hash(p)
	require.NoError(t, err)
	assert.NotEqual(t, original, recomputed)
}

func TestHash_NilFieldsSkipped(t *testing.T) {
	// a set with a nil optional field hashes identically to one declared
	// before the field existed
	withoutSeed := &trainParams{LearningRate: 0.01, Epochs: 5}
	seed := 42
	withSeed := &trainParams{LearningRate: 0.01, Epochs: 5, Seed: &seed}

	base, err := Hash(withoutSeed)
	require.NoError(t, err)
	seeded, err := Hash(withSeed)
	require.NoError(t, err)

	assert.NotEqual(t, base, seeded)

	reps, err := Representations(withoutSeed)
	require.NoError(t, err)
	assert.True(t, reps["Seed"].Skipped)
	assert.Equal(t, StrategySkippedNil, reps["Seed"].Strategy)
}

func TestHash_BaseFieldsNeverContribute(t *testing.T) {
	a := &trainParams{Epochs: 5}
	a.Name = "one"
	a.Overwrite = true

	b := &trainParams{Epochs: 5}
	b.Name = "two"

	hashA, err := Hash(a)
	require.NoError(t, err)
	hashB, err := Hash(b)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB,
		"Name and Overwrite are operational, not identity")
}

type customRepParams struct {
	Params
	Model   string
	Workers int
}

func (c *customRepParams) HashRepresentations() map[string]HashFunc {
	return map[string]HashFunc{
		"Model": func(set ParamSet, value any) (string, error) {
			return strings.ToLower(value.(string)), nil
		},
		"Workers": nil, // operational, excluded
	}
}

func TestHash_CustomRepresentations(t *testing.T) {
	a := &customRepParams{Model: "ResNet", Workers: 4}
	b := &customRepParams{Model: "resnet", Workers: 32}

	hashA, err := Hash(a)
	require.NoError(t, err)
	hashB, err := Hash(b)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB,
		"custom function normalizes Model, Workers is excluded")

	reps, err := Representations(a)
	require.NoError(t, err)
	assert.Equal(t, StrategyCustomFunc, reps["Model"].Strategy)
	assert.Equal(t, "resnet", reps["Model"].Value)
	assert.True(t, reps["Workers"].Skipped)
}

type nestedParams struct {
	Params
	Common *sharedParams
	Extra  int
}

type sharedParams struct {
	Threshold float64
	Label     string
}

func TestHash_RecursesIntoSubSets(t *testing.T) {
	p := &nestedParams{Common: &sharedParams{Threshold: 0.5, Label: "x"}, Extra: 1}

	reps, err := Representations(p)
	require.NoError(t, err)
	require.Equal(t, StrategySubSet, reps["Common"].Strategy)
	assert.Contains(t, reps["Common"].Sub, "Threshold")
	assert.Contains(t, reps["Common"].Sub, "Label")
}

func namedActivation() float64 { return 0 }

type funcParams struct {
	Params
	Activation func() float64
}

func TestHash_FunctionsHashByQualifiedName(t *testing.T) {
	p := &funcParams{Activation: namedActivation}

	reps, err := Representations(p)
	require.NoError(t, err)
	require.Equal(t, StrategyFuncName, reps["Activation"].Strategy)
	assert.Contains(t, reps["Activation"].Value, "namedActivation")
}

func TestHash_SetHashPinsIdentity(t *testing.T) {
	p := &trainParams{Epochs: 5}
	p.SetHash("abc123")

	h, err := Hash(p)
	require.NoError(t, err)
	assert.Equal(t, "abc123", h)
}

func TestMapSet_HashAndExclusion(t *testing.T) {
	a := &MapSet{
		Values:   map[string]any{"lr": 0.01, "epochs": 5, "gpus": 2},
		Excluded: []string{"gpus"},
	}
	b := &MapSet{
		Values:   map[string]any{"lr": 0.01, "epochs": 5, "gpus": 8},
		Excluded: []string{"gpus"},
	}

	hashA, err := Hash(a)
	require.NoError(t, err)
	hashB, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)
}

func TestComboHash_InputOrderIndependent(t *testing.T) {
	one := ComboHash("active", []string{"aaa", "bbb", "ccc"})
	two := ComboHash("active", []string{"ccc", "aaa", "bbb"})
	assert.Equal(t, one, two)
}

func TestComboHash_ActiveRecordMatters(t *testing.T) {
	one := ComboHash("active1", []string{"aaa", "bbb"})
	two := ComboHash("active2", []string{"aaa", "bbb"})
	assert.NotEqual(t, one, two)
}

func TestComboHash_ActivePositionNotSorted(t *testing.T) {
	// the active hash stays first even when it would sort after the inputs
	one := ComboHash("zzz", []string{"aaa"})
	two := ComboHash("aaa", []string{"zzz"})
	assert.NotEqual(t, one, two)
}

func TestRegistryEntry(t *testing.T) {
	p := &customRepParams{Model: "ResNet", Workers: 4}
	p.Name = "baseline"

	entry, err := RegistryEntry(p)
	require.NoError(t, err)

	assert.Equal(t, "baseline", entry["name"])
	assert.Equal(t, "resnet", entry["Model"])
	ignored, ok := entry["IGNORED_PARAMS"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, ignored, "Workers")
}
