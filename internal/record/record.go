package record

import (
	"fmt"

	"github.com/ORNL/curifactory-go/internal/params"
)

// Record is the execution trace and artifact bindings for one parameter
// context.
type Record struct {
	// Params is the parameter set bound to this record. Nil means an untyped
	// or manual context (for aggregate markers, IsAggregate distinguishes).
	Params params.ParamSet

	// Stages lists the stage names this record has been passed through, in
	// invocation order.
	Stages []string

	// StageInputs holds, per stage, the artifact table indices resolved for
	// that stage's declared inputs. MissingArtifact (-1) marks an input that
	// had no producer at trace time.
	StageInputs [][]int

	// StageOutputs holds, per stage, the artifact table indices registered
	// for that stage's declared outputs.
	StageOutputs [][]int

	// InputRecords lists records whose state feeds this one, populated by
	// MakeCopy and by aggregate stages.
	InputRecords []*Record

	// IsAggregate marks a record created as an aggregation context over
	// InputRecords.
	IsAggregate bool

	// ComboHash is the combined cache identity for an aggregate record; set
	// only when IsAggregate is true.
	ComboHash string

	// State maps artifact names to their in-memory values for this record.
	// During the trace pass values are placeholders; only the real pass
	// stores computed values.
	State map[string]any

	// artifactRefs mirrors State, mapping each bound artifact name to its
	// artifact table index.
	artifactRefs map[string]int
}

// New returns a record bound to the given parameter set (nil for a manual
// context). Callers normally go through the manager, which also appends the
// record to the run.
func New(set params.ParamSet) *Record {
	return &Record{
		Params:       set,
		State:        make(map[string]any),
		artifactRefs: make(map[string]int),
	}
}

// BeginStage appends one stage invocation with empty input/output lists and
// returns its stage index. The three parallel arrays stay in lockstep.
func (r *Record) BeginStage(name string) int {
	r.Stages = append(r.Stages, name)
	r.StageInputs = append(r.StageInputs, []int{})
	r.StageOutputs = append(r.StageOutputs, []int{})
	return len(r.Stages) - 1
}

// AddStageInput records one resolved input artifact index (or
// MissingArtifact) for the most recent stage.
func (r *Record) AddStageInput(artifactIndex int) {
	last := len(r.StageInputs) - 1
	r.StageInputs[last] = append(r.StageInputs[last], artifactIndex)
}

// AddStageOutput records one registered output artifact index for the most
// recent stage.
func (r *Record) AddStageOutput(artifactIndex int) {
	last := len(r.StageOutputs) - 1
	r.StageOutputs[last] = append(r.StageOutputs[last], artifactIndex)
}

// Bind associates an artifact name with its table index and stores the
// value in state.
func (r *Record) Bind(name string, artifactIndex int, value any) {
	r.artifactRefs[name] = artifactIndex
	r.State[name] = value
}

// ArtifactRef returns the artifact table index bound to name, or
// (MissingArtifact, false) when the name has never been bound.
func (r *Record) ArtifactRef(name string) (int, bool) {
	index, ok := r.artifactRefs[name]
	if !ok {
		return MissingArtifact, false
	}
	return index, true
}

// StageIndex returns the position of the named stage in this record's trace.
func (r *Record) StageIndex(name string) (int, error) {
	for i, s := range r.Stages {
		if s == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("stage %q not found in record %s", name, r.Name())
}

// MakeCopy returns a new record carrying this record's state, bound to the
// given parameter set (nil keeps the current set). The source record is
// registered in the copy's InputRecords so dependency walks can reach back
// through it. State values are shared, not deep-copied; stages must treat
// inputs as read-only.
func (r *Record) MakeCopy(set params.ParamSet) *Record {
	if set == nil {
		set = r.Params
	}
	copied := New(set)
	copied.InputRecords = []*Record{r}
	for name, value := range r.State {
		copied.State[name] = value
	}
	for name, index := range r.artifactRefs {
		copied.artifactRefs[name] = index
	}
	return copied
}

// Hash returns the cache identity for this record: the combo hash for
// aggregates, the parameter set hash otherwise, or the None marker for a
// record with no parameter set.
func (r *Record) Hash() (string, error) {
	if r.IsAggregate && r.ComboHash != "" {
		return r.ComboHash, nil
	}
	if r.Params == nil {
		return params.NoneHash, nil
	}
	return params.Hash(r.Params)
}

// Name returns a human-readable reference for logs and the diagnostic dump.
func (r *Record) Name() string {
	switch {
	case r.Params != nil:
		return r.Params.ParamName()
	case r.IsAggregate:
		return "(aggregate)"
	default:
		return "(manual)"
	}
}

// CheckIntegrity verifies the parallel-array invariant.
func (r *Record) CheckIntegrity() error {
	if len(r.Stages) != len(r.StageInputs) || len(r.Stages) != len(r.StageOutputs) {
		return fmt.Errorf("record %s: stage arrays out of lockstep: %d stages, %d input lists, %d output lists",
			r.Name(), len(r.Stages), len(r.StageInputs), len(r.StageOutputs))
	}
	return nil
}
