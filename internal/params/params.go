package params

// ParamSet is the contract every parameter set satisfies. Concrete sets embed
// Params, which provides the implementation; the unexported method keeps
// outside types from satisfying the interface without the embedded base.
type ParamSet interface {
	// ParamName returns the human-readable name of this set (not hashed).
	ParamName() string

	// OverwriteRequested reports whether this set asks for its cached
	// artifacts to be recomputed.
	OverwriteRequested() bool

	// StoredHash returns the cached hash string, or "" if the set has not
	// been hashed yet.
	StoredHash() string

	storeHash(string)
}

// Params is the base embedded by every concrete parameter set.
//
//	type TrainParams struct {
//		params.Params
//		LearningRate float64
//		Epochs       int
//	}
//
// Pass sets around as pointers (*TrainParams) so the cached hash sticks.
// None of the base fields contribute to the hash.
type Params struct {
	// Name identifies the set in logs, registries and run metadata.
	Name string

	// Overwrite requests recomputation of everything cached under this set.
	Overwrite bool

	hash string
}

func (p *Params) ParamName() string       { return p.Name }
func (p *Params) OverwriteRequested() bool { return p.Overwrite }
func (p *Params) StoredHash() string      { return p.hash }
func (p *Params) storeHash(h string)      { p.hash = h }

// SetHash stores an explicit hash, bypassing computation. Intended for
// reproducing a prior run under a manually pinned identity.
func (p *Params) SetHash(h string) { p.hash = h }

// ClearHash drops the cached hash so the next Hash call recomputes it.
func (p *Params) ClearHash() { p.hash = "" }

// HashFunc produces a custom hash representation for one field. The whole set
// is passed so a representation can depend on sibling fields.
type HashFunc func(set ParamSet, value any) (string, error)

// HashRepresenter lets a set override representation resolution per field.
// A nil HashFunc entry excludes the field from the hash entirely, which is
// the mechanism for "operational" parameters (worker counts, device ids)
// that must not alter artifact identity.
type HashRepresenter interface {
	HashRepresentations() map[string]HashFunc
}

// FieldProvider lets a set expose its hashable fields directly instead of
// being walked by reflection. Map-backed sets (e.g. sets loaded from CUE
// parameter files) implement this.
type FieldProvider interface {
	HashFields() map[string]any
}

// MapSet is a parameter set backed by a plain map, used for sets loaded from
// parameter files rather than declared as Go structs.
type MapSet struct {
	Params

	// Values holds the named parameter values.
	Values map[string]any

	// Excluded lists field names to leave out of the hash.
	Excluded []string
}

// HashFields implements FieldProvider.
func (m *MapSet) HashFields() map[string]any { return m.Values }

// HashRepresentations implements HashRepresenter, mapping each excluded field
// to a nil HashFunc.
func (m *MapSet) HashRepresentations() map[string]HashFunc {
	if len(m.Excluded) == 0 {
		return nil
	}
	reps := make(map[string]HashFunc, len(m.Excluded))
	for _, name := range m.Excluded {
		reps[name] = nil
	}
	return reps
}
