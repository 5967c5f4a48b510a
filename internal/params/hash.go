package params

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"runtime"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Representation strategies, recorded per field so debugging output and the
// params registry can show how each value contributed to the hash.
const (
	StrategySkippedNil      = "skipped: value is nil"
	StrategySkippedExcluded = "skipped: excluded by hash representations"
	StrategyCustomFunc      = "custom hash function"
	StrategySubSet          = "recursive sub-set"
	StrategyFuncName        = "function qualified name"
	StrategyDefault         = "default representation"
)

// FieldRep is the resolved hash contribution of a single field.
//
// Resolution order for a field:
//  1. An explicit entry in the set's HashRepresentations: a nil entry skips
//     the field, a non-nil entry supplies the representation.
//  2. A nil value skips the field. New optional fields default to nil and so
//     never invalidate hashes computed before the field existed.
//  3. A value that is itself a parameter sub-set (a struct with exported
//     fields, or a FieldProvider) is resolved recursively.
//  4. A function value contributes its qualified name rather than its
//     address, which is unstable across processes.
//  5. Anything else contributes its default formatted value.
type FieldRep struct {
	Strategy string
	Value    string
	Sub      map[string]FieldRep
	Skipped  bool
}

// Hash returns the content hash for the set, computing and storing it on
// first use. Subsequent calls return the stored hash without recomputation,
// even if fields changed in between; call ClearHash to force a recompute.
func Hash(set ParamSet) (string, error) {
	if h := set.StoredHash(); h != "" {
		return h, nil
	}
	reps, err := Representations(set)
	if err != nil {
		return "", err
	}
	h := sumReps(reps).Text(16)
	set.storeHash(h)
	return h, nil
}

// MustHash is like Hash but panics on error. Use only in tests or when the
// set is known to be hashable.
func MustHash(set ParamSet) string {
	h, err := Hash(set)
	if err != nil {
		panic(err)
	}
	return h
}

// Representations resolves the hash representation of every field in the
// set, including skipped fields (with the reason they were skipped). This is
// what the params registry stores and what the hash command prints.
func Representations(set ParamSet) (map[string]FieldRep, error) {
	var custom map[string]HashFunc
	if hr, ok := set.(HashRepresenter); ok {
		custom = hr.HashRepresentations()
	}
	fields, err := hashableFields(set)
	if err != nil {
		return nil, err
	}
	reps := make(map[string]FieldRep, len(fields))
	for name, value := range fields {
		rep, err := resolveField(set, name, value, custom)
		if err != nil {
			return nil, fmt.Errorf("params %q: field %q: %w", set.ParamName(), name, err)
		}
		reps[name] = rep
	}
	return reps, nil
}

// hashableFields collects the candidate fields of a set, either from a
// FieldProvider or by reflecting over the concrete struct's exported fields.
// The embedded Params base is never a candidate.
func hashableFields(set ParamSet) (map[string]any, error) {
	if fp, ok := set.(FieldProvider); ok {
		return fp.HashFields(), nil
	}

	v := reflect.ValueOf(set)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("nil parameter set")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("parameter set must be a struct, got %s", v.Kind())
	}
	return structFields(v), nil
}

func structFields(v reflect.Value) map[string]any {
	t := v.Type()
	fields := make(map[string]any)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type == reflect.TypeOf(Params{}) {
			continue
		}
		fields[f.Name] = v.Field(i).Interface()
	}
	return fields
}

func resolveField(set ParamSet, name string, value any, custom map[string]HashFunc) (FieldRep, error) {
	// 1. explicit per-field override
	if fn, ok := custom[name]; ok {
		if fn == nil {
			return FieldRep{Strategy: StrategySkippedExcluded, Skipped: true}, nil
		}
		rep, err := fn(set, value)
		if err != nil {
			return FieldRep{}, err
		}
		return FieldRep{Strategy: StrategyCustomFunc, Value: rep}, nil
	}

	// 2. nil values never contribute
	if isNilValue(value) {
		return FieldRep{Strategy: StrategySkippedNil, Skipped: true}, nil
	}

	v := reflect.ValueOf(value)

	// 3. recurse into sub-sets
	if sub, ok := subSetFields(v); ok {
		subReps := make(map[string]FieldRep, len(sub))
		for subName, subValue := range sub {
			rep, err := resolveField(set, subName, subValue, nil)
			if err != nil {
				return FieldRep{}, fmt.Errorf("sub-set field %q: %w", subName, err)
			}
			subReps[subName] = rep
		}
		return FieldRep{Strategy: StrategySubSet, Sub: subReps}, nil
	}

	// 4. functions hash by qualified name, not address
	if v.Kind() == reflect.Func {
		fn := runtime.FuncForPC(v.Pointer())
		if fn == nil {
			return FieldRep{}, fmt.Errorf("cannot resolve function name")
		}
		return FieldRep{Strategy: StrategyFuncName, Value: fn.Name()}, nil
	}

	// 5. default representation; deref so a *int contributes its value, not
	// an address
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return FieldRep{Strategy: StrategyDefault, Value: fmt.Sprintf("%v", v.Interface())}, nil
}

// subSetFields reports whether the value should be treated as a recursive
// parameter sub-set and, if so, returns its fields. A FieldProvider always
// recurses. A plain struct (or pointer to one) recurses when it has exported
// fields and no Stringer; types like time.Time that format themselves are
// left to the default representation.
func subSetFields(v reflect.Value) (map[string]any, bool) {
	if fp, ok := v.Interface().(FieldProvider); ok {
		return fp.HashFields(), true
	}
	if _, ok := v.Interface().(fmt.Stringer); ok {
		return nil, false
	}
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	fields := structFields(v)
	if len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

func isNilValue(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// sumReps folds field representations into one unsigned integer. Each
// contributing field is digested independently and the digests are added, so
// the total is independent of map iteration order. The field name is part of
// the digested text, otherwise two fields holding each other's values would
// collide.
func sumReps(reps map[string]FieldRep) *big.Int {
	total := new(big.Int)
	for name, rep := range reps {
		if rep.Skipped {
			continue
		}
		if rep.Sub != nil {
			total.Add(total, sumReps(rep.Sub))
			continue
		}
		digest := sha256.Sum256([]byte(norm.NFC.String(name + "=" + rep.Value)))
		total.Add(total, new(big.Int).SetBytes(digest[:]))
	}
	return total
}

// NoneHash is the literal marker contributed by a record with no parameter
// set when hashes are combined for an aggregate context.
const NoneHash = "None"

// ComboHash derives the cache identity for an aggregate context from the
// hashes of its input records. Input hashes are sorted so the identity does
// not depend on the order dependency records were supplied; the active
// record's own hash stays first so the identity still changes if the
// aggregate's own record changes.
func ComboHash(activeHash string, inputHashes []string) string {
	sorted := make([]string, len(inputHashes))
	copy(sorted, inputHashes)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(activeHash))
	for _, input := range sorted {
		h.Write([]byte{0x00})
		h.Write([]byte(input))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RegistryEntry renders the set's hash representations as a JSON-encodable
// map for the params registry: hashed fields map to their representation,
// skipped fields are collected under "IGNORED_PARAMS".
func RegistryEntry(set ParamSet) (map[string]any, error) {
	reps, err := Representations(set)
	if err != nil {
		return nil, err
	}
	entry := repsToEntry(reps)
	entry["name"] = set.ParamName()
	return entry, nil
}

func repsToEntry(reps map[string]FieldRep) map[string]any {
	entry := make(map[string]any)
	ignored := make(map[string]any)
	for name, rep := range reps {
		switch {
		case rep.Skipped:
			ignored[name] = rep.Strategy
		case rep.Sub != nil:
			entry[name] = repsToEntry(rep.Sub)
		default:
			entry[name] = rep.Value
		}
	}
	if len(ignored) > 0 {
		entry["IGNORED_PARAMS"] = ignored
	}
	return entry
}

