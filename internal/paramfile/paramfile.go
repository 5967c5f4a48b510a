// Package paramfile loads parameter sets from CUE files, so experiment
// configurations can be declared, constrained, and composed without
// recompiling. Each file exposes a top-level "sets" list:
//
//	sets: [
//		{
//			name: "baseline"
//			values: {learning_rate: 0.01, layers: 3}
//		},
//		{
//			name:    "wide"
//			exclude: ["notes"]
//			values: {learning_rate: 0.01, layers: 12, notes: "scratch"}
//		},
//	]
//
// Loaded sets are map-backed; their hash covers exactly the values block
// minus any excluded names.
package paramfile

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/ORNL/curifactory-go/internal/params"
)

// fileSet mirrors one entry of the "sets" list.
type fileSet struct {
	Name      string         `json:"name"`
	Overwrite bool           `json:"overwrite"`
	Exclude   []string       `json:"exclude"`
	Values    map[string]any `json:"values"`
}

// LoadFile parses one CUE parameter file and returns its sets in file
// order.
func LoadFile(path string) ([]params.ParamSet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameter file: %w", err)
	}

	cuectx := cuecontext.New()
	v := cuectx.CompileBytes(content, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %s", path, cueerrors.Details(err, nil))
	}
	return decodeSets(path, v)
}

func decodeSets(path string, v cue.Value) ([]params.ParamSet, error) {
	setsVal := v.LookupPath(cue.ParsePath("sets"))
	if !setsVal.Exists() {
		return nil, fmt.Errorf("%s: no top-level \"sets\" list", path)
	}

	iter, err := setsVal.List()
	if err != nil {
		return nil, fmt.Errorf("%s: \"sets\" is not a list: %w", path, err)
	}

	var sets []params.ParamSet
	seen := map[string]bool{}
	for iter.Next() {
		var entry fileSet
		if err := iter.Value().Decode(&entry); err != nil {
			return nil, fmt.Errorf("%s: decode set %d: %s", path, len(sets), cueerrors.Details(err, nil))
		}
		if entry.Name == "" {
			return nil, fmt.Errorf("%s: set %d has no name", path, len(sets))
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("%s: duplicate set name %q", path, entry.Name)
		}
		seen[entry.Name] = true

		set := &params.MapSet{Values: entry.Values, Excluded: entry.Exclude}
		set.Name = entry.Name
		set.Overwrite = entry.Overwrite
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("%s: \"sets\" list is empty", path)
	}
	return sets, nil
}
