package dag

import (
	"fmt"
	"strings"
)

// CycleError reports that the backward dependency walk revisited a stage
// already on the current path. The walk assumes a DAG; a cycle means an
// artifact transitively depends on its own producer.
type CycleError struct {
	// Pair is the stage invocation that closed the cycle.
	Pair StagePair

	// Path is the walk path from the leaf down to the repeated pair.
	Path []StagePair
}

func (e *CycleError) Error() string {
	steps := make([]string, len(e.Path))
	for i, p := range e.Path {
		steps[i] = p.String()
	}
	return fmt.Sprintf("dependency cycle involving %s: %s", e.Pair, strings.Join(steps, " -> "))
}

// UnresolvedInputError reports a stage input with no producing artifact
// found during tree construction, where the stage neither suppresses
// missing inputs nor received the value as a call-time override.
type UnresolvedInputError struct {
	Pair StagePair
}

func (e *UnresolvedInputError) Error() string {
	return fmt.Sprintf("stage %s has an unresolved input with no producing stage; "+
		"set SuppressMissingInputs on the stage or pass the value directly", e.Pair)
}
