package stage

import (
	"fmt"
	"strings"

	"github.com/ORNL/curifactory-go/internal/dag"
)

// MissingInputError reports input names with no producing artifact, for a
// stage that neither suppresses missing inputs nor received them as
// overrides.
type MissingInputError struct {
	Pair   dag.StagePair
	Record string
	Inputs []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("stage %q in record %s: no artifact produces input(s) %s",
		e.Pair.Stage, e.Record, strings.Join(e.Inputs, ", "))
}

// OutputCountError reports a stage body returning a different number of
// values than the stage declared.
type OutputCountError struct {
	Pair     dag.StagePair
	Declared int
	Returned int
}

func (e *OutputCountError) Error() string {
	return fmt.Sprintf("stage %q declared %d output(s) but returned %d",
		e.Pair.Stage, e.Declared, e.Returned)
}
