package cache

import (
	"log/slog"

	"github.com/ORNL/curifactory-go/internal/record"
)

// OverwriteRequested resolves whether an overwrite applies to a stage owned
// by rec.
//
// A record with a parameter set answers from the set's own flag. A pure
// aggregate marker (no set of its own) has no meaningful flag, so the check
// falls through to every input record: any contributing set requesting
// overwrite taints the aggregate.
func OverwriteRequested(rec *record.Record) bool {
	if rec.Params != nil {
		return rec.Params.OverwriteRequested()
	}
	if rec.IsAggregate {
		for _, input := range rec.InputRecords {
			if input.Params != nil && input.Params.OverwriteRequested() {
				slog.Debug("aggregate input record requests overwrite",
					"record", rec.Name(), "input", input.Name())
				return true
			}
		}
	}
	return false
}

// StageCached is the gate decision for one stage: true iff the stage
// declared at least one cacher, every cacher's entry exists, and no
// applicable overwrite is requested. A stage without cachers can never serve
// from cache.
func StageCached(rec *record.Record, cachers []Cacher) bool {
	if len(cachers) == 0 {
		return false
	}
	if OverwriteRequested(rec) {
		return false
	}
	for _, c := range cachers {
		if !c.Check() {
			return false
		}
	}
	return true
}
