// Package record implements execution records and the run-wide artifact
// table.
//
// A Record is the ordered execution trace for one parameter context: the
// sequence of stages it has been passed through, with each stage's resolved
// input and output artifact references. A record is bound to a single
// parameter set, to no set at all (a manual context), or to an aggregate
// marker over a set of input records.
//
// ARENA + INDEX:
//
// Every artifact ever referenced in a run lives in one flat, append-only
// ArtifactTable owned by the run. Records and planner nodes refer to
// artifacts only by integer index, never by pointer. Records can reference
// each other through InputRecords (copies and aggregates), so holding
// artifact pointers across records would create ownership cycles; indices
// keep the table rebuildable and discardable independently of any record.
//
// INVARIANT: len(Stages) == len(StageInputs) == len(StageOutputs) at all
// times. Each stage invocation appends exactly one entry to all three.
package record
