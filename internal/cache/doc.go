// Package cache defines the caching contract stages declare their outputs
// against, and the gate logic that decides whether a stage may serve its
// outputs from cache instead of executing.
//
// The planner only depends on the abstract contract: an existence check plus
// overwrite-policy resolution. Concrete storage formats are a separate
// concern; the JSON and file-reference cachers here are the minimal set
// needed to run real pipelines end to end.
//
// GATE RULE: a stage may short-circuit iff every declared output's cache
// entry exists AND no applicable overwrite is requested. For an aggregate
// record with no parameter set of its own, the overwrite check falls through
// to the input records: if any contributing record's parameter set requests
// overwrite, the aggregate is treated as not cached. Without this, an
// aggregate would silently serve a stale combined result after one of its
// branches was recomputed.
//
// Writes go through a temp file and rename, so a half-written entry from an
// aborted run never reads as cached.
package cache
