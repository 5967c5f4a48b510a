// Package dag builds per-leaf dependency trees over a traced run and decides
// which stage invocations actually need to execute.
//
// The graph is discovered by running the pipeline in trace mode (stage bodies
// disabled), which populates the records and the artifact table. This package
// consumes that trace:
//
//  1. Leaf pass: a (record, stage) pair is a leaf iff the stage has no
//     outputs, or none of its outputs are consumed by a later stage in the
//     same record or by any stage in a descendant record (copies and
//     aggregates, checked recursively).
//  2. Tree pass: for every leaf, walk backward through input artifact
//     indices to the producing (record, stage) pairs, building an
//     ExecutionNode tree. The walk assumes a DAG; a cycle is detected and
//     reported rather than recursed into.
//  3. Planning: a depth-first walk over each leaf tree emits the ordered
//     execution list. A stage contributes nothing when all of its outputs
//     are cached and nothing upstream forces a recompute; otherwise it is
//     placed ahead of everything that consumes it.
//
// All planning inputs travel in a read-only PlanningContext value; the
// planner holds no ambient state. Cache state is a snapshot taken before
// planning, never a live re-check per visit.
//
// KNOWN LIMITATION: trace-based discovery cannot see branches conditioned on
// a stage's computed value, only on its presence. A pipeline that changes
// shape based on actual output values will be mapped incorrectly; such
// pipelines must opt out of graph-based planning.
package dag
