package dag

import (
	"log/slog"
	"slices"
)

// PlanningContext carries the read-only inputs to one planning pass. The
// planner itself holds no mutable run-wide flags; everything that can force
// recomputation travels in this value.
type PlanningContext struct {
	// OverwriteStages names stages requested for forced recompute.
	OverwriteStages map[string]bool

	// OverwriteAll forces every stage to recompute.
	OverwriteAll bool
}

// forces reports whether the context directly names this stage.
func (c PlanningContext) forces(stageName string) bool {
	return c.OverwriteAll || c.OverwriteStages[stageName]
}

// Plan builds the dependency trees and returns the ordered execution list:
// every (record, stage) pair that must actually run, producers before
// consumers, each pair at most once. Planning twice with unchanged cache
// state yields the same list; a fully cached graph with no overwrite yields
// an empty list.
func (d *DAG) Plan(pctx PlanningContext) ([]StagePair, error) {
	trees, err := d.BuildTrees()
	if err != nil {
		return nil, err
	}
	return d.DetermineExecutionList(trees, pctx), nil
}

// DetermineExecutionList walks each leaf tree in need-mode and returns the
// ordered execution list.
func (d *DAG) DetermineExecutionList(trees []*Node, pctx PlanningContext) []StagePair {
	list := []StagePair{}
	for _, tree := range trees {
		list = d.walkNeeded(tree, pctx, list)
	}
	slog.Debug("execution list determined", "stages", len(list))
	return list
}

// walkNeeded is the need-mode walk. A node contributes nothing when all its
// outputs are cached and no forced recompute applies anywhere upstream;
// otherwise its pair is placed ahead of everything that consumes it and all
// dependencies are visited in need-mode.
func (d *DAG) walkNeeded(n *Node, pctx PlanningContext, list []StagePair) []StagePair {
	if d.nodeCached(n) && !pctx.forces(n.Stage) {
		// cached: only a forced recompute upstream can still require this
		// stage to run
		forced := false
		for _, dep := range n.Dependencies {
			if d.seekForced(dep, pctx) {
				forced = true
				break
			}
		}
		if !forced {
			// subtree not needed
			return list
		}
	}

	list = placeAhead(list, n.Pair())
	for _, dep := range n.Dependencies {
		list = d.walkNeeded(dep, pctx, list)
	}
	return list
}

// seekForced is the overwrite-seek walk: it reports whether a forced
// recompute exists at or above this node, without scheduling anything
// itself. A stage counts as forced when the context names it, or when its
// outputs are not fully cached (it will recompute, so everything downstream
// of it sees changed inputs).
func (d *DAG) seekForced(n *Node, pctx PlanningContext) bool {
	if pctx.forces(n.Stage) {
		return true
	}
	if !d.nodeCached(n) {
		return true
	}
	for _, dep := range n.Dependencies {
		if d.seekForced(dep, pctx) {
			return true
		}
	}
	return false
}

// nodeCached reports the snapshot cache state for a node: at least one
// output, all of them cached. A stage with zero outputs has no artifact to
// validate against and is never cached.
func (d *DAG) nodeCached(n *Node) bool {
	stageIndex, err := n.Record.StageIndex(n.Stage)
	if err != nil {
		return false
	}
	outputs := n.Record.StageOutputs[stageIndex]
	if len(outputs) == 0 {
		return false
	}
	for _, outputIndex := range outputs {
		artifact, err := d.Artifacts.Get(outputIndex)
		if err != nil || !artifact.Cached {
			return false
		}
	}
	return true
}

// placeAhead inserts the pair at the front of the list, moving it there if
// already present. Dependencies are visited after their consumer is placed,
// so every producer ends up ahead of every consumer even when a pair is
// reached again through a different branch.
func placeAhead(list []StagePair, pair StagePair) []StagePair {
	if i := slices.Index(list, pair); i >= 0 {
		list = append(list[:i], list[i+1:]...)
	}
	return append([]StagePair{pair}, list...)
}
