package dag

import (
	"fmt"

	"github.com/ORNL/curifactory-go/internal/record"
)

// DAG holds the traced run the planner works over: the record list, the
// artifact table, and the per-leaf dependency trees once built.
type DAG struct {
	Records   []*record.Record
	Artifacts *record.ArtifactTable

	// missingTolerated marks stage invocations whose missing inputs were
	// either suppressed by the stage or supplied as call-time overrides at
	// trace time. A MissingArtifact entry for any other pair is an error.
	missingTolerated map[StagePair]bool
}

// New wraps a traced run for planning.
func New(records []*record.Record, artifacts *record.ArtifactTable) *DAG {
	return &DAG{
		Records:          records,
		Artifacts:        artifacts,
		missingTolerated: make(map[StagePair]bool),
	}
}

// TolerateMissing marks a stage invocation whose missing inputs are
// legitimate (suppressed or overridden). Called by the trace pass.
func (d *DAG) TolerateMissing(pair StagePair) {
	d.missingTolerated[pair] = true
}

// RecordIndex returns the position of rec in the run's record list.
func (d *DAG) RecordIndex(rec *record.Record) (int, error) {
	for i, r := range d.Records {
		if r == rec {
			return i, nil
		}
	}
	return -1, fmt.Errorf("record %s is not part of this run", rec.Name())
}

// ChildRecords returns every record for which rec appears in InputRecords,
// i.e. records created by copying rec or aggregating over it.
func (d *DAG) ChildRecords(rec *record.Record) []*record.Record {
	var children []*record.Record
	for _, other := range d.Records {
		for _, input := range other.InputRecords {
			if input == rec {
				children = append(children, other)
				break
			}
		}
	}
	return children
}

// IsLeaf reports whether the named stage of rec is a leaf: it has no
// outputs, or none of its outputs are consumed anywhere downstream.
func (d *DAG) IsLeaf(rec *record.Record, stageName string) (bool, error) {
	stageIndex, err := rec.StageIndex(stageName)
	if err != nil {
		return false, err
	}

	outputs := rec.StageOutputs[stageIndex]
	if len(outputs) == 0 {
		return true, nil
	}

	for _, outputIndex := range outputs {
		artifact, err := d.Artifacts.Get(outputIndex)
		if err != nil {
			return false, err
		}
		used, err := d.isOutputUsedAnywhere(rec, stageIndex+1, artifact.Name)
		if err != nil {
			return false, err
		}
		if used {
			return false, nil
		}
	}
	return true, nil
}

// isOutputUsedAnywhere checks whether the named output is consumed as an
// input by any stage of rec from searchStart on, or by any stage of any
// descendant record. An aggregate child counts as a consumer outright: its
// stages receive the whole upstream state, so any output might be read.
func (d *DAG) isOutputUsedAnywhere(rec *record.Record, searchStart int, output string) (bool, error) {
	for i := searchStart; i < len(rec.Stages); i++ {
		for _, inputIndex := range rec.StageInputs[i] {
			if inputIndex == record.MissingArtifact {
				continue
			}
			artifact, err := d.Artifacts.Get(inputIndex)
			if err != nil {
				return false, err
			}
			if artifact.Name == output {
				return true, nil
			}
		}
	}

	for _, child := range d.ChildRecords(rec) {
		used, err := d.isOutputUsedAnywhere(child, 0, output)
		if err != nil {
			return false, err
		}
		if used {
			return true, nil
		}
		if child.IsAggregate {
			return true, nil
		}
	}
	return false, nil
}

// FindLeaves returns every leaf (record, stage) pair, in record then stage
// order.
func (d *DAG) FindLeaves() ([]StagePair, error) {
	var leaves []StagePair
	for index, rec := range d.Records {
		for _, stageName := range rec.Stages {
			leaf, err := d.IsLeaf(rec, stageName)
			if err != nil {
				return nil, err
			}
			if leaf {
				leaves = append(leaves, StagePair{RecordIndex: index, Stage: stageName})
			}
		}
	}
	return leaves, nil
}

// BuildTrees builds one dependency tree per leaf by walking backward from
// each leaf through the artifact table.
func (d *DAG) BuildTrees() ([]*Node, error) {
	leaves, err := d.FindLeaves()
	if err != nil {
		return nil, err
	}
	trees := make([]*Node, 0, len(leaves))
	for _, leaf := range leaves {
		tree, err := d.buildNode(leaf, nil, nil)
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
	}
	return trees, nil
}

// buildNode constructs the tree node for pair and recurses into the
// producers of its inputs. path is the chain of pairs from the leaf down to
// (and excluding) this node; revisiting a pair on the path means the
// artifact graph has a cycle.
func (d *DAG) buildNode(pair StagePair, parent *Node, path []StagePair) (*Node, error) {
	for _, ancestor := range path {
		if ancestor == pair {
			return nil, &CycleError{Pair: pair, Path: append(path, pair)}
		}
	}

	rec := d.Records[pair.RecordIndex]
	stageIndex, err := rec.StageIndex(pair.Stage)
	if err != nil {
		return nil, err
	}

	node := &Node{
		RecordIndex: pair.RecordIndex,
		Record:      rec,
		Stage:       pair.Stage,
		parent:      parent,
	}
	path = append(path, pair)

	for _, inputIndex := range rec.StageInputs[stageIndex] {
		if inputIndex == record.MissingArtifact {
			// a tolerated missing input terminates the walk here
			if d.missingTolerated[pair] {
				continue
			}
			return nil, &UnresolvedInputError{Pair: pair}
		}
		artifact, err := d.Artifacts.Get(inputIndex)
		if err != nil {
			return nil, err
		}
		producer := StagePair{RecordIndex: artifact.RecordIndex, Stage: artifact.StageName}
		dep, err := d.buildNode(producer, node, path)
		if err != nil {
			return nil, err
		}
		node.Dependencies = append(node.Dependencies, dep)
	}
	return node, nil
}
