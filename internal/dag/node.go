package dag

import (
	"fmt"
	"strings"

	"github.com/ORNL/curifactory-go/internal/record"
)

// StagePair identifies one stage invocation: the record's index in the run
// plus the stage name.
type StagePair struct {
	RecordIndex int
	Stage       string
}

func (p StagePair) String() string {
	return fmt.Sprintf("(%d, %s)", p.RecordIndex, p.Stage)
}

// Node is one stage invocation in a dependency tree. Dependencies are the
// stages whose outputs feed this stage's inputs. The same (record, stage)
// pair may appear as a node in more than one tree when its output feeds
// multiple downstream stages.
type Node struct {
	RecordIndex int
	Record      *record.Record
	Stage       string

	// Dependencies are the producing stages of this stage's inputs.
	Dependencies []*Node

	// parent is a non-owning back-reference, used only for debug rendering.
	parent *Node
}

// Pair returns this node's (record, stage) identity.
func (n *Node) Pair() StagePair {
	return StagePair{RecordIndex: n.RecordIndex, Stage: n.Stage}
}

// DebugString renders the subtree rooted at this node, one line per node,
// indented by depth.
func (n *Node) DebugString() string {
	var b strings.Builder
	n.writeDebug(&b, 0)
	return b.String()
}

func (n *Node) writeDebug(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Pair().String())
	b.WriteByte('\n')
	for _, dep := range n.Dependencies {
		dep.writeDebug(b, depth+1)
	}
}

// Root walks parent references to the tree's leaf-rooted top. Debugging
// helper only; parent links carry no ownership.
func (n *Node) Root() *Node {
	root := n
	for root.parent != nil {
		root = root.parent
	}
	return root
}
