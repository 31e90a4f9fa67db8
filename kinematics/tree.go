package kinematics

import (
	"github.com/pkg/errors"

	"webkin/spatialmath"
)

// ErrMalformedTree is returned when a tree description cannot produce even a
// root node. Every other missing field is defaulted, never rejected.
var ErrMalformedTree = errors.New("malformed kinematic tree")

// Tree owns a single-rooted kinematic node graph and a name index of its
// joints. The zero value is an unloaded tree ready for use.
//
// A Tree performs no locking of its own; callers that share one across
// goroutines must serialize access (see the scene package).
type Tree struct {
	root   *Node
	joints map[string]*Node
}

// NewTree returns an empty, unloaded tree.
func NewTree() *Tree {
	return &Tree{}
}

// Load replaces the whole tree with one built from the description and
// rebuilds the joint index, then recomputes global poses so a freshly loaded
// tree is never stale. It fails only when no root record is present.
//
// Node names are not checked for uniqueness; when joints share a name the
// last one in depth-first pre-order wins the index entry.
func (t *Tree) Load(cfg *NodeConfig) error {
	if cfg == nil {
		return errors.Wrap(ErrMalformedTree, "no root record")
	}
	root := NewNode(cfg)
	joints := map[string]*Node{}
	root.walk(func(n *Node) {
		if n.IsJoint() {
			joints[n.name] = n
		}
	})
	t.root = root
	t.joints = joints
	t.Update()
	return nil
}

// SetJointCoords overwrites the coordinates of the named joints. Unknown
// names are silently ignored. Global poses are stale until Update is called.
func (t *Tree) SetJointCoords(coords map[string]float64) {
	for name, value := range coords {
		if joint, ok := t.joints[name]; ok {
			joint.SetCoordinate(value)
		}
	}
}

// Update recomputes every node's global pose top-down from the root. It is a
// no-op on an unloaded tree. Cost is O(n) in the node count; any coordinate
// change triggers a full pass.
func (t *Tree) Update() {
	if t.root != nil {
		t.root.computeGlobalPoses(spatialmath.NewZeroPose())
	}
}

// Root returns the root node, or nil when unloaded.
func (t *Tree) Root() *Node {
	return t.root
}

// JointNames lists the names of all rotator and actuator nodes. Order is not
// meaningful.
func (t *Tree) JointNames() []string {
	names := make([]string, 0, len(t.joints))
	for name := range t.joints {
		names = append(names, name)
	}
	return names
}
