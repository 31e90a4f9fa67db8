package kinematics

import (
	"github.com/golang/geo/r3"

	"webkin/spatialmath"
)

// JointType distinguishes how a node's joint coordinate moves its subtree.
type JointType string

// The three node kinds. A transform contributes no motion of its own; a
// rotator spins about its axis by the coordinate in radians; an actuator
// slides along its axis by the coordinate in linear units.
const (
	JointTypeTransform JointType = "transform"
	JointTypeRotator   JointType = "rotator"
	JointTypeActuator  JointType = "actuator"
)

const defaultNodeName = "unnamed"

// Node is a single element of a kinematic tree. Each node owns its children
// exclusively; the algebra needs no parent pointers.
type Node struct {
	name      string
	jointType JointType
	localPose spatialmath.Pose
	axis      r3.Vector
	coord     float64
	model     *ModelConfig

	globalPose spatialmath.Pose
	children   []*Node
}

// NewNode builds a node and its whole subtree from a description record.
// Missing fields default to: type transform, identity local pose, axis
// (0, 0, 1), coordinate 0, model none.
func NewNode(cfg *NodeConfig) *Node {
	n := &Node{
		name:       defaultNodeName,
		jointType:  JointTypeTransform,
		localPose:  cfg.Pose.ParseConfig(),
		axis:       r3.Vector{Z: 1},
		model:      &ModelConfig{Type: ModelTypeNone},
		globalPose: spatialmath.NewZeroPose(),
	}
	if cfg.Name != "" {
		n.name = cfg.Name
	}
	if cfg.Type != "" {
		n.jointType = JointType(cfg.Type)
	}
	if len(cfg.Axis) >= 3 {
		n.axis = r3.Vector{X: cfg.Axis[0], Y: cfg.Axis[1], Z: cfg.Axis[2]}
	}
	if cfg.Model != nil {
		n.model = cfg.Model
	}
	for i := range cfg.Children {
		n.children = append(n.children, NewNode(&cfg.Children[i]))
	}
	return n
}

// Name returns the node's identity within the tree.
func (n *Node) Name() string {
	return n.name
}

// JointType returns the node's kind.
func (n *Node) JointType() JointType {
	return n.jointType
}

// IsJoint reports whether the node has a movable degree of freedom.
func (n *Node) IsJoint() bool {
	return n.jointType == JointTypeRotator || n.jointType == JointTypeActuator
}

// Coordinate returns the current joint coordinate.
func (n *Node) Coordinate() float64 {
	return n.coord
}

// SetCoordinate sets the joint coordinate, radians for a rotator and linear
// units for an actuator. Global poses are stale until the next recomputation.
func (n *Node) SetCoordinate(value float64) {
	n.coord = value
}

// LocalPose returns the node's authored rest pose relative to its parent.
func (n *Node) LocalPose() spatialmath.Pose {
	return n.localPose
}

// GlobalPose returns the pose computed by the last recomputation pass.
func (n *Node) GlobalPose() spatialmath.Pose {
	return n.globalPose
}

// Children returns the node's ordered child list. Callers must not modify it.
func (n *Node) Children() []*Node {
	return n.children
}

// JointTransform returns the pose contributed by the current joint
// coordinate, evaluated fresh on every call.
func (n *Node) JointTransform() spatialmath.Pose {
	switch n.jointType {
	case JointTypeRotator:
		return spatialmath.NewPoseFromOrientation(spatialmath.QuatFromAxisAngle(n.axis, n.coord))
	case JointTypeActuator:
		return spatialmath.NewPoseFromPoint(n.axis.Mul(n.coord))
	default:
		return spatialmath.NewZeroPose()
	}
}

// computeGlobalPoses recomputes this node's global pose from its parent's and
// recurses depth-first into the children. The composition order
// parent ∘ local ∘ joint is a contract: the joint transform applies in the
// node's own rest frame, so a rotator's axis is interpreted in the node's
// authored orientation.
func (n *Node) computeGlobalPoses(parentPose spatialmath.Pose) {
	n.globalPose = spatialmath.Compose(spatialmath.Compose(parentPose, n.localPose), n.JointTransform())
	for _, child := range n.children {
		child.computeGlobalPoses(n.globalPose)
	}
}

// walk visits the node and its subtree depth-first pre-order.
func (n *Node) walk(visit func(*Node)) {
	visit(n)
	for _, child := range n.children {
		child.walk(visit)
	}
}
