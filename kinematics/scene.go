package kinematics

// SceneNode is one entry of a scene snapshot: a node's global pose at the
// last recomputation plus its pass-through model descriptor.
type SceneNode struct {
	Pose  PoseConfig   `json:"pose"`
	Model *ModelConfig `json:"model"`
}

// SceneData flattens the tree into a snapshot keyed by node name, covering
// every node, not only joints. The result is a fresh map on each call; an
// unloaded tree yields an empty map.
func (t *Tree) SceneData() map[string]SceneNode {
	scene := map[string]SceneNode{}
	if t.root == nil {
		return scene
	}
	t.root.walk(func(n *Node) {
		scene[n.name] = SceneNode{
			Pose:  NewPoseConfig(n.globalPose),
			Model: n.model,
		}
	})
	return scene
}
