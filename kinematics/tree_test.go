package kinematics

import (
	"math"
	"sort"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"webkin/spatialmath"
)

// armConfig is a 3-node chain: root → shoulder (rotator about Z) →
// elbow (actuator along X, resting at (1,0,0) relative to the shoulder).
func armConfig() *NodeConfig {
	return &NodeConfig{
		Name: "root",
		Children: []NodeConfig{{
			Name: "shoulder",
			Type: "rotator",
			Axis: []float64{0, 0, 1},
			Children: []NodeConfig{{
				Name: "elbow",
				Type: "actuator",
				Axis: []float64{1, 0, 0},
				Pose: &PoseConfig{Position: []float64{1, 0, 0}, Orientation: []float64{0, 0, 0, 1}},
			}},
		}},
	}
}

func TestLoadMalformed(t *testing.T) {
	tree := NewTree()
	err := tree.Load(nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrMalformedTree), test.ShouldBeTrue)
}

func TestUnloadedTreeIsInert(t *testing.T) {
	tree := NewTree()
	tree.Update() // no-op, must not panic
	tree.SetJointCoords(map[string]float64{"anything": 1})
	test.That(t, tree.SceneData(), test.ShouldBeEmpty)
	test.That(t, tree.JointNames(), test.ShouldHaveLength, 0)
	test.That(t, tree.Root(), test.ShouldBeNil)
}

func TestLoadBuildsJointIndex(t *testing.T) {
	tree := NewTree()
	test.That(t, tree.Load(armConfig()), test.ShouldBeNil)

	names := tree.JointNames()
	sort.Strings(names)
	test.That(t, names, test.ShouldResemble, []string{"elbow", "shoulder"})
}

func TestLoadComputesPosesImmediately(t *testing.T) {
	tree := NewTree()
	test.That(t, tree.Load(armConfig()), test.ShouldBeNil)

	// with all coordinates at zero the elbow rests at its local offset
	scene := tree.SceneData()
	elbow := scene["elbow"]
	test.That(t, elbow.Pose.Position[0], test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, elbow.Pose.Position[1], test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, elbow.Pose.Position[2], test.ShouldAlmostEqual, 0, 1e-9)
}

func TestRotatorMovesChild(t *testing.T) {
	tree := NewTree()
	test.That(t, tree.Load(armConfig()), test.ShouldBeNil)

	tree.SetJointCoords(map[string]float64{"shoulder": math.Pi / 2})
	tree.Update()

	// the elbow's rest offset (1,0,0) swings to (0,1,0)
	elbow := tree.SceneData()["elbow"]
	test.That(t, elbow.Pose.Position[0], test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, elbow.Pose.Position[1], test.ShouldAlmostEqual, 1, 1e-6)
	test.That(t, elbow.Pose.Position[2], test.ShouldAlmostEqual, 0, 1e-6)

	// and its orientation picks up the 90 degree Z rotation
	shoulderQ := spatialmath.QuatFromAxisAngle(r3.Vector{Z: 1}, math.Pi/2)
	test.That(t, elbow.Pose.Orientation[0], test.ShouldAlmostEqual, shoulderQ.Imag, 1e-6)
	test.That(t, elbow.Pose.Orientation[1], test.ShouldAlmostEqual, shoulderQ.Jmag, 1e-6)
	test.That(t, elbow.Pose.Orientation[2], test.ShouldAlmostEqual, shoulderQ.Kmag, 1e-6)
	test.That(t, elbow.Pose.Orientation[3], test.ShouldAlmostEqual, shoulderQ.Real, 1e-6)
}

func TestActuatorSlidesInLocalFrame(t *testing.T) {
	tree := NewTree()
	test.That(t, tree.Load(armConfig()), test.ShouldBeNil)

	// rotating the shoulder first means the actuator's X axis now points
	// along world Y; the slide composes through the parent orientation
	tree.SetJointCoords(map[string]float64{"shoulder": math.Pi / 2, "elbow": 0.5})
	tree.Update()

	elbow := tree.SceneData()["elbow"]
	test.That(t, elbow.Pose.Position[0], test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, elbow.Pose.Position[1], test.ShouldAlmostEqual, 1.5, 1e-6)
	test.That(t, elbow.Pose.Position[2], test.ShouldAlmostEqual, 0, 1e-6)
}

func TestUpdateIdempotent(t *testing.T) {
	tree := NewTree()
	test.That(t, tree.Load(armConfig()), test.ShouldBeNil)
	tree.SetJointCoords(map[string]float64{"shoulder": 0.3, "elbow": 1.2})

	tree.Update()
	first := tree.SceneData()
	tree.Update()
	second := tree.SceneData()
	test.That(t, second, test.ShouldResemble, first)
}

func TestStaleness(t *testing.T) {
	tree := NewTree()
	test.That(t, tree.Load(armConfig()), test.ShouldBeNil)

	before := tree.SceneData()
	tree.SetJointCoords(map[string]float64{"shoulder": math.Pi / 2})

	// poses are stale until Update runs
	test.That(t, tree.SceneData(), test.ShouldResemble, before)

	tree.Update()
	after := tree.SceneData()["elbow"]
	test.That(t, after.Pose.Position[1], test.ShouldAlmostEqual, 1, 1e-6)
}

func TestSceneCoversEveryNode(t *testing.T) {
	tree := NewTree()
	test.That(t, tree.Load(armConfig()), test.ShouldBeNil)

	scene := tree.SceneData()
	test.That(t, scene, test.ShouldHaveLength, 3)
	for _, name := range []string{"root", "shoulder", "elbow"} {
		_, ok := scene[name]
		test.That(t, ok, test.ShouldBeTrue)
	}
}

func TestUnknownJointNamesIgnored(t *testing.T) {
	tree := NewTree()
	test.That(t, tree.Load(armConfig()), test.ShouldBeNil)
	before := tree.SceneData()

	tree.SetJointCoords(map[string]float64{"nonexistent": 5.0})
	tree.Update()
	test.That(t, tree.SceneData(), test.ShouldResemble, before)
}

func TestLoadReplacesWholesale(t *testing.T) {
	tree := NewTree()
	test.That(t, tree.Load(armConfig()), test.ShouldBeNil)

	other := &NodeConfig{
		Name:     "platform",
		Children: []NodeConfig{{Name: "lift", Type: "actuator", Axis: []float64{0, 0, 1}}},
	}
	test.That(t, tree.Load(other), test.ShouldBeNil)

	scene := tree.SceneData()
	test.That(t, scene, test.ShouldHaveLength, 2)
	_, ok := scene["shoulder"]
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, tree.JointNames(), test.ShouldResemble, []string{"lift"})

	// old joint names no longer route anywhere
	tree.SetJointCoords(map[string]float64{"shoulder": 1})
	tree.Update()
	test.That(t, tree.SceneData()["lift"].Pose.Position[2], test.ShouldAlmostEqual, 0)
}

func TestDuplicateJointNamesLastWins(t *testing.T) {
	cfg := &NodeConfig{
		Name: "root",
		Children: []NodeConfig{
			{Name: "twin", Type: "actuator", Axis: []float64{1, 0, 0}},
			{Name: "twin", Type: "actuator", Axis: []float64{0, 1, 0}},
		},
	}
	tree := NewTree()
	test.That(t, tree.Load(cfg), test.ShouldBeNil)
	test.That(t, tree.JointNames(), test.ShouldResemble, []string{"twin"})

	tree.SetJointCoords(map[string]float64{"twin": 2})
	tree.Update()

	// the second child holds the index entry, so it moves along Y while the
	// first stays put; the snapshot key also collapses to the later node
	second := tree.Root().Children()[1]
	test.That(t, second.GlobalPose().Point().Y, test.ShouldAlmostEqual, 2, 1e-9)
	first := tree.Root().Children()[0]
	test.That(t, first.GlobalPose().Point().X, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestDeepChainComposition(t *testing.T) {
	// four stacked rotators, each lifting a 1-unit link; 30 degrees apiece
	cfg := &NodeConfig{Name: "base"}
	child := cfg
	for _, name := range []string{"j1", "j2", "j3", "j4"} {
		next := NodeConfig{
			Name: name,
			Type: "rotator",
			Axis: []float64{0, 0, 1},
			Pose: &PoseConfig{Position: []float64{1, 0, 0}},
		}
		child.Children = []NodeConfig{next}
		child = &child.Children[0]
	}

	tree := NewTree()
	test.That(t, tree.Load(cfg), test.ShouldBeNil)
	tree.SetJointCoords(map[string]float64{
		"j1": math.Pi / 6, "j2": math.Pi / 6, "j3": math.Pi / 6, "j4": math.Pi / 6,
	})
	tree.Update()

	// planar chain: tip position is the running sum of unit links rotated by
	// accumulated angles of all parent joints
	wantX, wantY := 1.0, 0.0
	angle := 0.0
	for i := 0; i < 3; i++ {
		angle += math.Pi / 6
		wantX += math.Cos(angle)
		wantY += math.Sin(angle)
	}
	tip := tree.SceneData()["j4"]
	test.That(t, tip.Pose.Position[0], test.ShouldAlmostEqual, wantX, 1e-6)
	test.That(t, tip.Pose.Position[1], test.ShouldAlmostEqual, wantY, 1e-6)
}
