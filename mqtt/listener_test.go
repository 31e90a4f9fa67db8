package mqtt

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"webkin/scene"
)

const armTreeJSON = `{
	"name": "root",
	"children": [{
		"name": "shoulder",
		"type": "rotator",
		"axis": [0, 0, 1],
		"children": [{
			"name": "elbow",
			"type": "actuator",
			"axis": [1, 0, 0],
			"pose": {"position": [1, 0, 0], "orientation": [0, 0, 0, 1]}
		}]
	}]
}`

func newTestListener(t *testing.T) (*Listener, *scene.Manager) {
	t.Helper()
	logger := golog.NewTestLogger(t)
	mgr := scene.NewManager(logger)
	return NewListener(mgr, Options{Broker: "localhost", Port: 1883}, logger), mgr
}

func TestDefaultTopics(t *testing.T) {
	l, _ := newTestListener(t)
	test.That(t, l.opts.JointsTopic, test.ShouldEqual, DefaultJointsTopic)
	test.That(t, l.opts.TreeTopic, test.ShouldEqual, DefaultTreeTopic)
}

func TestHandleTreePayload(t *testing.T) {
	l, mgr := newTestListener(t)

	l.HandleTreePayload([]byte(armTreeJSON))
	test.That(t, mgr.Snapshot(), test.ShouldHaveLength, 3)
	test.That(t, mgr.JointNames(), test.ShouldHaveLength, 2)

	// garbage after a good tree leaves the loaded tree intact
	l.HandleTreePayload([]byte("{{{"))
	test.That(t, mgr.Snapshot(), test.ShouldHaveLength, 3)
}

func TestHandleJointsPayload(t *testing.T) {
	l, mgr := newTestListener(t)
	l.HandleTreePayload([]byte(armTreeJSON))

	l.HandleJointsPayload([]byte(`{"joints": {"shoulder": ` + piOverTwo + `, "elbow": 0.5}}`))
	elbow := mgr.Snapshot()["elbow"]
	test.That(t, elbow.Pose.Position[0], test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, elbow.Pose.Position[1], test.ShouldAlmostEqual, 1.5, 1e-6)

	// malformed and empty payloads are dropped without effect
	l.HandleJointsPayload([]byte("not json"))
	l.HandleJointsPayload([]byte(`{"joints": {}}`))
	l.HandleJointsPayload([]byte(`{}`))
	elbow = mgr.Snapshot()["elbow"]
	test.That(t, elbow.Pose.Position[1], test.ShouldAlmostEqual, 1.5, 1e-6)

	// unknown joint names are ignored, known ones still apply
	l.HandleJointsPayload([]byte(`{"joints": {"ghost": 9, "elbow": 1}}`))
	elbow = mgr.Snapshot()["elbow"]
	test.That(t, elbow.Pose.Position[1], test.ShouldAlmostEqual, 2, 1e-6)
}

var piOverTwo = formatFloat(math.Pi / 2)

func formatFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
