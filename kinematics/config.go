// Package kinematics implements the forward-kinematics engine: the tree data
// model, joint-transform evaluation, and the global pose recomputation pass.
package kinematics

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"webkin/spatialmath"
)

// NodeConfig is the wire description of a single kinematic node. Every field
// is optional; missing fields take documented defaults at construction time.
type NodeConfig struct {
	Name     string       `json:"name,omitempty"`
	Type     string       `json:"type,omitempty"`
	Pose     *PoseConfig  `json:"pose,omitempty"`
	Axis     []float64    `json:"axis,omitempty"`
	Model    *ModelConfig `json:"model,omitempty"`
	Children []NodeConfig `json:"children,omitempty"`
}

// ParseNodeConfig decodes a JSON tree description. A description that cannot
// produce even a root record (invalid JSON, or a JSON null) fails with
// ErrMalformedTree; anything else succeeds and defaults at construction time.
func ParseNodeConfig(data []byte) (*NodeConfig, error) {
	var cfg *NodeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(ErrMalformedTree, "cannot parse tree description: %s", err)
	}
	if cfg == nil {
		return nil, errors.Wrap(ErrMalformedTree, "no root record")
	}
	return cfg, nil
}

// PoseConfig is the wire representation of a pose: a 3-element position and a
// 4-element orientation quaternion in x, y, z, w order.
type PoseConfig struct {
	Position    []float64 `json:"position"`
	Orientation []float64 `json:"orientation"`
}

// NewPoseConfig converts a pose to its wire representation.
func NewPoseConfig(p spatialmath.Pose) PoseConfig {
	pt := p.Point()
	o := p.Orientation()
	return PoseConfig{
		Position:    []float64{pt.X, pt.Y, pt.Z},
		Orientation: []float64{o.Imag, o.Jmag, o.Kmag, o.Real},
	}
}

// ParseConfig converts the wire representation to a pose. Missing or
// undersized fields default to no translation and the identity rotation.
func (c *PoseConfig) ParseConfig() spatialmath.Pose {
	pose := spatialmath.NewZeroPose()
	if c == nil {
		return pose
	}
	point := pose.Point()
	orientation := pose.Orientation()
	if len(c.Position) >= 3 {
		point = r3.Vector{X: c.Position[0], Y: c.Position[1], Z: c.Position[2]}
	}
	if len(c.Orientation) >= 4 {
		orientation = quat.Number{
			Imag: c.Orientation[0],
			Jmag: c.Orientation[1],
			Kmag: c.Orientation[2],
			Real: c.Orientation[3],
		}
	}
	return spatialmath.NewPose(point, orientation)
}

// Known model descriptor kinds. Anything else is carried through raw.
const (
	ModelTypeNone = "none"
	ModelTypeSTL  = "stl"
)

// ModelConfig describes the visual model attached to a node. The engine never
// interprets it; it is carried through to scene snapshots untouched. Decoding
// keeps the original bytes so any descriptor, typeless or unknown, re-encodes
// exactly as it arrived; known kinds additionally decode into fields.
type ModelConfig struct {
	Type  string
	Path  string
	Scale float64

	raw json.RawMessage
}

// UnmarshalJSON preserves the descriptor bytes and decodes known fields.
func (m *ModelConfig) UnmarshalJSON(data []byte) error {
	*m = ModelConfig{raw: append(json.RawMessage(nil), data...)}
	var known struct {
		Type  string  `json:"type"`
		Path  string  `json:"path"`
		Scale float64 `json:"scale"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return nil
	}
	m.Type = known.Type
	m.Path = known.Path
	m.Scale = known.Scale
	return nil
}

// MarshalJSON re-emits decoded descriptors byte for byte. Configs built in
// code have no raw bytes and encode from their fields.
func (m ModelConfig) MarshalJSON() ([]byte, error) {
	if m.raw != nil {
		return m.raw, nil
	}
	switch m.Type {
	case ModelTypeSTL:
		return json.Marshal(struct {
			Type  string  `json:"type"`
			Path  string  `json:"path"`
			Scale float64 `json:"scale"`
		}{m.Type, m.Path, m.Scale})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{ModelTypeNone})
	}
}
