package k3d

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"webkin/kinematics"
)

// flexFloat decodes a JSON number that may instead be a string, possibly
// with a comma as the decimal separator. Anything unparseable decodes to 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	*f = 0
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err == nil {
			*f = flexFloat(v)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat(v)
	}
	return nil
}

// document is the top level of a k3d.json file. The tree usually sits under
// the "k3d" key but may also be the document itself.
type document struct {
	ScaleDict  map[string]flexFloat `json:"scaleDict"`
	CameraPose json.RawMessage      `json:"cameraPose"`
	K3D        *rawNode             `json:"k3d"`
}

type rawNode struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Pose     *rawPose        `json:"pose"`
	Axis     []flexFloat     `json:"axis"`
	Model    json.RawMessage `json:"model"`
	Children []rawNode       `json:"children"`
}

type rawPose struct {
	Position    []flexFloat `json:"position"`
	Orientation []flexFloat `json:"orientation"`
}

func (l *Loader) parseDocument(data []byte) (*kinematics.NodeConfig, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "cannot parse k3d.json")
	}

	l.scale = map[string]float64{}
	for path, scale := range doc.ScaleDict {
		l.scale[path] = float64(scale)
	}
	l.cameraPose = doc.CameraPose

	tree := doc.K3D
	if tree == nil {
		tree = &rawNode{}
		if err := json.Unmarshal(data, tree); err != nil {
			return nil, errors.Wrap(err, "cannot parse k3d.json tree")
		}
	}
	cfg := l.convertNode(tree)
	return &cfg, nil
}

func (l *Loader) convertNode(node *rawNode) kinematics.NodeConfig {
	cfg := kinematics.NodeConfig{
		Name: node.Name,
		Type: node.Type,
	}
	if node.Pose != nil {
		cfg.Pose = &kinematics.PoseConfig{
			Position:    floats(node.Pose.Position),
			Orientation: floats(node.Pose.Orientation),
		}
	}
	if node.Axis != nil {
		cfg.Axis = floats(node.Axis)
	}
	if node.Model != nil {
		cfg.Model = l.convertModel(node.Model)
	}
	for i := range node.Children {
		cfg.Children = append(cfg.Children, l.convertNode(&node.Children[i]))
	}
	return cfg
}

// convertModel rewrites {"type":"file"} entries to STL descriptors pointing
// at the served model route, applying any scaleDict entry for the path.
// Everything else passes through unmodified.
func (l *Loader) convertModel(raw json.RawMessage) *kinematics.ModelConfig {
	var header struct {
		Type string `json:"type"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(raw, &header); err == nil && header.Type == "file" {
		scale := 1.0
		if s, ok := l.scale[header.Path]; ok {
			scale = s
		}
		return &kinematics.ModelConfig{
			Type:  kinematics.ModelTypeSTL,
			Path:  modelRoute + header.Path,
			Scale: scale,
		}
	}
	var model kinematics.ModelConfig
	if err := json.Unmarshal(raw, &model); err != nil {
		return &kinematics.ModelConfig{Type: kinematics.ModelTypeNone}
	}
	return &model
}

func floats(values []flexFloat) []float64 {
	if values == nil {
		return nil
	}
	converted := make([]float64, len(values))
	for i, v := range values {
		converted[i] = float64(v)
	}
	return converted
}
