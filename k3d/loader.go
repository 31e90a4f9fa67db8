// Package k3d loads .k3d robot descriptions: zip archives bundling a
// k3d.json kinematic tree with STL mesh files. Numeric fields in k3d.json
// may arrive as locale-formatted strings with a comma decimal separator;
// this loader normalizes them so the engine only ever sees numbers.
package k3d

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"webkin/kinematics"
)

// ErrNoTree is returned when an archive or directory has no k3d.json.
var ErrNoTree = errors.New("k3d.json not found")

// modelRoute is the URL prefix under which extracted meshes are served.
const modelRoute = "/k3d/models/"

// Loader extracts .k3d archives and converts their trees to the engine's
// description format. A Loader owns at most one extracted archive at a time;
// loading again discards the previous one.
type Loader struct {
	logger golog.Logger

	tempDir    string
	modelsDir  string
	scale      map[string]float64
	cameraPose json.RawMessage
}

// NewLoader returns an empty loader.
func NewLoader(logger golog.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadFile extracts a .k3d archive and returns its tree. The path may be
// absolute or relative and a leading ~ is expanded.
func (l *Loader) LoadFile(path string) (*kinematics.NodeConfig, error) {
	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	if err := l.Close(); err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "webkin_k3d_")
	if err != nil {
		return nil, errors.Wrap(err, "cannot create extraction directory")
	}
	l.tempDir = tempDir
	l.modelsDir = filepath.Join(tempDir, "models")
	if err := os.Mkdir(l.modelsDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "cannot create models directory")
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open k3d archive %q", path)
	}
	defer reader.Close()

	var doc []byte
	for _, member := range reader.File {
		name := filepath.Base(member.Name)
		switch {
		case name == "k3d.json":
			doc, err = readArchiveFile(member)
			if err != nil {
				return nil, err
			}
		case strings.HasSuffix(strings.ToLower(name), ".stl"):
			if err := l.extractModel(member, name); err != nil {
				return nil, err
			}
			l.logger.Debugw("extracted model", "file", name)
		}
	}
	if doc == nil {
		return nil, errors.Wrapf(ErrNoTree, "in archive %q", path)
	}
	return l.parseDocument(doc)
}

// LoadDirectory loads from an already-extracted layout: a directory holding
// k3d.json with its meshes alongside.
func (l *Loader) LoadDirectory(dir string) (*kinematics.NodeConfig, error) {
	dir, err := expandPath(dir)
	if err != nil {
		return nil, err
	}
	if err := l.Close(); err != nil {
		return nil, err
	}

	doc, err := os.ReadFile(filepath.Join(dir, "k3d.json"))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNoTree, "in directory %q", dir)
	} else if err != nil {
		return nil, errors.Wrap(err, "cannot read k3d.json")
	}
	l.modelsDir = dir
	return l.parseDocument(doc)
}

// ModelsDir returns the directory holding the extracted mesh files, empty
// before the first load.
func (l *Loader) ModelsDir() string {
	return l.modelsDir
}

// ModelPath returns the on-disk path of an extracted mesh, or empty when it
// does not exist.
func (l *Loader) ModelPath(filename string) string {
	if l.modelsDir == "" {
		return ""
	}
	path := filepath.Join(l.modelsDir, filepath.Base(filename))
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// CameraPose returns the archive's suggested camera pose verbatim, nil when
// absent. It is passed through to viewers untouched.
func (l *Loader) CameraPose() json.RawMessage {
	return l.cameraPose
}

// Close removes the extracted files. The loader may be reused afterwards.
func (l *Loader) Close() error {
	if l.tempDir == "" {
		l.modelsDir = ""
		return nil
	}
	err := os.RemoveAll(l.tempDir)
	l.tempDir = ""
	l.modelsDir = ""
	return errors.Wrap(err, "cannot remove extraction directory")
}

func (l *Loader) extractModel(member *zip.File, name string) error {
	src, err := member.Open()
	if err != nil {
		return errors.Wrapf(err, "cannot open archive member %q", member.Name)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(l.modelsDir, name))
	if err != nil {
		return errors.Wrapf(err, "cannot extract %q", name)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return errors.Wrapf(err, "cannot extract %q", name)
	}
	return dst.Close()
}

func readArchiveFile(member *zip.File) ([]byte, error) {
	src, err := member.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open archive member %q", member.Name)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %q", member.Name)
	}
	return data, nil
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "cannot expand ~")
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
