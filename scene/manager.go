// Package scene guards a kinematic tree behind a single lock and fans out
// snapshot broadcasts to transport adapters. It is the only surface the
// transports (MQTT, REST, WebSocket sessions) are given; the engine itself
// stays single-threaded behind it.
package scene

import (
	"encoding/json"
	"sync"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"webkin/kinematics"
)

// Broadcast message types, mirroring the wire protocol the viewers speak.
const (
	BroadcastSceneInit   = "scene_init"
	BroadcastSceneUpdate = "scene_update"
)

// Broadcast is one message fanned out to subscribers: a full snapshot, plus
// the joint listing when the tree itself was replaced.
type Broadcast struct {
	Type   string                          `json:"type"`
	Nodes  map[string]kinematics.SceneNode `json:"nodes"`
	Joints []string                        `json:"joints,omitempty"`
}

// subscriberBuffer bounds how many undelivered broadcasts a subscriber may
// hold before stale frames are dropped for it.
const subscriberBuffer = 8

// Manager owns a kinematic tree and serializes every read-modify-publish
// sequence against it. A coordinate update, its recomputation, and the
// snapshot that feeds the resulting broadcast happen under one lock
// acquisition, so no reader ever observes a half-applied update. Readers that
// only need the latest state are served from the most recently published
// snapshot.
type Manager struct {
	logger golog.Logger

	mu          sync.RWMutex
	tree        *kinematics.Tree
	rawTree     json.RawMessage
	scene       map[string]kinematics.SceneNode
	joints      []string
	subscribers map[uuid.UUID]chan Broadcast
}

// NewManager returns a manager with an unloaded tree.
func NewManager(logger golog.Logger) *Manager {
	return &Manager{
		logger:      logger,
		tree:        kinematics.NewTree(),
		scene:       map[string]kinematics.SceneNode{},
		subscribers: map[uuid.UUID]chan Broadcast{},
	}
}

// LoadTree replaces the tree wholesale from a parsed description and
// broadcasts a scene_init to all subscribers. No update or snapshot read
// interleaves with the load.
func (m *Manager) LoadTree(cfg *kinematics.NodeConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "cannot re-encode tree description")
	}
	return m.loadTree(cfg, raw)
}

// LoadTreeJSON replaces the tree wholesale from a raw JSON description,
// keeping the original bytes for the tree echo endpoint.
func (m *Manager) LoadTreeJSON(data []byte) error {
	cfg, err := kinematics.ParseNodeConfig(data)
	if err != nil {
		return err
	}
	return m.loadTree(cfg, append(json.RawMessage(nil), data...))
}

func (m *Manager) loadTree(cfg *kinematics.NodeConfig, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.tree.Load(cfg); err != nil {
		return err
	}
	m.rawTree = raw
	m.scene = m.tree.SceneData()
	m.joints = m.tree.JointNames()
	m.logger.Infow("loaded kinematic tree", "joints", m.joints)

	m.broadcastLocked(Broadcast{
		Type:   BroadcastSceneInit,
		Nodes:  m.scene,
		Joints: m.joints,
	})
	return nil
}

// SetJointCoordinates applies the coordinate updates, recomputes global
// poses, publishes the fresh snapshot, and broadcasts a scene_update, all as
// one atomic unit. Unknown joint names are ignored.
func (m *Manager) SetJointCoordinates(coords map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tree.SetJointCoords(coords)
	m.tree.Update()
	m.scene = m.tree.SceneData()

	m.broadcastLocked(Broadcast{
		Type:  BroadcastSceneUpdate,
		Nodes: m.scene,
	})
}

// Snapshot returns the most recently published scene. The map is shared with
// other readers and must not be mutated. Empty before the first load.
func (m *Manager) Snapshot() map[string]kinematics.SceneNode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scene
}

// JointNames returns the joint listing of the loaded tree.
func (m *Manager) JointNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.joints...)
}

// TreeJSON returns the raw description of the loaded tree, or nil before the
// first load.
func (m *Manager) TreeJSON() json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rawTree
}

// Subscribe registers a broadcast receiver and returns its id and channel.
// Slow receivers lose intermediate frames rather than blocking updates.
func (m *Manager) Subscribe() (uuid.UUID, <-chan Broadcast) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	ch := make(chan Broadcast, subscriberBuffer)
	m.subscribers[id] = ch
	m.logger.Debugw("subscriber added", "id", id, "total", len(m.subscribers))
	return id, ch
}

// Unsubscribe removes a receiver and closes its channel.
func (m *Manager) Unsubscribe(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.subscribers[id]; ok {
		delete(m.subscribers, id)
		close(ch)
		m.logger.Debugw("subscriber removed", "id", id, "total", len(m.subscribers))
	}
}

// Close drops all subscribers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ch := range m.subscribers {
		delete(m.subscribers, id)
		close(ch)
	}
}

func (m *Manager) broadcastLocked(b Broadcast) {
	for id, ch := range m.subscribers {
		select {
		case ch <- b:
		default:
			m.logger.Debugw("subscriber lagging, dropping frame", "id", id)
		}
	}
}
