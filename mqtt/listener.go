// Package mqtt feeds the visualizer from a broker: a retained tree topic
// carrying the kinematic description and a joints topic carrying coordinate
// updates. A malformed message is logged and dropped; it never disturbs a
// running visualization.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"webkin/scene"
)

// Default topics, shared with the emulator publishing to us.
const (
	DefaultJointsTopic = "robot/joints"
	DefaultTreeTopic   = "robot/joints/tree"
)

const connectRetryInterval = 5 * time.Second

// Options configures the broker connection.
type Options struct {
	Broker      string
	Port        int
	JointsTopic string
	TreeTopic   string
	ClientID    string
}

// Listener subscribes to the broker and routes payloads into the scene
// manager.
type Listener struct {
	logger golog.Logger
	mgr    *scene.Manager
	opts   Options
	client paho.Client
}

// NewListener returns an unconnected listener. Zero-value topic options take
// the defaults.
func NewListener(mgr *scene.Manager, opts Options, logger golog.Logger) *Listener {
	if opts.JointsTopic == "" {
		opts.JointsTopic = DefaultJointsTopic
	}
	if opts.TreeTopic == "" {
		opts.TreeTopic = DefaultTreeTopic
	}
	if opts.ClientID == "" {
		opts.ClientID = "webkin-server"
	}
	return &Listener{logger: logger, mgr: mgr, opts: opts}
}

// Start connects in the background with automatic retry and reconnection.
// Subscriptions are re-established on every (re)connect; the tree topic is
// retained broker-side, so a fresh connection receives the current tree
// immediately.
func (l *Listener) Start(ctx context.Context) error {
	if l.client != nil {
		return errors.New("already started")
	}
	broker := fmt.Sprintf("tcp://%s:%d", l.opts.Broker, l.opts.Port)
	clientOpts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(l.opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetOnConnectHandler(l.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			l.logger.Warnw("mqtt connection lost, reconnecting", "error", err)
		})
	l.client = paho.NewClient(clientOpts)

	token := l.client.Connect()
	utils.PanicCapturingGo(func() {
		token.Wait()
		if err := token.Error(); err != nil {
			l.logger.Errorw("mqtt connect failed", "broker", broker, "error", err)
		}
	})
	l.logger.Infow("mqtt listener starting", "broker", broker,
		"jointsTopic", l.opts.JointsTopic, "treeTopic", l.opts.TreeTopic)
	return nil
}

// Close disconnects from the broker.
func (l *Listener) Close() {
	if l.client != nil {
		l.client.Disconnect(250)
		l.client = nil
	}
}

func (l *Listener) onConnect(client paho.Client) {
	l.logger.Infow("connected to mqtt broker")
	if token := client.Subscribe(l.opts.TreeTopic, 1, func(_ paho.Client, msg paho.Message) {
		l.HandleTreePayload(msg.Payload())
	}); token.Wait() && token.Error() != nil {
		l.logger.Errorw("cannot subscribe", "topic", l.opts.TreeTopic, "error", token.Error())
	}
	if token := client.Subscribe(l.opts.JointsTopic, 0, func(_ paho.Client, msg paho.Message) {
		l.HandleJointsPayload(msg.Payload())
	}); token.Wait() && token.Error() != nil {
		l.logger.Errorw("cannot subscribe", "topic", l.opts.JointsTopic, "error", token.Error())
	}
}

// HandleTreePayload loads a kinematic tree received on the tree topic.
func (l *Listener) HandleTreePayload(data []byte) {
	if err := l.mgr.LoadTreeJSON(data); err != nil {
		l.logger.Errorw("invalid tree payload", "error", err)
		return
	}
	l.logger.Infow("received kinematic tree", "joints", l.mgr.JointNames())
}

// HandleJointsPayload applies a joint update received on the joints topic.
// The payload shape is {"joints": {"name": value, ...}}.
func (l *Listener) HandleJointsPayload(data []byte) {
	var payload struct {
		Joints map[string]float64 `json:"joints"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		l.logger.Errorw("invalid joints payload", "error", err)
		return
	}
	if len(payload.Joints) == 0 {
		return
	}
	l.mgr.SetJointCoordinates(payload.Joints)
}
