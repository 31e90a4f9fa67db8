package web

import (
	"context"
	"net/http"

	"go.viam.com/utils"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"webkin/scene"
)

// clientMessage is what a viewer may send over its socket. UI sliders drive
// joints through joint_update messages.
type clientMessage struct {
	Type   string             `json:"type"`
	Joints map[string]float64 `json:"joints"`
}

// handleWebSocket runs one live viewer session: an immediate scene_init,
// then a pump of manager broadcasts outward and joint updates inward until
// either side goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Debugw("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id, broadcasts := s.mgr.Subscribe()
	defer s.mgr.Unsubscribe(id)
	s.logger.Infow("viewer connected", "id", id)

	init := scene.Broadcast{
		Type:   scene.BroadcastSceneInit,
		Nodes:  s.mgr.Snapshot(),
		Joints: s.mgr.JointNames(),
	}
	if err := wsjson.Write(ctx, conn, init); err != nil {
		s.logger.Debugw("cannot send scene_init", "id", id, "error", err)
		return
	}

	s.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer s.activeBackgroundWorkers.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-broadcasts:
				if !ok {
					return
				}
				if err := wsjson.Write(ctx, conn, b); err != nil {
					return
				}
			}
		}
	})

	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				conn.Close(websocket.StatusNormalClosure, "")
			}
			s.logger.Infow("viewer disconnected", "id", id)
			return
		}
		if msg.Type == "joint_update" && len(msg.Joints) > 0 {
			s.mgr.SetJointCoordinates(msg.Joints)
		}
	}
}
