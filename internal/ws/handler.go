// Package ws exposes match state over websockets: a player bridge on top of a
// session, and a read-only room stream for spectators.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/internal/session"
	"github.com/zxckotee/pvp-arena/internal/types"
)

var (
	errUnknownType      = errors.New("unknown type")
	errMissingTechnique = errors.New("technique_id is required")
)

// A UI may only listen, so reads never time out; pings detect dead peers.
var (
	pingInterval = 20 * time.Second
	pingTimeout  = 10 * time.Second
)

// Handler bridges one player's session to a websocket. Session events go out
// as ServerMessages; ClientMessages come in as intents and session calls.
func Handler(s *session.Session, log *zap.Logger) http.HandlerFunc {
	interval, timeout := pingInterval, pingTimeout
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		events, unsubscribe, err := s.Subscribe(r.Context())
		if err != nil {
			conn.Close(websocket.StatusInternalError, "session closed")
			return
		}
		defer unsubscribe()

		replies := make(chan types.ServerMessage, 8)

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			if v, err := s.View(writeCtx); err == nil {
				replies <- types.ServerMessage{Type: "Snapshot", RoomID: v.RoomID, View: &v}
			}
			for {
				var msg types.ServerMessage
				select {
				case <-writeCtx.Done():
					return
				case e, ok := <-events:
					if !ok {
						// session dropped us or stopped
						conn.Close(websocket.StatusPolicyViolation, "too slow")
						return
					}
					msg = toServerMessage(e)
				case msg = <-replies:
				}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		go keepalive(writeCtx, conn, interval, timeout, log)

		reply := func(m types.ServerMessage) {
			select {
			case replies <- m:
			case <-writeCtx.Done():
			}
		}

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("bridge read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				reply(types.ServerMessage{Type: "Error", Error: "bad json"})
				continue
			}
			if err := dispatch(r.Context(), s, cm, reply); err != nil {
				reply(types.ServerMessage{Type: "Error", RoomID: cm.RoomID, Error: err.Error()})
			}
		}
	}
}

func keepalive(ctx context.Context, conn *websocket.Conn, interval, timeout time.Duration, log *zap.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := conn.Ping(pctx)
		cancel()
		if err != nil {
			if ctx.Err() == nil {
				log.Debug("bridge peer unresponsive", zap.Error(err))
				conn.Close(websocket.StatusPolicyViolation, "ping timeout")
			}
			return
		}
	}
}

func dispatch(ctx context.Context, s *session.Session, m types.ClientMessage, reply func(types.ServerMessage)) error {
	if in, ok := toIntent(m); ok {
		_, err := s.Submit(ctx, in)
		return err
	}

	switch m.Type {
	case "Technique":
		return errMissingTechnique
	case "Select":
		return s.Select(ctx, session.Selection{
			Type:        engine.ActionType(m.Action),
			TargetID:    m.TargetID,
			TechniqueID: m.TechniqueID,
		})
	case "Join":
		// reconciliation retries can take a while; keep reading meanwhile
		go func() {
			out, err := s.Join(ctx, m.RoomID, m.Team, m.Position)
			if err != nil {
				reply(types.ServerMessage{Type: "Error", RoomID: m.RoomID, Error: err.Error()})
				return
			}
			reply(types.ServerMessage{Type: "Joined", RoomID: m.RoomID, Join: &out})
		}()
		return nil
	case "Enter":
		return s.Enter(ctx, m.RoomID)
	case "Leave":
		return s.Leave(ctx)
	case "Browse":
		return s.Browse(ctx)
	case "View":
		v, err := s.View(ctx)
		if err != nil {
			return err
		}
		reply(types.ServerMessage{Type: "Snapshot", RoomID: v.RoomID, View: &v})
		return nil
	default:
		return errUnknownType
	}
}

func toIntent(m types.ClientMessage) (engine.Intent, bool) {
	switch m.Type {
	case "Attack":
		return engine.Intent{Type: engine.ActionAttack, TargetID: m.TargetID}, true
	case "Defense":
		return engine.Intent{Type: engine.ActionDefense}, true
	case "Technique":
		if m.TechniqueID == "" {
			return engine.Intent{}, false
		}
		return engine.Intent{Type: engine.ActionTechnique, TargetID: m.TargetID, TechniqueID: m.TechniqueID}, true
	default:
		return engine.Intent{}, false
	}
}

func toServerMessage(e session.Event) types.ServerMessage {
	msg := types.ServerMessage{RoomID: e.RoomID, Error: e.Summary, Detail: e.Detail}
	switch e.Type {
	case session.EventSnapshot:
		msg.Type = "Snapshot"
		msg.View = e.View
	case session.EventRoomList:
		msg.Type = "RoomList"
		msg.Rooms = e.Rooms
	case session.EventActionResolved:
		msg.Type = "ActionResolved"
		msg.Resolved = e.Resolved
	case session.EventTargetRequired:
		msg.Type = "TargetRequired"
	case session.EventTerminal:
		msg.Type = "Terminal"
		msg.Outcome = e.Outcome
	case session.EventReset:
		msg.Type = "Reset"
	case session.EventWarning:
		msg.Type = "Warning"
	default:
		msg.Type = "Error"
	}
	return msg
}
