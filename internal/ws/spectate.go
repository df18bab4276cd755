package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/internal/hub"
	"github.com/zxckotee/pvp-arena/internal/lobby"
	"github.com/zxckotee/pvp-arena/internal/types"
)

// Spectate streams a room's state to a read-only websocket. Each message
// carries only the actions the watcher has not seen yet.
func Spectate(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "roomID")
		lb, err := h.Get(r.Context(), id)
		if err != nil || lb == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan lobby.Snapshot, 8)
		clientID := uuid.NewString()
		if err := lobbySend(r.Context(), lb, lobby.Join{ClientID: clientID, Outbox: out}); err != nil {
			return
		}
		defer func() { _ = lobbySend(context.Background(), lb, lobby.Leave{ClientID: clientID}) }()

		// watchers never send; CloseRead cancels ctx when the peer goes away
		ctx := conn.CloseRead(r.Context())
		log.Debug("spectator joined", zap.String("room", id), zap.String("client", clientID))

		var cursor int64
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-out:
				if !ok {
					// dropped for being slow, or the room closed
					return
				}
				st := snap.State.Snapshot(cursor)
				for _, a := range st.Actions {
					cursor = max(cursor, a.ID)
				}
				payload, _ := json.Marshal(types.ServerMessage{Type: "RoomState", Version: snap.Version, RoomID: id, State: &st})
				wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				err := conn.Write(wctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					return
				}
			}
		}
	}
}

// lobbySend gives up once the lobby has stopped.
func lobbySend(ctx context.Context, lb *lobby.Lobby, m lobby.Msg) error {
	select {
	case lb.Inbox() <- m:
		return nil
	case <-lb.Done():
		return lobby.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
