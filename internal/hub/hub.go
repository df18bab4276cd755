// Package hub keeps the registry of live rooms.
package hub

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/internal/arena"
	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/internal/lobby"
)

var ErrInvalidMode = errors.New("invalid room mode")
var ErrClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Mode  engine.Mode
	Reply chan *lobby.Lobby
}

type GetRoom struct {
	ID    string
	Reply chan *lobby.Lobby
}

// ListRooms replies with every live room in creation order.
type ListRooms struct {
	Reply chan []*lobby.Lobby
}

type RemoveRoom struct {
	ID string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (ListRooms) isHubMsg()   {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Option func(*Hub)

func WithLobbyOptions(opts ...lobby.Option) Option {
	return func(h *Hub) { h.lobbyOpts = append(h.lobbyOpts, opts...) }
}

func WithIDs(ids func() string) Option { return func(h *Hub) { h.ids = ids } }

func WithLogger(log *zap.Logger) Option { return func(h *Hub) { h.log = log } }

func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

type Hub struct {
	inbox     chan HubMsg
	rooms     map[string]*lobby.Lobby
	order     []string
	arena     *arena.Arena
	lobbyOpts []lobby.Option
	ids       func() string
	now       func() time.Time
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewHub(parent context.Context, a *arena.Arena, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*lobby.Lobby),
		arena:  a,
		ids:    uuid.NewString,
		now:    time.Now,
		log:    zap.NewNop(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.Named("hub")
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				id := h.ids()
				if lb := h.rooms[id]; lb != nil {
					h.log.Warn("room id collision", zap.String("room", id))
					msg.Reply <- nil
					break
				}
				opts := append([]lobby.Option{lobby.WithLogger(h.log)}, h.lobbyOpts...)
				opts = append(opts, lobby.WithOnClose(h.forget))
				state := arena.NewState(id, msg.Mode, h.now())
				lb := lobby.NewLobby(h.ctx, h.arena, state, opts...)
				h.rooms[id] = lb
				h.order = append(h.order, id)
				h.log.Info("room created", zap.String("room", id), zap.Int("players_per_team", msg.Mode.PlayersPerTeam))
				msg.Reply <- lb

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // May be nil

			case ListRooms:
				out := make([]*lobby.Lobby, 0, len(h.order))
				for _, id := range h.order {
					out = append(out, h.rooms[id])
				}
				msg.Reply <- out

			case RemoveRoom:
				if _, ok := h.rooms[msg.ID]; !ok {
					break
				}
				delete(h.rooms, msg.ID)
				for i, id := range h.order {
					if id == msg.ID {
						h.order = append(h.order[:i], h.order[i+1:]...)
						break
					}
				}
				h.log.Info("room removed", zap.String("room", msg.ID))

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

// forget runs on a lobby goroutine when the lobby stops.
func (h *Hub) forget(id string) {
	select {
	case h.inbox <- RemoveRoom{ID: id}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.rooms {
		lb.Close()
	}
	clear(h.rooms)
	h.order = nil
	h.cancel()
}

func (h *Hub) Create(ctx context.Context, mode engine.Mode) (*lobby.Lobby, error) {
	if mode.PlayersPerTeam < 1 || (mode.MaxLevel > 0 && mode.MinLevel > mode.MaxLevel) {
		return nil, ErrInvalidMode
	}
	reply := make(chan *lobby.Lobby, 1)
	lb, err := call(ctx, h, CreateRoom{Mode: mode, Reply: reply}, reply)
	if err == nil && lb == nil {
		err = errors.New("failed to create room")
	}
	return lb, err
}

// Get returns the live room with id, or nil.
func (h *Hub) Get(ctx context.Context, id string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	return call(ctx, h, GetRoom{ID: id, Reply: reply}, reply)
}

func (h *Hub) List(ctx context.Context) ([]*lobby.Lobby, error) {
	reply := make(chan []*lobby.Lobby, 1)
	return call(ctx, h, ListRooms{Reply: reply}, reply)
}

func call[T any](ctx context.Context, h *Hub, m HubMsg, reply chan T) (T, error) {
	var zero T
	select {
	case h.inbox <- m:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.done:
		return zero, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.done:
		return zero, ErrClosed
	}
}
