package hub

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/zxckotee/pvp-arena/internal/arena"
	"github.com/zxckotee/pvp-arena/internal/catalog"
	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/internal/lobby"
)

func testArena(t *testing.T) *arena.Arena {
	t.Helper()
	cat := catalog.New(catalog.Static(catalog.Defaults()), nil)
	if err := cat.Init(context.Background()); err != nil {
		t.Fatalf("catalog init: %v", err)
	}
	return arena.New(cat, nil)
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, testArena(t))
	reply := make(chan *lobby.Lobby, 1)

	h.Inbox() <- CreateRoom{Mode: engine.Mode{PlayersPerTeam: 1}, Reply: reply}
	lb1 := <-reply

	h.Inbox() <- GetRoom{ID: lb1.ID(), Reply: reply}
	lb2 := <-reply

	if lb1 == nil || lb2 == nil || lb1 != lb2 {
		t.Fatalf("expected same lobby pointer")
	}
	h.Inbox() <- ShutdownHub{}
	<-h.Done()
}

func TestHub_ListKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	n := 0
	h := NewHub(ctx, testArena(t), WithIDs(func() string {
		n++
		return fmt.Sprintf("room-%d", n)
	}))
	defer func() { h.Inbox() <- ShutdownHub{} }()

	for range 3 {
		if _, err := h.Create(ctx, engine.Mode{PlayersPerTeam: 1}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	rooms, err := h.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rooms) != 3 || rooms[0].ID() != "room-1" || rooms[2].ID() != "room-3" {
		t.Fatalf("unexpected order: %v", rooms)
	}

	h.Inbox() <- RemoveRoom{ID: "room-2"}
	rooms, _ = h.List(ctx)
	if len(rooms) != 2 || rooms[1].ID() != "room-3" {
		t.Fatalf("remove did not drop room-2")
	}
}

func TestHub_CreateRejectsBadMode(t *testing.T) {
	h := NewHub(context.Background(), testArena(t))
	defer func() { h.Inbox() <- ShutdownHub{} }()

	for _, m := range []engine.Mode{{PlayersPerTeam: 0}, {PlayersPerTeam: 1, MinLevel: 5, MaxLevel: 2}} {
		if _, err := h.Create(context.Background(), m); !errors.Is(err, ErrInvalidMode) {
			t.Fatalf("mode %+v: want ErrInvalidMode, got %v", m, err)
		}
	}
}

func TestHub_ExpiredRoomIsForgotten(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, testArena(t), WithLobbyOptions(lobby.WithRetention(10*time.Millisecond), lobby.WithTickInterval(0)))
	defer func() { h.Inbox() <- ShutdownHub{} }()

	lb, err := h.Create(ctx, engine.Mode{PlayersPerTeam: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i, user := range []string{"u1", "u2"} {
		cmd := arena.Command{Type: arena.CmdJoin, Player: arena.Player{UserID: user, Level: 1}, Team: i + 1, Position: 1}
		if _, err := lb.Do(ctx, cmd); err != nil {
			t.Fatalf("join %s: %v", user, err)
		}
	}
	if _, err := lb.Do(ctx, arena.Command{Type: arena.CmdDismiss}); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		got, _ := h.Get(ctx, lb.ID())
		if got == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room still registered after retention")
}

func TestHub_ShutdownClosesRooms(t *testing.T) {
	h := NewHub(context.Background(), testArena(t))
	lb, err := h.Create(context.Background(), engine.Mode{PlayersPerTeam: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	h.Inbox() <- ShutdownHub{}
	select {
	case <-lb.Done():
	case <-time.After(time.Second):
		t.Fatalf("lobby still running after hub shutdown")
	}
	if _, err := h.Get(context.Background(), lb.ID()); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}
