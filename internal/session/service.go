package session

import (
	"context"

	"github.com/zxckotee/pvp-arena/pkg/types"
)

//go:generate go tool mockgen -destination=./mocks/room_service_mock.go -package=mocks . RoomService

// RoomService is the authoritative room API the session talks to.
type RoomService interface {
	ListRooms(ctx context.Context) ([]types.RoomSummary, error)
	GetRoomDetails(ctx context.Context, roomID string) (types.RoomDetails, error)
	GetRoomState(ctx context.Context, roomID string, lastActionID int64) (types.RoomState, error)
	PerformAction(ctx context.Context, roomID string, req types.ActionRequest) (types.ActionResult, error)
	JoinRoom(ctx context.Context, roomID string, team, position int) (types.JoinResult, error)
	LeaveRoom(ctx context.Context, roomID string) error
	DismissRoom(ctx context.Context, roomID string) error
}
