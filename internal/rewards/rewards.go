// Package rewards resolves the local player's match outcome from a terminal
// room snapshot and tears the room down afterwards.
package rewards

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/pkg/types"
)

type Result string

const (
	ResultWin  Result = "win"
	ResultLose Result = "lose"
)

// Shape records where in the snapshot the reward was found.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeByUser
	ShapeFlat
	ShapeRoomByUser
	ShapeRoomFlat
)

func (s Shape) String() string {
	switch s {
	case ShapeByUser:
		return "rewards[user]"
	case ShapeFlat:
		return "rewards"
	case ShapeRoomByUser:
		return "room.rewards[user]"
	case ShapeRoomFlat:
		return "room.rewards"
	default:
		return "none"
	}
}

type Outcome struct {
	Result       Result       `json:"result"`
	Rewards      types.Reward `json:"rewards"`
	RatingChange int          `json:"ratingChange"`
	Shape        Shape        `json:"-"`
}

// Extract finds the reward for userID. The lookup order is rewards[userID],
// rewards, room.rewards[userID], room.rewards; the first non-empty one wins.
// The second return is false when no shape carried anything.
func Extract(state types.RoomState, userID string, localTeam int) (Outcome, bool) {
	out := Outcome{Result: resultFromWinner(state.Room.WinnerTeam, localTeam)}

	probes := []struct {
		raw   json.RawMessage
		byKey bool
		shape Shape
	}{
		{state.Rewards, true, ShapeByUser},
		{state.Rewards, false, ShapeFlat},
		{state.Room.Rewards, true, ShapeRoomByUser},
		{state.Room.Rewards, false, ShapeRoomFlat},
	}
	for _, p := range probes {
		r, ok := probe(p.raw, userID, p.byKey)
		if !ok {
			continue
		}
		out.Rewards, out.RatingChange, out.Shape = r, r.RatingChange, p.shape
		switch Result(r.Result) {
		case ResultWin, ResultLose:
			out.Result = Result(r.Result)
		}
		return out, true
	}
	return out, false
}

func probe(raw json.RawMessage, userID string, byKey bool) (types.Reward, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return types.Reward{}, false
	}
	if byKey {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return types.Reward{}, false
		}
		entry, ok := m[userID]
		if !ok {
			return types.Reward{}, false
		}
		raw = entry
	}
	var r types.Reward
	if err := json.Unmarshal(raw, &r); err != nil || r.Empty() {
		return types.Reward{}, false
	}
	return r, true
}

func resultFromWinner(winner *int, localTeam int) Result {
	if winner != nil && *winner == localTeam {
		return ResultWin
	}
	return ResultLose
}

var ErrDismissFailed = errors.New("room dismiss failed")

type Dismisser interface {
	DismissRoom(ctx context.Context, roomID string) error
}

type Teardown struct {
	svc     Dismisser
	log     *zap.Logger
	timeout time.Duration
}

func NewTeardown(svc Dismisser, log *zap.Logger, timeout time.Duration) *Teardown {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Teardown{svc: svc, log: log.Named("teardown"), timeout: timeout}
}

// Run dismisses the room and then calls reset, whether or not the dismiss went
// through. A failed dismiss is returned wrapped in ErrDismissFailed.
func (t *Teardown) Run(ctx context.Context, roomID string, reset func()) error {
	if reset != nil {
		defer reset()
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.svc.DismissRoom(ctx, roomID); err != nil {
		t.log.Warn("dismiss failed, resetting anyway", zap.String("room", roomID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrDismissFailed, err)
	}
	t.log.Debug("room dismissed", zap.String("room", roomID))
	return nil
}
