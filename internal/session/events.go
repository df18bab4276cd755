package session

import (
	"context"

	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/internal/rewards"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

type EventType string

const (
	EventSnapshot       EventType = "snapshot"
	EventRoomList       EventType = "room_list"
	EventActionResolved EventType = "action_resolved"
	EventTargetRequired EventType = "target_required"
	EventTerminal       EventType = "terminal"
	EventReset          EventType = "reset"
	EventError          EventType = "error"
	EventWarning        EventType = "warning"
)

type Resolution struct {
	Intent  engine.Intent `json:"intent"`
	Damage  int           `json:"damage"`
	Healing int           `json:"healing"`
}

// Event is a notification for the presentation layer. Only the fields that
// belong to Type are set.
type Event struct {
	Type     EventType
	RoomID   string
	View     *View
	Rooms    []types.RoomSummary
	Resolved *Resolution
	Intent   *engine.Intent
	Outcome  *rewards.Outcome
	Summary  string
	Detail   string
}

// Pending tracks one submitted action until the service answers.
type Pending struct {
	Intent engine.Intent

	done   chan struct{}
	result types.ActionResult
	err    error
}

func newPending(in engine.Intent) *Pending {
	return &Pending{Intent: in, done: make(chan struct{})}
}

func (p *Pending) complete(res types.ActionResult, err error) {
	p.result, p.err = res, err
	close(p.done)
}

func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the service answered or ctx ends.
func (p *Pending) Wait(ctx context.Context) (types.ActionResult, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return types.ActionResult{}, ctx.Err()
	}
}
