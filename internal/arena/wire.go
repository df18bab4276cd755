package arena

import (
	"encoding/json"

	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

// Snapshot renders the poll view. Only actions with an id above lastActionID
// are included; rewards appear once the match is over.
func (s State) Snapshot(lastActionID int64) types.RoomState {
	st := types.RoomState{
		Room:         engine.RoomToWire(s.Room),
		Participants: participantsToWire(s.Room.Participants),
		Actions:      []types.Action{},
	}
	for _, a := range s.Actions {
		if a.ID > lastActionID {
			st.Actions = append(st.Actions, engine.ActionToWire(a))
		}
	}
	if s.Room.Status.Terminal() && len(s.Rewards) > 0 {
		st.Rewards, _ = json.Marshal(s.Rewards)
	}
	return st
}

func (s State) Details() types.RoomDetails {
	d := types.RoomDetails{
		Room:         engine.RoomToWire(s.Room),
		Participants: participantsToWire(s.Room.Participants),
		Teams:        engine.TeamsToWire(s.Room.Participants),
		Actions:      make([]types.Action, 0, len(s.Actions)),
	}
	for _, a := range s.Actions {
		d.Actions = append(d.Actions, engine.ActionToWire(a))
	}
	if s.Room.Status.Terminal() && len(s.Rewards) > 0 {
		d.Room.Rewards, _ = json.Marshal(s.Rewards)
	}
	return d
}

func (s State) Summary() types.RoomSummary {
	return types.RoomSummary{
		ID:       s.Room.ID,
		Status:   string(s.Room.Status),
		Mode:     engine.ModeToWire(s.Room.Mode),
		Occupied: s.Room.Occupied(),
		Capacity: s.Room.Mode.Capacity(),
	}
}

func participantsToWire(ps []engine.Participant) []types.Participant {
	out := make([]types.Participant, 0, len(ps))
	for _, p := range ps {
		out = append(out, engine.ParticipantToWire(p))
	}
	return out
}
