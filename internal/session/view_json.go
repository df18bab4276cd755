package session

import (
	"encoding/json"

	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/internal/rewards"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

// Views leave the process in the same camelCase shape as the room service
// records: effects and actions in their wire form, durations in milliseconds.

type participantJSON struct {
	types.Participant
	StatsModifiers engine.Modifiers `json:"statsModifiers"`
	Stunned        bool             `json:"stunned"`
	CanAct         bool             `json:"canAct"`
	Predicted      bool             `json:"predicted,omitempty"`
}

func (p ParticipantView) MarshalJSON() ([]byte, error) {
	return json.Marshal(participantJSON{
		Participant:    engine.ParticipantToWire(p.Participant),
		StatsModifiers: p.Modifiers,
		Stunned:        p.Stunned,
		CanAct:         p.CanAct,
		Predicted:      p.Predicted,
	})
}

type viewJSON struct {
	RoomID              string              `json:"roomId,omitempty"`
	Status              engine.Status       `json:"status,omitempty"`
	Mode                types.Mode          `json:"mode"`
	WinnerTeam          int                 `json:"winnerTeam,omitempty"`
	Tick                uint64              `json:"tick"`
	SelfID              string              `json:"selfId,omitempty"`
	Participants        []ParticipantView   `json:"participants"`
	Teams               map[int][]string    `json:"teams,omitempty"`
	Log                 []types.Action      `json:"log"`
	LastActionID        int64               `json:"lastActionId"`
	CooldownRemainingMs int64               `json:"cooldownRemainingMs"`
	Submitting          bool                `json:"submitting"`
	Selection           Selection           `json:"selection"`
	Outcome             *rewards.Outcome    `json:"outcome,omitempty"`
	Rooms               []types.RoomSummary `json:"rooms,omitempty"`
}

func (v View) MarshalJSON() ([]byte, error) {
	out := viewJSON{
		RoomID:              v.RoomID,
		Status:              v.Status,
		Mode:                engine.ModeToWire(v.Mode),
		WinnerTeam:          v.WinnerTeam,
		Tick:                v.Tick,
		SelfID:              v.SelfID,
		Participants:        v.Participants,
		Teams:               v.Teams,
		Log:                 make([]types.Action, 0, len(v.Log)),
		LastActionID:        v.LastActionID,
		CooldownRemainingMs: v.CooldownRemaining.Milliseconds(),
		Submitting:          v.Submitting,
		Selection:           v.Selection,
		Outcome:             v.Outcome,
		Rooms:               v.Rooms,
	}
	if out.Participants == nil {
		out.Participants = []ParticipantView{}
	}
	for _, a := range v.Log {
		out.Log = append(out.Log, engine.ActionToWire(a))
	}
	return json.Marshal(out)
}
