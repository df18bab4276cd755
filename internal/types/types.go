package types

import (
	"github.com/zxckotee/pvp-arena/internal/rewards"
	"github.com/zxckotee/pvp-arena/internal/session"
	wire "github.com/zxckotee/pvp-arena/pkg/types"
)

type ClientMessage struct {
	Type        string `json:"type"` // "Attack" | "Defense" | "Technique" | "Select" | "Join" | "Enter" | "Leave" | "Browse" | "View"
	// Select only: "attack" | "defense" | "technique"
	Action      string `json:"action,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
	TechniqueID string `json:"technique_id,omitempty"`
	RoomID      string `json:"room_id,omitempty"`
	Team        int    `json:"team,omitempty"`
	Position    int    `json:"position,omitempty"`
}

type ServerMessage struct {
	Type     string               `json:"type"` // "Snapshot" | "RoomList" | "ActionResolved" | "TargetRequired" | "Terminal" | "Reset" | "Joined" | "RoomState" | "Warning" | "Error"
	Version  int                  `json:"version,omitempty"`
	RoomID   string               `json:"room_id,omitempty"`
	View     *session.View        `json:"view,omitempty"`
	Rooms    []wire.RoomSummary   `json:"rooms,omitempty"`
	State    *wire.RoomState      `json:"state,omitempty"`
	Resolved *session.Resolution  `json:"resolved,omitempty"`
	Outcome  *rewards.Outcome     `json:"outcome,omitempty"`
	Join     *session.JoinOutcome `json:"join,omitempty"`
	Error    string               `json:"error,omitempty"`
	Detail   string               `json:"detail,omitempty"`
}
