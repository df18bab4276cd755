// Package types holds the JSON records exchanged between the room service and its clients.
// Timestamps are unix milliseconds.
package types

import "encoding/json"

type Mode struct {
	PlayersPerTeam int `json:"playersPerTeam"`
	MinLevel       int `json:"minLevel,omitempty"`
	MaxLevel       int `json:"maxLevel,omitempty"`
}

type Room struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Mode       Mode            `json:"mode"`
	WinnerTeam *int            `json:"winnerTeam,omitempty"`
	Tick       uint64          `json:"tick,omitempty"`
	Rewards    json.RawMessage `json:"rewards,omitempty"`
}

// Effect carries either the turn pair (duration, elapsedTurns) or the
// wall-clock pair (durationMs, startTime). Both may be missing on old rows.
type Effect struct {
	Type         string `json:"type"`
	Name         string `json:"name,omitempty"`
	Icon         string `json:"icon,omitempty"`
	Count        int    `json:"count,omitempty"`
	Duration     *int   `json:"duration,omitempty"`
	ElapsedTurns *int   `json:"elapsedTurns,omitempty"`
	DurationMs   *int64 `json:"durationMs,omitempty"`
	StartTime    *int64 `json:"startTime,omitempty"`
	Damage       *int   `json:"damage,omitempty"`
}

type Participant struct {
	ParticipantID  string           `json:"participantId"`
	UserID         string           `json:"userId"`
	Team           int              `json:"team"`
	Position       int              `json:"position"`
	Username       string           `json:"username"`
	Level          int              `json:"level"`
	CurrentHP      int              `json:"currentHp"`
	MaxHP          int              `json:"maxHp"`
	CurrentEnergy  int              `json:"currentEnergy"`
	MaxEnergy      int              `json:"maxEnergy"`
	Effects        []Effect         `json:"effects"`
	Cooldowns      map[string]int64 `json:"cooldowns,omitempty"`
	LastActionTime int64            `json:"lastActionTime,omitempty"`
	LastTick       uint64           `json:"lastTick,omitempty"`
}

type Action struct {
	ID             int64    `json:"id"`
	ActorID        string   `json:"actorId"`
	TargetID       string   `json:"targetId,omitempty"`
	Type           string   `json:"type"`
	TechniqueID    string   `json:"techniqueId,omitempty"`
	Damage         int      `json:"damage"`
	Healing        int      `json:"healing"`
	AppliedEffects []Effect `json:"appliedEffects,omitempty"`
	Timestamp      int64    `json:"timestamp"`
}

type TeamSlot struct {
	ParticipantID string `json:"participantId"`
	UserID        string `json:"userId"`
	Position      int    `json:"position"`
	Username      string `json:"username,omitempty"`
}

// RoomDetails is the full room view returned by GET /rooms/{id}.
type RoomDetails struct {
	Room         Room                  `json:"room"`
	Participants []Participant         `json:"participants"`
	Teams        map[string][]TeamSlot `json:"teams,omitempty"`
	Actions      []Action              `json:"actions"`
}

// RoomState is the incremental poll view. Actions holds only ids above the
// requested cursor.
type RoomState struct {
	Room         Room            `json:"room"`
	Participants []Participant   `json:"participants"`
	Actions      []Action        `json:"actions"`
	Rewards      json.RawMessage `json:"rewards,omitempty"`
}

type RoomSummary struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Mode     Mode   `json:"mode"`
	Occupied int    `json:"occupied"`
	Capacity int    `json:"capacity"`
}

type Reward struct {
	Result       string   `json:"result,omitempty"`
	Experience   int      `json:"experience,omitempty"`
	Currency     int      `json:"currency,omitempty"`
	RatingChange int      `json:"ratingChange,omitempty"`
	Items        []string `json:"items,omitempty"`
}

// Empty reports whether r carries no reward information at all.
func (r Reward) Empty() bool {
	return r.Result == "" && r.Experience == 0 && r.Currency == 0 && r.RatingChange == 0 && len(r.Items) == 0
}
