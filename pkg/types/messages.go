package types

import "time"

// POST /rooms
type CreateRoomRequest struct {
	Mode Mode `json:"mode"`
}

type CreateRoomResponse struct {
	ID string `json:"id"`
}

// POST /rooms/{id}/join
type JoinRequest struct {
	Team     int `json:"team"`
	Position int `json:"position"`
}

type JoinResult struct {
	Success          bool `json:"success"`
	PositionChanged  bool `json:"positionChanged,omitempty"`
	PreviousTeam     *int `json:"previousTeam,omitempty"`
	PreviousPosition *int `json:"previousPosition,omitempty"`
	RoomStarted      bool `json:"roomStarted,omitempty"`
}

// POST /rooms/{id}/actions
type ActionRequest struct {
	Type        string `json:"type"`
	TargetID    string `json:"targetId,omitempty"`
	TechniqueID string `json:"techniqueId,omitempty"`
}

type ActionResult struct {
	Success bool   `json:"success"`
	Damage  *int   `json:"damage,omitempty"`
	Healing *int   `json:"healing,omitempty"`
	Error   string `json:"error,omitempty"`
}

type TechniqueEffect struct {
	Type       string `json:"type" yaml:"type"`
	Name       string `json:"name,omitempty" yaml:"name"`
	Duration   int    `json:"duration,omitempty" yaml:"duration"`
	DurationMs int64  `json:"durationMs,omitempty" yaml:"durationMs"`
	Damage     int    `json:"damage,omitempty" yaml:"damage"`
	OnSelf     bool   `json:"onSelf,omitempty" yaml:"onSelf"`
}

// Technique is read-only catalog data. Cooldown is in seconds.
type Technique struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	Type       string            `json:"type" yaml:"type"`
	TargetType string            `json:"targetType,omitempty" yaml:"targetType"`
	Damage     int               `json:"damage,omitempty" yaml:"damage"`
	Healing    int               `json:"healing,omitempty" yaml:"healing"`
	EnergyCost int               `json:"energyCost,omitempty" yaml:"energyCost"`
	Cooldown   int               `json:"cooldown,omitempty" yaml:"cooldown"`
	Effects    []TechniqueEffect `json:"effects,omitempty" yaml:"effects"`
}

// GET /techniques
type TechniqueCatalog struct {
	Techniques    []Technique `json:"techniques" yaml:"techniques"`
	SelfTargetIDs []string    `json:"selfTargetIds,omitempty" yaml:"selfTargetIds"`
}

type LeaderboardEntry struct {
	Rank   int64  `json:"rank"`
	UserID string `json:"userId"`
	Rating int    `json:"rating"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
}

type MatchHistoryEntry struct {
	RoomID       string    `json:"roomId"`
	Team         int       `json:"team"`
	WinnerTeam   int       `json:"winnerTeam"`
	Result       string    `json:"result"`
	RatingChange int       `json:"ratingChange"`
	DamageDealt  int       `json:"damageDealt"`
	HealingDone  int       `json:"healingDone"`
	Forfeited    bool      `json:"forfeited"`
	EndedAt      time.Time `json:"endedAt"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
