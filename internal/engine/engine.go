package engine

import (
	"errors"
	"time"
)

// ErrRejected is the parent of every precondition failure. Callers that only
// care whether an action may be sent test errors.Is(err, ErrRejected).
var ErrRejected = errors.New("action rejected")

var ErrStunned = rejection("actor is stunned")
var ErrTargetRequired = rejection("target required")
var ErrTechniqueCooldown = rejection("technique on cooldown")
var ErrGlobalCooldown = rejection("action cooldown active")
var ErrInsufficientEnergy = rejection("insufficient energy")
var ErrUnknownTechnique = rejection("unknown technique")
var ErrUnsupportedAction = rejection("unsupported action type")

var ErrInvalidTransition = errors.New("invalid room transition")

type rejectedError struct{ msg string }

func (e *rejectedError) Error() string        { return e.msg }
func (e *rejectedError) Is(target error) bool { return target == ErrRejected }

func rejection(msg string) error { return &rejectedError{msg: msg} }

// GlobalCooldown is the minimum gap between two resolved actions of one participant.
const GlobalCooldown = 5 * time.Second

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDismissed  Status = "dismissed"
)

type Mode struct {
	PlayersPerTeam int
	MinLevel       int
	MaxLevel       int
}

// Teams in a room are always numbered 1 and 2.
const (
	TeamOne = 1
	TeamTwo = 2
)

type Room struct {
	ID           string
	Status       Status
	Mode         Mode
	WinnerTeam   int // 0 until decided
	Tick         uint64
	Participants []Participant
}

type Participant struct {
	ID       string
	UserID   string
	Team     int
	Position int
	Username string
	Level    int

	HP        int
	MaxHP     int
	Energy    int
	MaxEnergy int

	Effects        []Effect
	Cooldowns      map[string]time.Time // technique id -> expiry
	LastActionTime time.Time
	LastTick       uint64
}

func (p Participant) Alive() bool { return p.HP > 0 }

type ActionType string

const (
	ActionAttack    ActionType = "attack"
	ActionDefense   ActionType = "defense"
	ActionTechnique ActionType = "technique"
)

// Intent is what a player asks for. The service turns it into an Action.
type Intent struct {
	Type        ActionType `json:"type"`
	TargetID    string     `json:"targetId,omitempty"`
	TechniqueID string     `json:"techniqueId,omitempty"`
}

type Action struct {
	ID             int64
	ActorID        string
	TargetID       string
	Type           ActionType
	TechniqueID    string
	Damage         int
	Healing        int
	AppliedEffects []Effect
	Timestamp      time.Time
}
