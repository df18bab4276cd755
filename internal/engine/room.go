package engine

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/zxckotee/pvp-arena/pkg/types"
)

var transitions = map[Status][]Status{
	StatusWaiting:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusDismissed},
	StatusCompleted:  {StatusDismissed},
}

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusDismissed }

func (s Status) AcceptsActions() bool { return s == StatusInProgress }

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusCompleted, StatusDismissed:
		return true
	}
	return false
}

// ParseStatus reads a wire status. Unknown values are reported and read as waiting.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	if !s.Valid() {
		return StatusWaiting, false
	}
	return s, true
}

func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Transition moves r to status to. Dismissing a dismissed room is a no-op.
func Transition(r Room, to Status) (Room, error) {
	if r.Status == StatusDismissed && to == StatusDismissed {
		return r, nil
	}
	if !CanTransition(r.Status, to) {
		return r, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	return r, nil
}

func (m Mode) Capacity() int { return 2 * m.PlayersPerTeam }

func (m Mode) ValidSlot(team, position int) bool {
	return (team == TeamOne || team == TeamTwo) && position >= 1 && position <= m.PlayersPerTeam
}

func (m Mode) LevelAllowed(level int) bool {
	if m.MinLevel > 0 && level < m.MinLevel {
		return false
	}
	if m.MaxLevel > 0 && level > m.MaxLevel {
		return false
	}
	return true
}

// SlotTaken returns the occupant of (team, position), if any.
func (r Room) SlotTaken(team, position int) (Participant, bool) {
	for _, p := range r.Participants {
		if p.Team == team && p.Position == position {
			return p, true
		}
	}
	return Participant{}, false
}

func (r Room) Full() bool {
	for team := TeamOne; team <= TeamTwo; team++ {
		for pos := 1; pos <= r.Mode.PlayersPerTeam; pos++ {
			if _, ok := r.SlotTaken(team, pos); !ok {
				return false
			}
		}
	}
	return r.Mode.PlayersPerTeam > 0
}

func (r Room) Occupied() int {
	n := 0
	for _, p := range r.Participants {
		if r.Mode.ValidSlot(p.Team, p.Position) {
			n++
		}
	}
	return n
}

func (r Room) FreeSlots() int { return max(0, r.Mode.Capacity()-r.Occupied()) }

// Teams projects the participant list onto team number, ordered by position.
func (r Room) Teams() map[int][]Participant {
	return ProjectTeams(r.Participants)
}

func ProjectTeams(ps []Participant) map[int][]Participant {
	teams := map[int][]Participant{TeamOne: {}, TeamTwo: {}}
	for _, p := range ps {
		teams[p.Team] = append(teams[p.Team], p)
	}
	for _, members := range teams {
		slices.SortFunc(members, func(a, b Participant) int { return cmp.Compare(a.Position, b.Position) })
	}
	return teams
}

// TeamDefeated reports whether every member of team is down. An empty team is
// not defeated.
func (r Room) TeamDefeated(team int) bool {
	members := r.Teams()[team]
	if len(members) == 0 {
		return false
	}
	for _, p := range members {
		if p.Alive() {
			return false
		}
	}
	return true
}

func OpposingTeam(team int) int {
	if team == TeamOne {
		return TeamTwo
	}
	return TeamOne
}

// CheckTeams compares a reported team index with the participant projection
// and describes every disagreement. Nil means they agree.
func CheckTeams(reported map[string][]types.TeamSlot, ps []Participant) []string {
	if reported == nil {
		return []string{"teams index missing"}
	}
	var drift []string
	projected := ProjectTeams(ps)
	for team := TeamOne; team <= TeamTwo; team++ {
		key := strconv.Itoa(team)
		got, want := len(reported[key]), len(projected[team])
		if got != want {
			drift = append(drift, fmt.Sprintf("team %s lists %d members, participants show %d", key, got, want))
		}
	}
	return drift
}

// TeamsToWire renders the projection in the {"1": [...], "2": [...]} shape.
func TeamsToWire(ps []Participant) map[string][]types.TeamSlot {
	out := make(map[string][]types.TeamSlot, 2)
	for team, members := range ProjectTeams(ps) {
		slots := make([]types.TeamSlot, 0, len(members))
		for _, p := range members {
			slots = append(slots, types.TeamSlot{ParticipantID: p.ID, UserID: p.UserID, Position: p.Position, Username: p.Username})
		}
		out[strconv.Itoa(team)] = slots
	}
	return out
}
