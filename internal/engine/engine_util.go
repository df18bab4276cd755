package engine

import (
	"maps"
	"slices"
	"time"

	"github.com/zxckotee/pvp-arena/pkg/types"
)

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// Clone returns a deep copy so reducers can mutate freely.
func (p Participant) Clone() Participant {
	p.Effects = slices.Clone(p.Effects)
	p.Cooldowns = maps.Clone(p.Cooldowns)
	if p.Cooldowns == nil {
		p.Cooldowns = map[string]time.Time{}
	}
	return p
}

func (r Room) Clone() Room {
	ps := make([]Participant, len(r.Participants))
	for i, p := range r.Participants {
		ps[i] = p.Clone()
	}
	r.Participants = ps
	return r
}

// Participant returns the index of the participant with the given id, or -1.
func (r Room) Participant(id string) int {
	return slices.IndexFunc(r.Participants, func(p Participant) bool { return p.ID == id })
}

func (r Room) ParticipantByUser(userID string) (Participant, bool) {
	i := slices.IndexFunc(r.Participants, func(p Participant) bool { return p.UserID == userID })
	if i < 0 {
		return Participant{}, false
	}
	return r.Participants[i], true
}

func ParticipantToWire(p Participant) types.Participant {
	w := types.Participant{
		ParticipantID:  p.ID,
		UserID:         p.UserID,
		Team:           p.Team,
		Position:       p.Position,
		Username:       p.Username,
		Level:          p.Level,
		CurrentHP:      p.HP,
		MaxHP:          p.MaxHP,
		CurrentEnergy:  p.Energy,
		MaxEnergy:      p.MaxEnergy,
		Effects:        make([]types.Effect, 0, len(p.Effects)),
		LastActionTime: toMillis(p.LastActionTime),
		LastTick:       p.LastTick,
	}
	for _, e := range p.Effects {
		w.Effects = append(w.Effects, EffectToWire(e))
	}
	if len(p.Cooldowns) > 0 {
		w.Cooldowns = make(map[string]int64, len(p.Cooldowns))
		for id, until := range p.Cooldowns {
			w.Cooldowns[id] = until.UnixMilli()
		}
	}
	return w
}

func ActionToWire(a Action) types.Action {
	w := types.Action{
		ID:          a.ID,
		ActorID:     a.ActorID,
		TargetID:    a.TargetID,
		Type:        string(a.Type),
		TechniqueID: a.TechniqueID,
		Damage:      a.Damage,
		Healing:     a.Healing,
		Timestamp:   toMillis(a.Timestamp),
	}
	for _, e := range a.AppliedEffects {
		w.AppliedEffects = append(w.AppliedEffects, EffectToWire(e))
	}
	return w
}

func ActionFromWire(w types.Action) Action {
	a := Action{
		ID:          w.ID,
		ActorID:     w.ActorID,
		TargetID:    w.TargetID,
		Type:        ActionType(w.Type),
		TechniqueID: w.TechniqueID,
		Damage:      w.Damage,
		Healing:     w.Healing,
		Timestamp:   fromMillis(w.Timestamp),
	}
	for _, we := range w.AppliedEffects {
		e, _ := EffectFromWire(we)
		a.AppliedEffects = append(a.AppliedEffects, e)
	}
	return a
}

func ModeFromWire(m types.Mode) Mode {
	return Mode{PlayersPerTeam: m.PlayersPerTeam, MinLevel: m.MinLevel, MaxLevel: m.MaxLevel}
}

func ModeToWire(m Mode) types.Mode {
	return types.Mode{PlayersPerTeam: m.PlayersPerTeam, MinLevel: m.MinLevel, MaxLevel: m.MaxLevel}
}

// RoomToWire renders the room header. Participants travel separately.
func RoomToWire(r Room) types.Room {
	w := types.Room{ID: r.ID, Status: string(r.Status), Mode: ModeToWire(r.Mode), Tick: r.Tick}
	if r.WinnerTeam != 0 {
		team := r.WinnerTeam
		w.WinnerTeam = &team
	}
	return w
}
