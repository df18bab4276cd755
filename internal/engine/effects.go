package engine

import (
	"time"

	"github.com/zxckotee/pvp-arena/pkg/types"
)

type EffectType string

const (
	EffectRegenerate EffectType = "regenerate"
	EffectWeaken     EffectType = "weaken"
	EffectProtect    EffectType = "protect"
	EffectSpeed      EffectType = "speed"
	EffectBurn       EffectType = "burn"
	EffectBleed      EffectType = "bleed"
	EffectStun       EffectType = "stun"
	EffectBuff       EffectType = "buff"
	EffectDebuff     EffectType = "debuff"
)

type DurationKind uint8

const (
	DurationTurns DurationKind = iota + 1
	DurationTimed
)

// TurnLength is how long one turn lasts when a turn-based effect has to be
// compared with a timed one. It matches the in-match poll cadence.
const TurnLength = time.Second

// DefaultEffectTurns is the duration given to an effect whose record carries no
// usable duration.
const DefaultEffectTurns = 3

// DefaultTickDamage is the per-tick damage of burn and bleed when unspecified.
const DefaultTickDamage = 8

// Effect is a status effect with exactly one duration representation,
// selected by Kind.
type Effect struct {
	Type  EffectType
	Name  string
	Icon  string
	Count int

	Kind DurationKind

	// DurationTurns
	Turns        int
	ElapsedTurns int

	// DurationTimed
	Lifetime  time.Duration
	StartedAt time.Time

	// Per-tick damage for burn and bleed; 0 means DefaultTickDamage.
	Damage int
}

func TurnEffect(t EffectType, turns int) Effect {
	return Effect{Type: t, Name: string(t), Count: 1, Kind: DurationTurns, Turns: turns}
}

func TimedEffect(t EffectType, lifetime time.Duration, start time.Time) Effect {
	return Effect{Type: t, Name: string(t), Count: 1, Kind: DurationTimed, Lifetime: lifetime, StartedAt: start}
}

// Remaining is the time left before the effect expires, never negative.
func (e Effect) Remaining(now time.Time) time.Duration {
	var left time.Duration
	switch e.Kind {
	case DurationTimed:
		left = e.Lifetime - now.Sub(e.StartedAt)
	default:
		left = time.Duration(e.Turns-e.ElapsedTurns) * TurnLength
	}
	return max(0, left)
}

func (e Effect) Expired(now time.Time) bool { return e.Remaining(now) <= 0 }

func (e Effect) count() int { return max(1, e.Count) }

func (e Effect) tickDamage() int {
	if e.Damage > 0 {
		return e.Damage
	}
	return DefaultTickDamage
}

// EffectFromWire converts a wire record. A record with neither duration pair
// is malformed and comes back as a DefaultEffectTurns effect.
func EffectFromWire(w types.Effect) (Effect, bool) {
	e := Effect{
		Type:  EffectType(w.Type),
		Name:  w.Name,
		Icon:  w.Icon,
		Count: max(1, w.Count),
	}
	if e.Name == "" {
		e.Name = w.Type
	}
	if w.Damage != nil {
		e.Damage = *w.Damage
	}

	switch {
	case w.Duration != nil:
		e.Kind = DurationTurns
		e.Turns = *w.Duration
		if w.ElapsedTurns != nil {
			e.ElapsedTurns = *w.ElapsedTurns
		}
		return e, false
	case w.DurationMs != nil && w.StartTime != nil:
		e.Kind = DurationTimed
		e.Lifetime = time.Duration(*w.DurationMs) * time.Millisecond
		e.StartedAt = time.UnixMilli(*w.StartTime)
		return e, false
	default:
		e.Kind = DurationTurns
		e.Turns = DefaultEffectTurns
		return e, true
	}
}

func EffectToWire(e Effect) types.Effect {
	w := types.Effect{
		Type:  string(e.Type),
		Name:  e.Name,
		Icon:  e.Icon,
		Count: e.count(),
	}
	if e.Damage > 0 {
		d := e.Damage
		w.Damage = &d
	}
	switch e.Kind {
	case DurationTimed:
		ms := e.Lifetime.Milliseconds()
		start := e.StartedAt.UnixMilli()
		w.DurationMs, w.StartTime = &ms, &start
	default:
		turns, elapsed := e.Turns, e.ElapsedTurns
		w.Duration, w.ElapsedTurns = &turns, &elapsed
	}
	return w
}
