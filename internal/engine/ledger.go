package engine

import (
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/pkg/types"
)

type Modifiers struct {
	DamageMult      float64 `json:"damageMult"`
	DefenseMult     float64 `json:"defenseMult"`
	SpeedMult       float64 `json:"speedMult"`
	EnergyRegenFlat int     `json:"energyRegenFlat"`
}

func BaseModifiers() Modifiers {
	return Modifiers{DamageMult: 1, DefenseMult: 1, SpeedMult: 1}
}

// Scale applies the outgoing damage multiplier.
func (m Modifiers) Scale(raw int) int {
	return max(0, int(math.Round(float64(raw)*m.DamageMult)))
}

// Mitigate applies the incoming damage reduction. A DefenseMult of 1.4 removes
// 40% of the hit.
func (m Modifiers) Mitigate(raw int) int {
	factor := max(0, 2-m.DefenseMult)
	return max(0, int(math.Round(float64(raw)*factor)))
}

// ComputeModifiers folds the active effects into stat modifiers. Each known type
// contributes once regardless of its stack count; unknown types contribute nothing.
func ComputeModifiers(effects []Effect) Modifiers {
	m := BaseModifiers()
	seen := make(map[EffectType]bool, len(effects))
	for _, e := range effects {
		if seen[e.Type] {
			continue
		}
		seen[e.Type] = true
		switch e.Type {
		case EffectRegenerate:
			m.EnergyRegenFlat += 15
		case EffectWeaken:
			m.DamageMult -= 0.25
		case EffectProtect:
			m.DefenseMult += 0.40
		case EffectSpeed:
			m.SpeedMult += 0.20
		}
	}
	return m
}

func DamageOverTime(effects []Effect) int {
	total := 0
	for _, e := range effects {
		if e.Type == EffectBurn || e.Type == EffectBleed {
			total += e.tickDamage()
		}
	}
	return total
}

func IsStunned(effects []Effect) bool {
	return slices.ContainsFunc(effects, func(e Effect) bool { return e.Type == EffectStun })
}

// Merge folds incoming into existing. A type already present keeps one entry:
// its count goes up by one and its remaining duration becomes the larger of the two.
func Merge(existing, incoming []Effect, now time.Time) []Effect {
	out := make([]Effect, 0, len(existing)+len(incoming))
	index := make(map[EffectType]int, len(existing)+len(incoming))

	add := func(e Effect, stack bool) {
		i, ok := index[e.Type]
		if !ok {
			e.Count = e.count()
			index[e.Type] = len(out)
			out = append(out, e)
			return
		}
		cur := out[i]
		if stack {
			cur.Count = cur.count() + 1
		}
		if e.Remaining(now) > cur.Remaining(now) {
			cur.Kind = e.Kind
			cur.Turns, cur.ElapsedTurns = e.Turns, e.ElapsedTurns
			cur.Lifetime, cur.StartedAt = e.Lifetime, e.StartedAt
		}
		if e.Damage > cur.Damage {
			cur.Damage = e.Damage
		}
		out[i] = cur
	}

	for _, e := range existing {
		add(e, false)
	}
	for _, e := range incoming {
		add(e, true)
	}
	return out
}

// Purge drops every effect that has run out.
func Purge(effects []Effect, now time.Time) []Effect {
	return slices.DeleteFunc(slices.Clone(effects), func(e Effect) bool { return e.Expired(now) })
}

// Ledger does the per-tick effect bookkeeping for participants.
type Ledger struct {
	log *zap.Logger
	now func() time.Time
}

type LedgerOption func(*Ledger)

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(log *zap.Logger, opts ...LedgerOption) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{log: log, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Now() time.Time { return l.now() }

// Tick advances p by one logical tick. A participant already at or past tick
// is returned unchanged; tick 0 is never gated.
func (l *Ledger) Tick(p Participant, tick uint64) Participant {
	if tick != 0 && p.LastTick >= tick {
		return p
	}
	now := l.now()

	active := Purge(p.Effects, now)
	mods := ComputeModifiers(active)

	p.HP = max(0, p.HP-DamageOverTime(active))
	if mods.EnergyRegenFlat > 0 {
		p.Energy = min(p.MaxEnergy, p.Energy+mods.EnergyRegenFlat)
	}

	next := make([]Effect, 0, len(active))
	for _, e := range active {
		if e.Kind == DurationTurns {
			e.ElapsedTurns++
		}
		if !e.Expired(now) {
			next = append(next, e)
		}
	}
	p.Effects = next
	if tick != 0 {
		p.LastTick = tick
	}
	return p
}

// Apply merges freshly resolved effects onto p.
func (l *Ledger) Apply(p Participant, incoming []Effect) Participant {
	now := l.now()
	p.Effects = Merge(Purge(p.Effects, now), incoming, now)
	return p
}

// ParticipantFromWire converts a wire participant and logs any effect record
// that had to be defaulted.
func (l *Ledger) ParticipantFromWire(w types.Participant) Participant {
	p := Participant{
		ID:             w.ParticipantID,
		UserID:         w.UserID,
		Team:           w.Team,
		Position:       w.Position,
		Username:       w.Username,
		Level:          w.Level,
		HP:             w.CurrentHP,
		MaxHP:          w.MaxHP,
		Energy:         w.CurrentEnergy,
		MaxEnergy:      w.MaxEnergy,
		Cooldowns:      make(map[string]time.Time, len(w.Cooldowns)),
		LastTick:       w.LastTick,
		LastActionTime: fromMillis(w.LastActionTime),
	}
	for id, until := range w.Cooldowns {
		p.Cooldowns[id] = time.UnixMilli(until)
	}
	for _, we := range w.Effects {
		e, malformed := EffectFromWire(we)
		if malformed {
			l.log.Warn("effect without duration, defaulting",
				zap.String("participant", w.ParticipantID),
				zap.String("effect", we.Type),
				zap.Int("turns", DefaultEffectTurns))
		}
		p.Effects = append(p.Effects, e)
	}
	return p
}
