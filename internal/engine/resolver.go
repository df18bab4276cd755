package engine

import (
	"fmt"
	"time"

	"github.com/zxckotee/pvp-arena/pkg/types"
)

type TechniqueType string

const (
	TechniqueAttack      TechniqueType = "attack"
	TechniqueSupport     TechniqueType = "support"
	TechniqueDefense     TechniqueType = "defense"
	TechniqueCultivation TechniqueType = "cultivation"
)

const TargetSelf = "self"

type EffectTemplate struct {
	Type     EffectType
	Name     string
	Turns    int
	Lifetime time.Duration
	Damage   int
	OnSelf   bool
}

// Instantiate creates a fresh effect from the template. Timed templates start now.
func (t EffectTemplate) Instantiate(now time.Time) Effect {
	var e Effect
	if t.Lifetime > 0 {
		e = TimedEffect(t.Type, t.Lifetime, now)
	} else {
		e = TurnEffect(t.Type, max(1, t.Turns))
	}
	if t.Name != "" {
		e.Name = t.Name
	}
	e.Damage = t.Damage
	return e
}

type Technique struct {
	ID         string
	Name       string
	Type       TechniqueType
	TargetType string
	Damage     int
	Healing    int
	EnergyCost int
	Cooldown   time.Duration
	Effects    []EffectTemplate
}

func TechniqueFromWire(w types.Technique) Technique {
	t := Technique{
		ID:         w.ID,
		Name:       w.Name,
		Type:       TechniqueType(w.Type),
		TargetType: w.TargetType,
		Damage:     w.Damage,
		Healing:    w.Healing,
		EnergyCost: w.EnergyCost,
		Cooldown:   time.Duration(w.Cooldown) * time.Second,
	}
	for _, e := range w.Effects {
		t.Effects = append(t.Effects, EffectTemplate{
			Type:     EffectType(e.Type),
			Name:     e.Name,
			Turns:    e.Duration,
			Lifetime: time.Duration(e.DurationMs) * time.Millisecond,
			Damage:   e.Damage,
			OnSelf:   e.OnSelf,
		})
	}
	return t
}

// Catalog is the read-only technique reference data.
type Catalog interface {
	Technique(id string) (Technique, bool)
	// SelfTargeting reports techniques flagged by id as always aimed at the caster.
	SelfTargeting(id string) bool
}

// RequiresTarget decides whether the intent needs a target before it can be sent.
func RequiresTarget(in Intent, cat Catalog) bool {
	switch in.Type {
	case ActionAttack:
		return true
	case ActionDefense:
		return false
	case ActionTechnique:
		if cat != nil && cat.SelfTargeting(in.TechniqueID) {
			return false
		}
		var (
			t  Technique
			ok bool
		)
		if cat != nil {
			t, ok = cat.Technique(in.TechniqueID)
		}
		if !ok {
			return true
		}
		if t.TargetType == TargetSelf || t.Type == TechniqueCultivation {
			return false
		}
		return true
	default:
		return false
	}
}

// TargetsSelf is the complement of RequiresTarget for techniques.
func TargetsSelf(in Intent, cat Catalog) bool {
	return in.Type == ActionTechnique && !RequiresTarget(in, cat)
}

// Validate checks the actor-side preconditions for in. The target is not checked here.
func Validate(p Participant, in Intent, cat Catalog, now time.Time) error {
	if IsStunned(Purge(p.Effects, now)) {
		return ErrStunned
	}

	var t Technique
	switch in.Type {
	case ActionAttack, ActionDefense:
	case ActionTechnique:
		var ok bool
		if cat != nil {
			t, ok = cat.Technique(in.TechniqueID)
		}
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTechnique, in.TechniqueID)
		}
		if until, ok := p.Cooldowns[t.ID]; ok && now.Before(until) {
			return fmt.Errorf("%w: %s for %s", ErrTechniqueCooldown, t.ID, until.Sub(now).Round(time.Millisecond))
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAction, in.Type)
	}

	if !p.LastActionTime.IsZero() {
		if ready := p.LastActionTime.Add(GlobalCooldown); now.Before(ready) {
			return fmt.Errorf("%w: %s left", ErrGlobalCooldown, ready.Sub(now).Round(time.Millisecond))
		}
	}

	if t.EnergyCost > p.Energy {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientEnergy, t.EnergyCost, p.Energy)
	}
	return nil
}
