package engine

import (
	"math"
	"testing"
	"time"

	"github.com/zxckotee/pvp-arena/pkg/types"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func newParticipant(effects ...Effect) Participant {
	return Participant{
		ID: "p1", UserID: "u1", Team: TeamOne, Position: 1,
		HP: 100, MaxHP: 100, Energy: 50, MaxEnergy: 100,
		Effects:   effects,
		Cooldowns: map[string]time.Time{},
	}
}

func TestTick_BurnDealsDefaultDamageThenExpires(t *testing.T) {
	now := epoch
	l := NewLedger(nil, WithClock(fixedClock(&now)))

	p := newParticipant(TurnEffect(EffectBurn, 2))

	p = l.Tick(p, 1)
	if p.HP != 92 {
		t.Fatalf("after first tick: want hp=92, got %d", p.HP)
	}
	if len(p.Effects) != 1 || p.Effects[0].ElapsedTurns != 1 {
		t.Fatalf("after first tick: want burn with elapsedTurns=1, got %+v", p.Effects)
	}

	p = l.Tick(p, 2)
	if len(p.Effects) != 0 {
		t.Fatalf("after second tick: want no effects, got %+v", p.Effects)
	}
}

func TestTick_SameTickTwiceIsNoop(t *testing.T) {
	now := epoch
	l := NewLedger(nil, WithClock(fixedClock(&now)))

	p := newParticipant(TurnEffect(EffectBleed, 3))
	once := l.Tick(p, 7)
	twice := l.Tick(once, 7)

	if twice.HP != once.HP || twice.Effects[0].ElapsedTurns != once.Effects[0].ElapsedTurns {
		t.Fatalf("second tick with same id must not change state: once=%+v twice=%+v", once, twice)
	}
	if once.LastTick != 7 {
		t.Fatalf("want LastTick=7, got %d", once.LastTick)
	}
}

func TestTick_HPNeverNegative(t *testing.T) {
	now := epoch
	l := NewLedger(nil, WithClock(fixedClock(&now)))

	burn := TurnEffect(EffectBurn, 5)
	burn.Damage = 30
	p := newParticipant(burn, TurnEffect(EffectBleed, 5))
	p.HP = 10

	p = l.Tick(p, 1)
	if p.HP != 0 {
		t.Fatalf("want hp clamped to 0, got %d", p.HP)
	}
}

func TestTick_RegenerateCapsAtMaxEnergy(t *testing.T) {
	now := epoch
	l := NewLedger(nil, WithClock(fixedClock(&now)))

	p := newParticipant(TurnEffect(EffectRegenerate, 4))
	p.Energy = 95

	p = l.Tick(p, 1)
	if p.Energy != 100 {
		t.Fatalf("want energy capped at 100, got %d", p.Energy)
	}
}

func TestTick_TimedEffectExpiresOnWallClock(t *testing.T) {
	now := epoch
	l := NewLedger(nil, WithClock(fixedClock(&now)))

	p := newParticipant(TimedEffect(EffectWeaken, 2500*time.Millisecond, epoch))

	now = epoch.Add(2 * time.Second)
	p = l.Tick(p, 1)
	if len(p.Effects) != 1 {
		t.Fatalf("at 2s: want weaken still active, got %+v", p.Effects)
	}

	now = epoch.Add(3 * time.Second)
	p = l.Tick(p, 2)
	if len(p.Effects) != 0 {
		t.Fatalf("at 3s: want weaken gone, got %+v", p.Effects)
	}
}

func TestTick_ExpiredEffectsDoNotDamage(t *testing.T) {
	now := epoch.Add(10 * time.Second)
	l := NewLedger(nil, WithClock(fixedClock(&now)))

	p := newParticipant(TimedEffect(EffectBurn, time.Second, epoch))
	p = l.Tick(p, 1)
	if p.HP != 100 {
		t.Fatalf("expired burn must be purged before damage, hp=%d", p.HP)
	}
}

func TestComputeModifiers(t *testing.T) {
	cases := []struct {
		name    string
		effects []Effect
		want    Modifiers
	}{
		{name: "none", want: BaseModifiers()},
		{
			name:    "regenerate",
			effects: []Effect{TurnEffect(EffectRegenerate, 1)},
			want:    Modifiers{DamageMult: 1, DefenseMult: 1, SpeedMult: 1, EnergyRegenFlat: 15},
		},
		{
			name:    "weaken protect speed",
			effects: []Effect{TurnEffect(EffectWeaken, 1), TurnEffect(EffectProtect, 1), TurnEffect(EffectSpeed, 1)},
			want:    Modifiers{DamageMult: 0.75, DefenseMult: 1.4, SpeedMult: 1.2},
		},
		{
			name:    "stack count does not add magnitude",
			effects: []Effect{{Type: EffectWeaken, Count: 3, Kind: DurationTurns, Turns: 2}},
			want:    Modifiers{DamageMult: 0.75, DefenseMult: 1, SpeedMult: 1},
		},
		{
			name:    "unknown type ignored",
			effects: []Effect{TurnEffect("petrify", 2), TurnEffect(EffectBuff, 2)},
			want:    BaseModifiers(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeModifiers(tc.effects)
			if !sameModifiers(got, tc.want) {
				t.Fatalf("want %+v, got %+v", tc.want, got)
			}
		})
	}
}

func sameModifiers(a, b Modifiers) bool {
	const eps = 1e-9
	return math.Abs(a.DamageMult-b.DamageMult) < eps &&
		math.Abs(a.DefenseMult-b.DefenseMult) < eps &&
		math.Abs(a.SpeedMult-b.SpeedMult) < eps &&
		a.EnergyRegenFlat == b.EnergyRegenFlat
}

func TestModifiers_Mitigate(t *testing.T) {
	m := ComputeModifiers([]Effect{TurnEffect(EffectProtect, 1)})
	if got := m.Mitigate(100); got != 60 {
		t.Fatalf("protect should remove 40%% of damage, got %d", got)
	}
	if got := BaseModifiers().Mitigate(17); got != 17 {
		t.Fatalf("base modifiers must not change damage, got %d", got)
	}
}

func TestDamageOverTime(t *testing.T) {
	heavy := TurnEffect(EffectBleed, 2)
	heavy.Damage = 12
	got := DamageOverTime([]Effect{TurnEffect(EffectBurn, 2), heavy, TurnEffect(EffectStun, 1)})
	if got != 20 {
		t.Fatalf("want 8+12=20, got %d", got)
	}
}

func TestMerge_ProtectKeepsLongestAndCounts(t *testing.T) {
	now := epoch
	existing := []Effect{TimedEffect(EffectProtect, 5*time.Second, now)}
	incoming := []Effect{TimedEffect(EffectProtect, 8*time.Second, now)}

	got := Merge(existing, incoming, now)
	if len(got) != 1 {
		t.Fatalf("want 1 protect effect, got %+v", got)
	}
	if got[0].Count != 2 {
		t.Fatalf("want count=2, got %d", got[0].Count)
	}
	if rem := got[0].Remaining(now); rem != 8*time.Second {
		t.Fatalf("want remaining=8s, got %s", rem)
	}
}

func TestMerge_ShorterIncomingKeepsExistingDuration(t *testing.T) {
	now := epoch
	existing := []Effect{TurnEffect(EffectWeaken, 4)}
	incoming := []Effect{TimedEffect(EffectWeaken, 2*time.Second, now), TurnEffect(EffectSpeed, 1)}

	got := Merge(existing, incoming, now)
	if len(got) != 2 {
		t.Fatalf("want weaken + speed, got %+v", got)
	}
	if got[0].Kind != DurationTurns || got[0].Remaining(now) != 4*TurnLength {
		t.Fatalf("existing longer duration must win, got %+v", got[0])
	}
}

func TestEffectFromWire(t *testing.T) {
	two, one := 2, 1
	ms, start := int64(4000), epoch.UnixMilli()

	cases := []struct {
		name      string
		in        types.Effect
		kind      DurationKind
		malformed bool
		remaining time.Duration
	}{
		{
			name: "turn based",
			in:   types.Effect{Type: "burn", Duration: &two, ElapsedTurns: &one},
			kind: DurationTurns, remaining: TurnLength,
		},
		{
			name: "timed",
			in:   types.Effect{Type: "protect", DurationMs: &ms, StartTime: &start},
			kind: DurationTimed, remaining: 4 * time.Second,
		},
		{
			name: "missing duration defaults to three turns",
			in:   types.Effect{Type: "speed"},
			kind: DurationTurns, malformed: true, remaining: 3 * TurnLength,
		},
		{
			name: "durationMs without startTime is malformed",
			in:   types.Effect{Type: "speed", DurationMs: &ms},
			kind: DurationTurns, malformed: true, remaining: 3 * TurnLength,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, malformed := EffectFromWire(tc.in)
			if malformed != tc.malformed {
				t.Fatalf("malformed: want %v, got %v", tc.malformed, malformed)
			}
			if e.Kind != tc.kind {
				t.Fatalf("kind: want %v, got %v", tc.kind, e.Kind)
			}
			if rem := e.Remaining(epoch); rem != tc.remaining {
				t.Fatalf("remaining: want %s, got %s", tc.remaining, rem)
			}
		})
	}
}

func TestParticipantFromWire_MalformedEffectKeptWithDefault(t *testing.T) {
	l := NewLedger(nil)
	w := types.Participant{
		ParticipantID: "p9", UserID: "u9", Team: 2, Position: 1,
		CurrentHP: 40, MaxHP: 80,
		Effects: []types.Effect{{Type: "stun"}},
	}
	p := l.ParticipantFromWire(w)
	if len(p.Effects) != 1 || p.Effects[0].Turns != DefaultEffectTurns {
		t.Fatalf("want defaulted stun, got %+v", p.Effects)
	}
	if !IsStunned(p.Effects) {
		t.Fatalf("defaulted stun should still stun")
	}
}
