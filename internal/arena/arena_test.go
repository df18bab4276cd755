package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxckotee/pvp-arena/internal/catalog"
	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

var t0 = time.UnixMilli(1_700_000_000_000)

func newArena(t *testing.T) *Arena {
	t.Helper()
	cat := catalog.New(catalog.Static(catalog.Defaults()), nil)
	require.NoError(t, cat.Init(context.Background()))
	n := 0
	return New(cat, nil, WithIDs(func() string {
		n++
		return fmt.Sprintf("p%d", n)
	}))
}

func mustApply(t *testing.T, a *Arena, s State, cmd Command) ([]Event, State) {
	t.Helper()
	ev, next, err := a.Apply(s, cmd)
	require.NoError(t, err, "command %s", cmd.Type)
	return ev, next
}

func join(user string, team, pos int) Command {
	return Command{Type: CmdJoin, Player: Player{UserID: user, Username: user, Level: 2}, Team: team, Position: pos, Time: t0}
}

func act(user string, in engine.Intent, at time.Time) Command {
	return Command{Type: CmdAction, Player: Player{UserID: user}, Intent: in, Time: at}
}

// duel returns a running 1v1 where u1 is p1 on team 1 and u2 is p2 on team 2.
func duel(t *testing.T, a *Arena) State {
	t.Helper()
	s := NewState("r1", engine.Mode{PlayersPerTeam: 1}, t0)
	_, s = mustApply(t, a, s, join("u1", 1, 1))
	_, s = mustApply(t, a, s, join("u2", 2, 1))
	require.Equal(t, engine.StatusInProgress, s.Room.Status)
	return s
}

func TestArena_JoinFillsAndStarts(t *testing.T) {
	a := newArena(t)
	s := NewState("r1", engine.Mode{PlayersPerTeam: 1}, t0)

	ev, s := mustApply(t, a, s, join("u1", 1, 1))
	require.Len(t, ev, 1)
	assert.Equal(t, EvtJoined, ev[0].Type)
	assert.Equal(t, engine.StatusWaiting, s.Room.Status)
	assert.Equal(t, 110, s.Room.Participants[0].MaxHP)

	ev, s = mustApply(t, a, s, join("u2", 2, 1))
	require.Len(t, ev, 2)
	assert.Equal(t, EvtStarted, ev[1].Type)
	assert.Equal(t, engine.StatusInProgress, s.Room.Status)
	assert.Equal(t, t0, s.StartedAt)
}

func TestArena_JoinRules(t *testing.T) {
	a := newArena(t)
	base := NewState("r1", engine.Mode{PlayersPerTeam: 2, MinLevel: 2, MaxLevel: 5}, t0)
	_, base = mustApply(t, a, base, join("u1", 1, 1))

	cases := []struct {
		name string
		cmd  Command
		want error
	}{
		{"slot taken", join("u2", 1, 1), ErrSlotTaken},
		{"bad team", join("u2", 3, 1), ErrInvalidSlot},
		{"bad position", join("u2", 1, 3), ErrInvalidSlot},
		{"level too low", Command{Type: CmdJoin, Player: Player{UserID: "u2", Level: 1}, Team: 2, Position: 1}, ErrLevelOutOfRange},
		{"level too high", Command{Type: CmdJoin, Player: Player{UserID: "u2", Level: 9}, Team: 2, Position: 1}, ErrLevelOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, got, err := a.Apply(base, tc.cmd)
			require.ErrorIs(t, err, tc.want)
			assert.Len(t, got.Room.Participants, 1)
		})
	}
}

func TestArena_JoinMovesSeatedUser(t *testing.T) {
	a := newArena(t)
	s := NewState("r1", engine.Mode{PlayersPerTeam: 2}, t0)
	_, s = mustApply(t, a, s, join("u1", 1, 1))

	ev, s := mustApply(t, a, s, join("u1", 2, 2))
	require.Len(t, ev, 1)
	assert.Equal(t, EvtMoved, ev[0].Type)
	assert.Equal(t, 1, ev[0].PreviousTeam)
	assert.Equal(t, 1, ev[0].PreviousPosition)
	require.Len(t, s.Room.Participants, 1)
	assert.Equal(t, 2, s.Room.Participants[0].Team)

	// same seat again is accepted without change
	ev, _ = mustApply(t, a, s, join("u1", 2, 2))
	assert.Equal(t, EvtJoined, ev[0].Type)
}

func TestArena_JoinAfterStartRefused(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)
	_, _, err := a.Apply(s, join("u3", 1, 1))
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestArena_ApplyDoesNotMutateInput(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)
	_, _ = mustApply(t, a, s, act("u1", engine.Intent{Type: engine.ActionAttack, TargetID: "p2"}, t0))

	assert.Equal(t, 110, s.Room.Participants[1].HP)
	assert.Empty(t, s.Actions)
	assert.Equal(t, int64(1), s.NextActionID)
}

func TestArena_AttackAndGlobalCooldown(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)

	ev, s := mustApply(t, a, s, act("u1", engine.Intent{Type: engine.ActionAttack, TargetID: "p2"}, t0))
	require.Len(t, ev, 1)
	require.NotNil(t, ev[0].Action)
	assert.Equal(t, int64(1), ev[0].Action.ID)
	assert.Equal(t, BaseAttackDamage, ev[0].Action.Damage)
	assert.Equal(t, 100, s.Room.Participants[1].HP)

	_, _, err := a.Apply(s, act("u1", engine.Intent{Type: engine.ActionAttack, TargetID: "p2"}, t0.Add(time.Second)))
	require.ErrorIs(t, err, engine.ErrGlobalCooldown)
	assert.ErrorIs(t, err, engine.ErrRejected)

	ev, _ = mustApply(t, a, s, act("u1", engine.Intent{Type: engine.ActionAttack, TargetID: "p2"}, t0.Add(engine.GlobalCooldown)))
	assert.Equal(t, int64(2), ev[0].Action.ID)
}

func TestArena_DefenseMitigates(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)
	_, s = mustApply(t, a, s, act("u2", engine.Intent{Type: engine.ActionDefense}, t0))
	ev, _ := mustApply(t, a, s, act("u1", engine.Intent{Type: engine.ActionAttack, TargetID: "p2"}, t0))
	assert.Equal(t, 6, ev[0].Action.Damage)
}

func TestArena_TechniqueSpendsEnergyAndAppliesEffects(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)

	ev, s := mustApply(t, a, s, act("u1", engine.Intent{Type: engine.ActionTechnique, TechniqueID: "fireball", TargetID: "p2"}, t0))
	assert.Equal(t, 18, ev[0].Action.Damage)
	require.Len(t, ev[0].Action.AppliedEffects, 1)

	caster, target := s.Room.Participants[0], s.Room.Participants[1]
	assert.Equal(t, 75, caster.Energy)
	assert.Equal(t, t0.Add(10*time.Second), caster.Cooldowns["fireball"])
	require.Len(t, target.Effects, 1)
	assert.Equal(t, engine.EffectBurn, target.Effects[0].Type)

	_, _, err := a.Apply(s, act("u1", engine.Intent{Type: engine.ActionTechnique, TechniqueID: "fireball", TargetID: "p2"}, t0.Add(6*time.Second)))
	assert.ErrorIs(t, err, engine.ErrTechniqueCooldown)
}

func TestArena_SelfTechniqueTargetsActor(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)
	s.Room.Participants[0].HP = 50

	ev, s := mustApply(t, a, s, act("u1", engine.Intent{Type: engine.ActionTechnique, TechniqueID: "qi_restoration"}, t0))
	assert.Equal(t, "p1", ev[0].Action.TargetID)
	assert.Equal(t, 15, ev[0].Action.Healing)
	assert.Equal(t, 65, s.Room.Participants[0].HP)
	assert.Equal(t, engine.EffectRegenerate, s.Room.Participants[0].Effects[0].Type)
}

func TestArena_HealingIsCapped(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)
	s.Room.Participants[0].HP = 105

	ev, s := mustApply(t, a, s, act("u1", engine.Intent{Type: engine.ActionTechnique, TechniqueID: "healing_light", TargetID: "p1"}, t0))
	assert.Equal(t, 5, ev[0].Action.Healing)
	assert.Equal(t, 110, s.Room.Participants[0].HP)
}

func TestArena_ActionRejections(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)

	_, _, err := a.Apply(s, act("u1", engine.Intent{Type: engine.ActionAttack}, t0))
	assert.ErrorIs(t, err, engine.ErrTargetRequired)

	_, _, err = a.Apply(s, act("u1", engine.Intent{Type: engine.ActionAttack, TargetID: "nobody"}, t0))
	assert.ErrorIs(t, err, ErrUnknownTarget)

	_, _, err = a.Apply(s, act("u1", engine.Intent{Type: engine.ActionAttack, TargetID: "p1"}, t0))
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, _, err = a.Apply(s, act("u9", engine.Intent{Type: engine.ActionDefense}, t0))
	assert.ErrorIs(t, err, ErrNotInRoom)

	waiting := NewState("r2", engine.Mode{PlayersPerTeam: 1}, t0)
	_, waiting = mustApply(t, a, waiting, join("u1", 1, 1))
	_, _, err = a.Apply(waiting, act("u1", engine.Intent{Type: engine.ActionDefense}, t0))
	assert.ErrorIs(t, err, ErrMatchNotRunning)
}

func TestArena_KnockoutCompletesWithRewards(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)
	s.Room.Participants[1].HP = 5

	ev, s := mustApply(t, a, s, act("u1", engine.Intent{Type: engine.ActionAttack, TargetID: "p2"}, t0))
	require.Len(t, ev, 2)
	assert.Equal(t, EvtCompleted, ev[1].Type)
	assert.Equal(t, engine.StatusCompleted, s.Room.Status)
	assert.Equal(t, engine.TeamOne, s.Room.WinnerTeam)

	assert.Equal(t, types.Reward{Result: "win", Experience: 70, Currency: 25, RatingChange: 15}, s.Rewards["u1"])
	assert.Equal(t, types.Reward{Result: "lose", Experience: 10, RatingChange: -10}, s.Rewards["u2"])

	st := s.Snapshot(0)
	require.NotEmpty(t, st.Rewards)
	var byUser map[string]types.Reward
	require.NoError(t, json.Unmarshal(st.Rewards, &byUser))
	assert.Equal(t, 15, byUser["u1"].RatingChange)
}

func TestArena_TickBurnsAndCanEndMatch(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)
	_, s = mustApply(t, a, s, act("u1", engine.Intent{Type: engine.ActionTechnique, TechniqueID: "fireball", TargetID: "p2"}, t0))
	hp := s.Room.Participants[1].HP

	ev, s := mustApply(t, a, s, Command{Type: CmdTick, Time: t0.Add(time.Second)})
	assert.Equal(t, EvtTicked, ev[0].Type)
	assert.Equal(t, uint64(1), s.Room.Tick)
	assert.Equal(t, hp-engine.DefaultTickDamage, s.Room.Participants[1].HP)
	assert.Equal(t, uint64(1), s.Room.Participants[1].LastTick)

	s.Room.Participants[1].HP = 3
	ev, s = mustApply(t, a, s, Command{Type: CmdTick, Time: t0.Add(2 * time.Second)})
	require.Len(t, ev, 2)
	assert.Equal(t, engine.StatusCompleted, s.Room.Status)

	// ticks after the end change nothing
	ev, after := mustApply(t, a, s, Command{Type: CmdTick, Time: t0.Add(3 * time.Second)})
	assert.Empty(t, ev)
	assert.Equal(t, s.Room.Tick, after.Room.Tick)
}

func TestArena_LeaveRunningMatchForfeits(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)

	ev, s := mustApply(t, a, s, Command{Type: CmdLeave, Player: Player{UserID: "u1"}, Time: t0})
	kinds := []EventType{}
	for _, e := range ev {
		kinds = append(kinds, e.Type)
	}
	assert.Equal(t, []EventType{EvtForfeited, EvtCompleted, EvtDismissed}, kinds)
	assert.Equal(t, engine.StatusDismissed, s.Room.Status)
	assert.Equal(t, engine.TeamTwo, s.Room.WinnerTeam)
	assert.Equal(t, ForfeitRating, s.Rewards["u1"].RatingChange)
	assert.Equal(t, WinRating, s.Rewards["u2"].RatingChange)
}

func TestArena_LeaveWaitingVacates(t *testing.T) {
	a := newArena(t)
	s := NewState("r1", engine.Mode{PlayersPerTeam: 1}, t0)
	_, s = mustApply(t, a, s, join("u1", 1, 1))

	ev, s := mustApply(t, a, s, Command{Type: CmdLeave, Player: Player{UserID: "u1"}})
	assert.Equal(t, EvtLeft, ev[0].Type)
	assert.Empty(t, s.Room.Participants)

	_, _, err := a.Apply(s, Command{Type: CmdLeave, Player: Player{UserID: "u1"}})
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestArena_DismissIsIdempotent(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)

	ev, s := mustApply(t, a, s, Command{Type: CmdDismiss})
	assert.Equal(t, []Event{{Type: EvtDismissed}}, ev)

	ev, s = mustApply(t, a, s, Command{Type: CmdDismiss})
	assert.Empty(t, ev)
	assert.Equal(t, engine.StatusDismissed, s.Room.Status)

	_, _, err := a.Apply(NewState("r2", engine.Mode{PlayersPerTeam: 1}, t0), Command{Type: CmdDismiss})
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestArena_UnsupportedCommand(t *testing.T) {
	a := newArena(t)
	_, _, err := a.Apply(NewState("r1", engine.Mode{PlayersPerTeam: 1}, t0), Command{Type: "Teleport"})
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
}

func TestState_SnapshotFiltersByCursor(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)
	_, s = mustApply(t, a, s, act("u1", engine.Intent{Type: engine.ActionDefense}, t0))
	_, s = mustApply(t, a, s, act("u2", engine.Intent{Type: engine.ActionDefense}, t0))

	assert.Len(t, s.Snapshot(0).Actions, 2)
	st := s.Snapshot(1)
	require.Len(t, st.Actions, 1)
	assert.Equal(t, int64(2), st.Actions[0].ID)
	assert.Empty(t, st.Rewards)

	d := s.Details()
	assert.Len(t, d.Teams["1"], 1)
	assert.Equal(t, 2, s.Summary().Occupied)
}

func TestSummarize(t *testing.T) {
	a := newArena(t)
	s := duel(t, a)
	s.Room.Participants[1].HP = 5
	_, s = mustApply(t, a, s, act("u1", engine.Intent{Type: engine.ActionAttack, TargetID: "p2"}, t0))
	s.EndedAt = t0.Add(time.Minute)

	sum := Summarize(s)
	assert.Equal(t, "r1", sum.RoomID)
	assert.Equal(t, 1, sum.WinnerTeam)
	require.Len(t, sum.Participants, 2)
	assert.Equal(t, "u1", sum.Participants[0].UserID)
	assert.Equal(t, 10, sum.Participants[0].DamageDealt)
	assert.True(t, sum.Participants[0].Survived)
	assert.False(t, sum.Participants[1].Survived)
	assert.Equal(t, "lose", sum.Participants[1].Reward.Result)
}
