package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/internal/rewards"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

func testMatch() *Match {
	return newMatch("r1", "u1", engine.NewLedger(zap.NewNop()), 1000)
}

func TestMatch_CursorIsMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := testMatch()
		batches := rapid.SliceOfN(rapid.SliceOf(rapid.Int64Range(1, 60)), 1, 20).Draw(t, "batches")

		var highest int64
		seen := map[int64]bool{}
		for _, batch := range batches {
			before := m.LastActionID()
			m.applyState(inProgress(batch...))

			for _, id := range batch {
				highest = max(highest, id)
				seen[id] = true
			}
			if m.LastActionID() < before {
				t.Fatalf("cursor went back from %d to %d", before, m.LastActionID())
			}
			if m.LastActionID() != highest {
				t.Fatalf("cursor = %d, want %d", m.LastActionID(), highest)
			}
		}

		logged := map[int64]bool{}
		for _, a := range m.log {
			if logged[a.ID] {
				t.Fatalf("action %d logged twice", a.ID)
			}
			logged[a.ID] = true
		}
		if len(logged) != len(seen) {
			t.Fatalf("logged %d distinct actions, saw %d", len(logged), len(seen))
		}
	})
}

func TestMatch_FreshActionsSortedWithinPoll(t *testing.T) {
	m := testMatch()
	u := m.applyState(inProgress(7, 3, 5))
	require.Len(t, u.fresh, 3)
	assert.Equal(t, int64(3), u.fresh[0].ID)
	assert.Equal(t, int64(7), u.fresh[2].ID)

	u = m.applyState(inProgress(5, 7))
	assert.Empty(t, u.fresh)
}

func TestMatch_LogLimit(t *testing.T) {
	m := newMatch("r1", "u1", engine.NewLedger(zap.NewNop()), 2)
	m.applyState(inProgress(1, 2, 3))
	require.Len(t, m.log, 2)
	assert.Equal(t, int64(2), m.log[0].ID)
}

func TestMatch_OutcomeExtractedOnce(t *testing.T) {
	m := testMatch()
	st := completedWithRoomRewards()
	u := m.applyState(st)
	require.True(t, u.terminal)
	require.NotNil(t, m.outcome)
	assert.Equal(t, rewards.ShapeRoomByUser, m.outcome.Shape)

	st.Room.Rewards = json.RawMessage(`{"u1":{"experience":1}}`)
	m.applyState(st)
	assert.Equal(t, 60, m.outcome.Rewards.Experience)
}

func TestMatch_LosingTeamWithoutRewards(t *testing.T) {
	m := testMatch()
	st := inProgress()
	st.Room.Status = "completed"
	winner := 2
	st.Room.WinnerTeam = &winner
	m.applyState(st)

	require.NotNil(t, m.outcome)
	assert.Equal(t, rewards.ResultLose, m.outcome.Result)
	assert.Equal(t, rewards.ShapeNone, m.outcome.Shape)
}

func TestMatch_UnknownStatusReadsAsWaiting(t *testing.T) {
	m := testMatch()
	st := inProgress()
	st.Room.Status = "paused"
	u := m.applyState(st)

	assert.Equal(t, "paused", u.unknownStatus)
	assert.Equal(t, engine.StatusWaiting, m.room.Status)
	assert.False(t, u.terminal)
}

func TestMatch_ServerTickGatesEffects(t *testing.T) {
	m := testMatch()
	three := 3
	st := inProgress()
	st.Room.Tick = 10
	st.Participants[0].Effects = []types.Effect{{Type: "burn", Duration: &three}}

	m.applyState(st)
	hp := m.room.Participants[0].HP
	assert.Less(t, hp, 100)

	// the service already ran tick 10 for this participant
	st.Participants[0].LastTick = 10
	m.applyState(st)
	assert.Equal(t, 100, m.room.Participants[0].HP)
	assert.Equal(t, 92, hp)
}

func TestMatch_PredictionIsDisplayOnly(t *testing.T) {
	m := testMatch()
	m.applyState(inProgress())

	m.predict(engine.Intent{Type: engine.ActionDefense}, nil)
	v := m.view(m.ledger.Now(), true)
	require.Len(t, v.Participants, 2)
	self := v.Participants[0]
	assert.True(t, self.Predicted)
	assert.Greater(t, self.Modifiers.DefenseMult, 1.0)
	assert.False(t, self.CanAct, "submitting blocks the local participant")

	m.applyState(inProgress())
	v = m.view(m.ledger.Now(), false)
	assert.False(t, v.Participants[0].Predicted)
	assert.InDelta(t, 1.0, v.Participants[0].Modifiers.DefenseMult, 1e-9)
	assert.True(t, v.Participants[0].CanAct)
}

func TestMatch_DetailsDrift(t *testing.T) {
	m := testMatch()
	d := detailsOf(inProgress())
	_, drift := m.applyDetails(d)
	assert.Empty(t, drift)

	d.Teams = nil
	_, drift = m.applyDetails(d)
	assert.NotEmpty(t, drift)
}
