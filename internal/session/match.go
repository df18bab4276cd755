package session

import (
	"cmp"
	"slices"
	"time"

	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/internal/rewards"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

// Selection is what the player has highlighted but not yet sent.
type Selection struct {
	Type        engine.ActionType `json:"type,omitempty"`
	TechniqueID string            `json:"techniqueId,omitempty"`
	TargetID    string            `json:"targetId,omitempty"`
}

type ParticipantView struct {
	engine.Participant
	Modifiers engine.Modifiers
	Stunned   bool
	CanAct    bool
	Predicted bool
}

type View struct {
	RoomID            string
	Status            engine.Status
	Mode              engine.Mode
	WinnerTeam        int
	Tick              uint64
	SelfID            string
	Participants      []ParticipantView
	Teams             map[int][]string
	Log               []engine.Action
	LastActionID      int64
	CooldownRemaining time.Duration
	Submitting        bool
	Selection         Selection
	Outcome           *rewards.Outcome
	Rooms             []types.RoomSummary
}

type update struct {
	fresh         []engine.Action
	terminal      bool
	unknownStatus string
}

// Match is the local view of one room. It is owned by the session loop.
type Match struct {
	userID   string
	ledger   *engine.Ledger
	logLimit int

	room         engine.Room
	team         int
	lastActionID int64
	seen         map[int64]struct{}
	log          []engine.Action
	cycle        uint64
	predicted    map[string]bool
	outcome      *rewards.Outcome

	cooldownUntil time.Time
	selection     Selection
}

func newMatch(roomID, userID string, ledger *engine.Ledger, logLimit int) *Match {
	return &Match{
		userID:   userID,
		ledger:   ledger,
		logLimit: logLimit,
		room:     engine.Room{ID: roomID, Status: engine.StatusWaiting},
		seen:     make(map[int64]struct{}),
	}
}

func (m *Match) RoomID() string      { return m.room.ID }
func (m *Match) LastActionID() int64 { return m.lastActionID }
func (m *Match) Room() engine.Room   { return m.room }

func (m *Match) Self() (engine.Participant, bool) {
	return m.room.ParticipantByUser(m.userID)
}

// applyDetails folds a full details response in and returns any team index drift.
func (m *Match) applyDetails(d types.RoomDetails) (update, []string) {
	u := m.apply(d.Room, d.Participants, d.Actions)
	return u, engine.CheckTeams(d.Teams, m.room.Participants)
}

// applyState folds one poll response in. The participant list is replaced
// wholesale; actions already seen are skipped.
func (m *Match) applyState(s types.RoomState) update {
	u := m.apply(s.Room, s.Participants, s.Actions)
	if u.terminal && m.outcome == nil {
		out, _ := rewards.Extract(s, m.userID, m.team)
		m.outcome = &out
	}
	return u
}

func (m *Match) apply(room types.Room, ps []types.Participant, actions []types.Action) update {
	m.cycle++
	var u update

	status, known := engine.ParseStatus(room.Status)
	if !known {
		u.unknownStatus = room.Status
	}

	// the service tick wins; without one each poll is its own tick
	tick := room.Tick
	if tick == 0 {
		tick = m.cycle
	}

	participants := make([]engine.Participant, 0, len(ps))
	for _, w := range ps {
		p := m.ledger.ParticipantFromWire(w)
		participants = append(participants, m.ledger.Tick(p, tick))
	}

	next := engine.Room{
		ID:           cmp.Or(room.ID, m.room.ID),
		Status:       status,
		Mode:         engine.ModeFromWire(room.Mode),
		Tick:         room.Tick,
		Participants: participants,
	}
	if room.WinnerTeam != nil {
		next.WinnerTeam = *room.WinnerTeam
	}
	m.room = next
	m.predicted = nil
	if self, ok := m.Self(); ok {
		m.team = self.Team
	}

	for _, w := range actions {
		m.lastActionID = max(m.lastActionID, w.ID)
		if _, dup := m.seen[w.ID]; dup {
			continue
		}
		m.seen[w.ID] = struct{}{}
		u.fresh = append(u.fresh, engine.ActionFromWire(w))
	}
	slices.SortFunc(u.fresh, func(a, b engine.Action) int { return cmp.Compare(a.ID, b.ID) })
	m.log = append(m.log, u.fresh...)
	if m.logLimit > 0 && len(m.log) > m.logLimit {
		m.log = slices.Clone(m.log[len(m.log)-m.logLimit:])
	}

	u.terminal = status.Terminal()
	return u
}

// predict applies the display-only consequences of an intent to the local
// participant. The next snapshot discards them.
func (m *Match) predict(in engine.Intent, cat engine.Catalog) {
	i := slices.IndexFunc(m.room.Participants, func(p engine.Participant) bool { return p.UserID == m.userID })
	if i < 0 {
		return
	}
	now := m.ledger.Now()
	self := m.room.Participants[i].Clone()

	var incoming []engine.Effect
	switch in.Type {
	case engine.ActionDefense:
		incoming = append(incoming, engine.TurnEffect(engine.EffectProtect, 1))
	case engine.ActionTechnique:
		t, ok := cat.Technique(in.TechniqueID)
		if !ok {
			return
		}
		self.Energy = max(0, self.Energy-t.EnergyCost)
		targetsSelf := engine.TargetsSelf(in, cat)
		for _, tmpl := range t.Effects {
			if tmpl.OnSelf || targetsSelf {
				incoming = append(incoming, tmpl.Instantiate(now))
			}
		}
	}
	if len(incoming) > 0 {
		self = m.ledger.Apply(self, incoming)
	}
	m.room.Participants[i] = self
	if m.predicted == nil {
		m.predicted = map[string]bool{}
	}
	m.predicted[self.ID] = true
}

func (m *Match) view(now time.Time, submitting bool) View {
	v := View{
		RoomID:       m.room.ID,
		Status:       m.room.Status,
		Mode:         m.room.Mode,
		WinnerTeam:   m.room.WinnerTeam,
		Tick:         m.room.Tick,
		Log:          slices.Clone(m.log),
		LastActionID: m.lastActionID,
		Submitting:   submitting,
		Selection:    m.selection,
		Outcome:      m.outcome,
		Teams:        map[int][]string{},
	}
	if now.Before(m.cooldownUntil) {
		v.CooldownRemaining = m.cooldownUntil.Sub(now)
	}

	for _, p := range m.room.Participants {
		active := engine.Purge(p.Effects, now)
		pv := ParticipantView{
			Participant: p,
			Modifiers:   engine.ComputeModifiers(active),
			Stunned:     engine.IsStunned(active),
			Predicted:   m.predicted[p.ID],
		}
		pv.CanAct = m.room.Status.AcceptsActions() && p.Alive() && !pv.Stunned
		if p.UserID == m.userID {
			v.SelfID = p.ID
			pv.CanAct = pv.CanAct && v.CooldownRemaining == 0 && !submitting
		}
		v.Participants = append(v.Participants, pv)
	}
	for team, members := range m.room.Teams() {
		for _, p := range members {
			v.Teams[team] = append(v.Teams[team], p.ID)
		}
	}
	return v
}
