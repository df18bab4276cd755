// Package arena is the authoritative match reducer used by the reference room
// service. Apply is pure: it never mutates the state it is given.
package arena

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

var ErrInvalidSlot = errors.New("invalid team or position")
var ErrSlotTaken = errors.New("slot already taken")
var ErrLevelOutOfRange = errors.New("level outside room bounds")
var ErrRoomClosed = errors.New("room is not accepting players")
var ErrNotInRoom = errors.New("user is not in this room")
var ErrMatchNotRunning = errors.New("match is not in progress")
var ErrActorDefeated = errors.New("actor is defeated")
var ErrUnknownTarget = errors.New("unknown target")
var ErrTargetDefeated = errors.New("target is defeated")
var ErrInvalidTarget = errors.New("invalid target for this action")
var ErrUnsupportedCommand = errors.New("unsupported command")

const (
	BaseAttackDamage = 10
	BaseHP           = 100
	HPPerLevel       = 10
	BaseEnergy       = 100
)

type CommandType string

const (
	CmdJoin    CommandType = "Join"
	CmdLeave   CommandType = "Leave"
	CmdAction  CommandType = "Action"
	CmdTick    CommandType = "Tick"
	CmdDismiss CommandType = "Dismiss"
)

type Player struct {
	UserID   string
	Username string
	Level    int
}

type Command struct {
	Type     CommandType
	Player   Player
	Team     int
	Position int
	Intent   engine.Intent
	Time     time.Time
}

type EventType string

const (
	EvtJoined         EventType = "Joined"
	EvtMoved          EventType = "Moved"
	EvtLeft           EventType = "Left"
	EvtStarted        EventType = "Started"
	EvtActionResolved EventType = "ActionResolved"
	EvtTicked         EventType = "Ticked"
	EvtForfeited      EventType = "Forfeited"
	EvtCompleted      EventType = "Completed"
	EvtDismissed      EventType = "Dismissed"
)

type Event struct {
	Type             EventType
	UserID           string
	ParticipantID    string
	Team             int
	Position         int
	PreviousTeam     int
	PreviousPosition int
	Action           *engine.Action
	WinnerTeam       int
}

type Stats struct {
	DamageDealt int
	HealingDone int
	Actions     int
}

type State struct {
	Room         engine.Room
	Actions      []engine.Action
	NextActionID int64
	Rewards      map[string]types.Reward
	Stats        map[string]Stats
	Forfeits     map[string]bool
	CreatedAt    time.Time
	StartedAt    time.Time
	EndedAt      time.Time
}

func NewState(id string, mode engine.Mode, now time.Time) State {
	return State{
		Room:         engine.Room{ID: id, Status: engine.StatusWaiting, Mode: mode},
		NextActionID: 1,
		Rewards:      map[string]types.Reward{},
		Stats:        map[string]Stats{},
		Forfeits:     map[string]bool{},
		CreatedAt:    now,
	}
}

func (s State) Clone() State {
	s.Room = s.Room.Clone()
	s.Actions = slices.Clone(s.Actions)
	s.Rewards = maps.Clone(s.Rewards)
	s.Stats = maps.Clone(s.Stats)
	s.Forfeits = maps.Clone(s.Forfeits)
	if s.Rewards == nil {
		s.Rewards = map[string]types.Reward{}
	}
	if s.Stats == nil {
		s.Stats = map[string]Stats{}
	}
	if s.Forfeits == nil {
		s.Forfeits = map[string]bool{}
	}
	return s
}

type Arena struct {
	cat engine.Catalog
	log *zap.Logger
	ids func() string
}

type Option func(*Arena)

// WithIDs replaces the participant id source.
func WithIDs(ids func() string) Option {
	return func(a *Arena) { a.ids = ids }
}

func New(cat engine.Catalog, log *zap.Logger, opts ...Option) *Arena {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Arena{cat: cat, log: log, ids: uuid.NewString}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Arena) Apply(s State, cmd Command) ([]Event, State, error) {
	next := s.Clone()
	var (
		events []Event
		err    error
	)

	switch cmd.Type {
	case CmdJoin:
		events, err = a.join(&next, cmd)
	case CmdLeave:
		events, err = a.leave(&next, cmd)
	case CmdAction:
		events, err = a.action(&next, cmd)
	case CmdTick:
		events, err = a.tick(&next, cmd)
	case CmdDismiss:
		events, err = dismiss(&next)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Type)
	}
	if err != nil {
		return nil, s, err
	}
	return events, next, nil
}

func (a *Arena) join(s *State, cmd Command) ([]Event, error) {
	r := &s.Room
	if r.Status != engine.StatusWaiting {
		return nil, fmt.Errorf("%w: status %s", ErrRoomClosed, r.Status)
	}
	if !r.Mode.ValidSlot(cmd.Team, cmd.Position) {
		return nil, fmt.Errorf("%w: team %d position %d", ErrInvalidSlot, cmd.Team, cmd.Position)
	}
	if !r.Mode.LevelAllowed(cmd.Player.Level) {
		return nil, fmt.Errorf("%w: level %d", ErrLevelOutOfRange, cmd.Player.Level)
	}

	if occupant, taken := r.SlotTaken(cmd.Team, cmd.Position); taken {
		if occupant.UserID != cmd.Player.UserID {
			return nil, fmt.Errorf("%w: team %d position %d", ErrSlotTaken, cmd.Team, cmd.Position)
		}
		// already there
		return []Event{{Type: EvtJoined, UserID: occupant.UserID, ParticipantID: occupant.ID, Team: cmd.Team, Position: cmd.Position}}, nil
	}

	var events []Event
	if i := slices.IndexFunc(r.Participants, func(p engine.Participant) bool { return p.UserID == cmd.Player.UserID }); i >= 0 {
		p := &r.Participants[i]
		events = append(events, Event{
			Type: EvtMoved, UserID: p.UserID, ParticipantID: p.ID,
			Team: cmd.Team, Position: cmd.Position,
			PreviousTeam: p.Team, PreviousPosition: p.Position,
		})
		p.Team, p.Position = cmd.Team, cmd.Position
	} else {
		level := max(1, cmd.Player.Level)
		maxHP := BaseHP + HPPerLevel*(level-1)
		p := engine.Participant{
			ID:        a.ids(),
			UserID:    cmd.Player.UserID,
			Team:      cmd.Team,
			Position:  cmd.Position,
			Username:  cmd.Player.Username,
			Level:     level,
			HP:        maxHP,
			MaxHP:     maxHP,
			Energy:    BaseEnergy,
			MaxEnergy: BaseEnergy,
			Cooldowns: map[string]time.Time{},
		}
		r.Participants = append(r.Participants, p)
		events = append(events, Event{Type: EvtJoined, UserID: p.UserID, ParticipantID: p.ID, Team: p.Team, Position: p.Position})
	}

	if r.Full() {
		started, err := engine.Transition(*r, engine.StatusInProgress)
		if err != nil {
			return nil, err
		}
		*r = started
		s.StartedAt = cmd.Time
		events = append(events, Event{Type: EvtStarted})
	}
	return events, nil
}

func (a *Arena) leave(s *State, cmd Command) ([]Event, error) {
	r := &s.Room
	i := slices.IndexFunc(r.Participants, func(p engine.Participant) bool { return p.UserID == cmd.Player.UserID })
	if i < 0 {
		return nil, ErrNotInRoom
	}
	p := r.Participants[i]

	if r.Status != engine.StatusInProgress {
		r.Participants = slices.Delete(r.Participants, i, i+1)
		return []Event{{Type: EvtLeft, UserID: p.UserID, ParticipantID: p.ID, Team: p.Team, Position: p.Position}}, nil
	}

	// leaving a running match forfeits it for the whole team
	s.Forfeits[p.UserID] = true
	events := []Event{{Type: EvtForfeited, UserID: p.UserID, ParticipantID: p.ID, Team: p.Team}}
	done, err := complete(s, engine.OpposingTeam(p.Team), cmd.Time)
	if err != nil {
		return nil, err
	}
	events = append(events, done...)
	gone, err := dismiss(s)
	if err != nil {
		return nil, err
	}
	return append(events, gone...), nil
}

func (a *Arena) action(s *State, cmd Command) ([]Event, error) {
	r := &s.Room
	if !r.Status.AcceptsActions() {
		return nil, fmt.Errorf("%w: status %s", ErrMatchNotRunning, r.Status)
	}
	ai := slices.IndexFunc(r.Participants, func(p engine.Participant) bool { return p.UserID == cmd.Player.UserID })
	if ai < 0 {
		return nil, ErrNotInRoom
	}
	actor := r.Participants[ai]
	if !actor.Alive() {
		return nil, ErrActorDefeated
	}

	now := cmd.Time
	in := cmd.Intent
	if err := engine.Validate(actor, in, a.cat, now); err != nil {
		return nil, err
	}

	ti := ai
	switch {
	case engine.TargetsSelf(in, a.cat):
		in.TargetID = actor.ID
	case engine.RequiresTarget(in, a.cat):
		if in.TargetID == "" {
			return nil, engine.ErrTargetRequired
		}
		ti = r.Participant(in.TargetID)
		if ti < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, in.TargetID)
		}
	case in.TargetID != "":
		ti = r.Participant(in.TargetID)
		if ti < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, in.TargetID)
		}
	default:
		in.TargetID = actor.ID
	}
	target := r.Participants[ti]
	if !target.Alive() {
		return nil, fmt.Errorf("%w: %s", ErrTargetDefeated, target.ID)
	}

	var tech engine.Technique
	if in.Type == engine.ActionTechnique {
		tech, _ = a.cat.Technique(in.TechniqueID)
	}
	hostile := in.Type == engine.ActionAttack || (in.Type == engine.ActionTechnique && tech.Type == engine.TechniqueAttack)
	if hostile && target.Team == actor.Team {
		return nil, fmt.Errorf("%w: %s is an ally", ErrInvalidTarget, target.ID)
	}

	act := engine.Action{
		ID:          s.NextActionID,
		ActorID:     actor.ID,
		TargetID:    target.ID,
		Type:        in.Type,
		TechniqueID: in.TechniqueID,
		Timestamp:   now,
	}

	var onActor, onTarget []engine.Effect
	raw := 0
	switch in.Type {
	case engine.ActionAttack:
		raw = BaseAttackDamage
	case engine.ActionDefense:
		onActor = append(onActor, engine.TurnEffect(engine.EffectProtect, 1))
	case engine.ActionTechnique:
		raw = tech.Damage
		act.Healing = tech.Healing
		for _, tmpl := range tech.Effects {
			e := tmpl.Instantiate(now)
			if tmpl.OnSelf {
				onActor = append(onActor, e)
			} else {
				onTarget = append(onTarget, e)
			}
		}
		actor.Energy -= tech.EnergyCost
		if tech.Cooldown > 0 {
			actor.Cooldowns[tech.ID] = now.Add(tech.Cooldown)
		}
	}

	if raw > 0 {
		out := engine.ComputeModifiers(engine.Purge(actor.Effects, now))
		def := engine.ComputeModifiers(engine.Purge(target.Effects, now))
		act.Damage = def.Mitigate(out.Scale(raw))
	}

	actor.LastActionTime = now
	if ti == ai {
		target = actor
	}
	target.HP = max(0, target.HP-act.Damage)
	if act.Healing > 0 {
		act.Healing = min(act.Healing, target.MaxHP-target.HP)
		target.HP += act.Healing
	}
	if len(onTarget) > 0 {
		target.Effects = engine.Merge(engine.Purge(target.Effects, now), onTarget, now)
	}
	if ti == ai {
		actor = target
	}
	if len(onActor) > 0 {
		actor.Effects = engine.Merge(engine.Purge(actor.Effects, now), onActor, now)
	}
	act.AppliedEffects = append(slices.Clone(onTarget), onActor...)

	r.Participants[ai] = actor
	if ti != ai {
		r.Participants[ti] = target
	}

	st := s.Stats[actor.ID]
	st.DamageDealt += act.Damage
	st.HealingDone += act.Healing
	st.Actions++
	s.Stats[actor.ID] = st

	s.Actions = append(s.Actions, act)
	s.NextActionID++
	events := []Event{{Type: EvtActionResolved, UserID: actor.UserID, ParticipantID: actor.ID, Action: &act}}

	done, err := checkDefeat(s, now)
	if err != nil {
		return nil, err
	}
	return append(events, done...), nil
}

// tick runs one authoritative effect tick. Outside a running match it does nothing.
func (a *Arena) tick(s *State, cmd Command) ([]Event, error) {
	r := &s.Room
	if r.Status != engine.StatusInProgress {
		return nil, nil
	}
	r.Tick++
	ledger := engine.NewLedger(a.log, engine.WithClock(func() time.Time { return cmd.Time }))
	for i, p := range r.Participants {
		if !p.Alive() {
			continue
		}
		r.Participants[i] = ledger.Tick(p, r.Tick)
	}

	events := []Event{{Type: EvtTicked}}
	done, err := checkDefeat(s, cmd.Time)
	if err != nil {
		return nil, err
	}
	return append(events, done...), nil
}

func checkDefeat(s *State, now time.Time) ([]Event, error) {
	one, two := s.Room.TeamDefeated(engine.TeamOne), s.Room.TeamDefeated(engine.TeamTwo)
	switch {
	case one && two:
		return complete(s, 0, now)
	case one:
		return complete(s, engine.TeamTwo, now)
	case two:
		return complete(s, engine.TeamOne, now)
	}
	return nil, nil
}

// complete ends the match. A winner of 0 means nobody won.
func complete(s *State, winner int, now time.Time) ([]Event, error) {
	done, err := engine.Transition(s.Room, engine.StatusCompleted)
	if err != nil {
		return nil, err
	}
	done.WinnerTeam = winner
	s.Room = done
	s.EndedAt = now
	for _, p := range s.Room.Participants {
		s.Rewards[p.UserID] = RewardFor(p, winner, s.Forfeits[p.UserID])
	}
	return []Event{{Type: EvtCompleted, WinnerTeam: winner}}, nil
}

func dismiss(s *State) ([]Event, error) {
	if s.Room.Status == engine.StatusDismissed {
		return nil, nil
	}
	gone, err := engine.Transition(s.Room, engine.StatusDismissed)
	if err != nil {
		return nil, err
	}
	s.Room = gone
	return []Event{{Type: EvtDismissed}}, nil
}
