// Package session keeps a player's view of a match in step with the
// authoritative room service.
//
// A Session is a single goroutine that owns the local match state. Network
// calls run in short-lived goroutines and report back through the inbox, so a
// slow request never blocks the loop and never stacks a second poll.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/internal/rewards"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

var (
	ErrClosed         = errors.New("session closed")
	ErrNotInMatch     = errors.New("not in a match")
	ErrNotParticipant = errors.New("local user is not seated in this room")
	ErrMatchInactive  = fmt.Errorf("%w: match is not in progress", engine.ErrRejected)
	ErrActionInFlight = fmt.Errorf("%w: previous action still pending", engine.ErrRejected)
	ErrJoinRefused    = errors.New("join refused")
	ErrActionFailed   = errors.New("action failed")
)

type Config struct {
	UserID             string
	MatchPollInterval  time.Duration
	BrowsePollInterval time.Duration
	RequestTimeout     time.Duration
	ActionCooldown     time.Duration
	JoinRetries        int
	JoinBackoff        time.Duration
	JoinBackoffFactor  float64
	LogLimit           int
}

func (c Config) withDefaults() Config {
	if c.MatchPollInterval <= 0 {
		c.MatchPollInterval = time.Second
	}
	if c.BrowsePollInterval <= 0 {
		c.BrowsePollInterval = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 2 * time.Second
	}
	if c.ActionCooldown <= 0 {
		c.ActionCooldown = engine.GlobalCooldown
	}
	if c.JoinRetries < 0 {
		c.JoinRetries = 0
	} else if c.JoinRetries == 0 {
		c.JoinRetries = 3
	}
	if c.JoinBackoff <= 0 {
		c.JoinBackoff = 500 * time.Millisecond
	}
	if c.JoinBackoffFactor < 1 {
		c.JoinBackoffFactor = 1.5
	}
	if c.LogLimit <= 0 {
		c.LogLimit = 100
	}
	return c
}

type Option func(*Session)

func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

type mode int

const (
	modeIdle mode = iota
	modeBrowsing
	modeMatch
)

type Session struct {
	svc      RoomService
	cat      engine.Catalog
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
	ledger   *engine.Ledger
	teardown *rewards.Teardown

	inbox  chan msg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// owned by loop
	mode        mode
	gen         uint64
	timer       *time.Timer
	inFlight    bool
	match       *Match
	pending     *Pending
	rooms       []types.RoomSummary
	lastOutcome *rewards.Outcome
	subs        map[int]chan Event
	nextSub     int
}

func New(parent context.Context, svc RoomService, cat engine.Catalog, cfg Config, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		svc:    svc,
		cat:    cat,
		cfg:    cfg.withDefaults(),
		log:    zap.NewNop(),
		now:    time.Now,
		inbox:  make(chan msg, 64),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("session").With(zap.String("user", s.cfg.UserID))
	s.ledger = engine.NewLedger(s.log, engine.WithClock(s.now))
	s.teardown = rewards.NewTeardown(svc, s.log, s.cfg.RequestTimeout)

	go s.loop()
	return s
}

type msg interface{ isSessionMsg() }

type browseMsg struct{ ack chan struct{} }
type stopMsg struct{ ack chan struct{} }
type enterMsg struct {
	roomID  string
	details types.RoomDetails
	ack     chan struct{}
}
type leaveMsg struct{ reply chan leaveReply }
type submitMsg struct {
	intent engine.Intent
	reply  chan submitReply
}
type selectMsg struct{ sel Selection }
type viewMsg struct{ reply chan View }
type subscribeMsg struct{ reply chan subscription }
type unsubscribeMsg struct{ id int }
type listResult struct {
	gen   uint64
	rooms []types.RoomSummary
	err   error
}
type pollResult struct {
	gen   uint64
	state types.RoomState
	err   error
}
type actionResult struct {
	gen     uint64
	pending *Pending
	res     types.ActionResult
	err     error
}
type resetMsg struct{ roomID string }
type warnMsg struct{ roomID, summary, detail string }

func (browseMsg) isSessionMsg()      {}
func (stopMsg) isSessionMsg()        {}
func (enterMsg) isSessionMsg()       {}
func (leaveMsg) isSessionMsg()       {}
func (submitMsg) isSessionMsg()      {}
func (selectMsg) isSessionMsg()      {}
func (viewMsg) isSessionMsg()        {}
func (subscribeMsg) isSessionMsg()   {}
func (unsubscribeMsg) isSessionMsg() {}
func (listResult) isSessionMsg()     {}
func (pollResult) isSessionMsg()     {}
func (actionResult) isSessionMsg()   {}
func (resetMsg) isSessionMsg()       {}
func (warnMsg) isSessionMsg()        {}

type leaveReply struct {
	roomID string
	err    error
}

type submitReply struct {
	pending *Pending
	err     error
}

type subscription struct {
	id int
	ch chan Event
}

// send hands m to the loop.
func (s *Session) send(ctx context.Context, m msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// deliver is send for background goroutines; it gives up when the session stops.
func (s *Session) deliver(m msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func await[T any](ctx context.Context, s *Session, ch chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		return zero, ErrClosed
	}
}

// Browse switches to room-list polling, dropping any match view.
func (s *Session) Browse(ctx context.Context) error {
	ack := make(chan struct{}, 1)
	if err := s.send(ctx, browseMsg{ack: ack}); err != nil {
		return err
	}
	_, err := await(ctx, s, ack)
	return err
}

// Stop cancels whatever polling is running.
func (s *Session) Stop(ctx context.Context) error {
	ack := make(chan struct{}, 1)
	if err := s.send(ctx, stopMsg{ack: ack}); err != nil {
		return err
	}
	_, err := await(ctx, s, ack)
	return err
}

// Enter starts following a room the user already sits in.
func (s *Session) Enter(ctx context.Context, roomID string) error {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	details, err := s.svc.GetRoomDetails(rctx, roomID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load room %s: %w", roomID, err)
	}
	return s.enter(ctx, roomID, details)
}

func (s *Session) enter(ctx context.Context, roomID string, details types.RoomDetails) error {
	ack := make(chan struct{}, 1)
	if err := s.send(ctx, enterMsg{roomID: roomID, details: details, ack: ack}); err != nil {
		return err
	}
	_, err := await(ctx, s, ack)
	return err
}

// Leave stops following the current room and tells the service the user left.
func (s *Session) Leave(ctx context.Context) error {
	reply := make(chan leaveReply, 1)
	if err := s.send(ctx, leaveMsg{reply: reply}); err != nil {
		return err
	}
	r, err := await(ctx, s, reply)
	if err != nil {
		return err
	}
	if r.err != nil {
		return r.err
	}
	lctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	if err := s.svc.LeaveRoom(lctx, r.roomID); err != nil {
		return fmt.Errorf("failed to leave room %s: %w", r.roomID, err)
	}
	return nil
}

// Submit validates in locally and, if it passes, sends it. Rejections come back
// immediately and nothing is sent.
func (s *Session) Submit(ctx context.Context, in engine.Intent) (*Pending, error) {
	reply := make(chan submitReply, 1)
	if err := s.send(ctx, submitMsg{intent: in, reply: reply}); err != nil {
		return nil, err
	}
	r, err := await(ctx, s, reply)
	if err != nil {
		return nil, err
	}
	return r.pending, r.err
}

func (s *Session) Select(ctx context.Context, sel Selection) error {
	return s.send(ctx, selectMsg{sel: sel})
}

func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.send(ctx, viewMsg{reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, s, reply)
}

// Subscribe registers an event listener. A listener that falls behind is
// dropped and its channel closed.
func (s *Session) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	reply := make(chan subscription, 1)
	if err := s.send(ctx, subscribeMsg{reply: reply}); err != nil {
		return nil, nil, err
	}
	sub, err := await(ctx, s, reply)
	if err != nil {
		return nil, nil, err
	}
	cancel := func() { _ = s.send(context.Background(), unsubscribeMsg{id: sub.id}) }
	return sub.ch, cancel, nil
}

// Close stops the loop and waits for it.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) loop() {
	defer close(s.done)
	for {
		var tick <-chan time.Time
		if s.timer != nil {
			tick = s.timer.C
		}

		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case <-tick:
			s.timer = nil
			s.poll()

		case m := <-s.inbox:
			s.handle(m)
		}
	}
}

func (s *Session) handle(m msg) {
	switch msg := m.(type) {
	case browseMsg:
		s.switchMode(modeBrowsing)
		s.match = nil
		s.schedule(0)
		msg.ack <- struct{}{}

	case stopMsg:
		s.switchMode(modeIdle)
		msg.ack <- struct{}{}

	case enterMsg:
		s.switchMode(modeMatch)
		s.match = newMatch(msg.roomID, s.cfg.UserID, s.ledger, s.cfg.LogLimit)
		s.lastOutcome = nil
		_, drift := s.match.applyDetails(msg.details)
		for _, d := range drift {
			s.log.Warn("inconsistent room snapshot", zap.String("room", msg.roomID), zap.String("drift", d))
			s.emit(Event{Type: EventWarning, RoomID: msg.roomID, Summary: "Team roster out of sync", Detail: d})
		}
		s.emitSnapshot()
		s.schedule(0)
		msg.ack <- struct{}{}

	case leaveMsg:
		if s.match == nil {
			msg.reply <- leaveReply{err: ErrNotInMatch}
			break
		}
		roomID := s.match.RoomID()
		s.switchMode(modeIdle)
		s.resetMatch()
		msg.reply <- leaveReply{roomID: roomID}

	case submitMsg:
		p, err := s.submit(msg.intent)
		msg.reply <- submitReply{pending: p, err: err}

	case selectMsg:
		if s.match != nil {
			s.match.selection = msg.sel
			s.emitSnapshot()
		}

	case viewMsg:
		msg.reply <- s.view()

	case subscribeMsg:
		s.nextSub++
		ch := make(chan Event, 32)
		s.subs[s.nextSub] = ch
		msg.reply <- subscription{id: s.nextSub, ch: ch}

	case unsubscribeMsg:
		if ch, ok := s.subs[msg.id]; ok {
			close(ch)
			delete(s.subs, msg.id)
		}

	case listResult:
		if msg.gen != s.gen || s.mode != modeBrowsing {
			break
		}
		s.inFlight = false
		if msg.err != nil {
			s.log.Warn("room list poll failed", zap.Error(msg.err))
			s.emit(Event{Type: EventError, Summary: "Room list unavailable", Detail: msg.err.Error()})
		} else {
			s.rooms = msg.rooms
			s.emit(Event{Type: EventRoomList, Rooms: msg.rooms})
		}
		s.schedule(s.cfg.BrowsePollInterval)

	case pollResult:
		if msg.gen != s.gen || s.mode != modeMatch || s.match == nil {
			break
		}
		s.inFlight = false
		s.onState(msg.state, msg.err)

	case actionResult:
		s.onActionResult(msg)

	case resetMsg:
		// a newer match may already be running
		if s.match != nil && s.match.RoomID() == msg.roomID && s.mode != modeMatch {
			s.resetMatch()
			s.emit(Event{Type: EventReset, RoomID: msg.roomID})
		}

	case warnMsg:
		s.emit(Event{Type: EventWarning, RoomID: msg.roomID, Summary: msg.summary, Detail: msg.detail})
	}
}

func (s *Session) switchMode(m mode) {
	s.stopTimer()
	s.gen++
	s.inFlight = false
	s.mode = m
}

func (s *Session) schedule(d time.Duration) {
	s.stopTimer()
	s.timer = time.NewTimer(d)
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// poll issues one request for the current mode. The next one is scheduled
// when this one reports back.
func (s *Session) poll() {
	if s.inFlight {
		return
	}
	gen := s.gen
	timeout := s.cfg.RequestTimeout

	switch s.mode {
	case modeBrowsing:
		s.inFlight = true
		go func() {
			ctx, cancel := context.WithTimeout(s.ctx, timeout)
			defer cancel()
			rooms, err := s.svc.ListRooms(ctx)
			s.deliver(listResult{gen: gen, rooms: rooms, err: err})
		}()

	case modeMatch:
		if s.match == nil {
			return
		}
		s.inFlight = true
		roomID, cursor := s.match.RoomID(), s.match.LastActionID()
		go func() {
			ctx, cancel := context.WithTimeout(s.ctx, timeout)
			defer cancel()
			st, err := s.svc.GetRoomState(ctx, roomID, cursor)
			s.deliver(pollResult{gen: gen, state: st, err: err})
		}()
	}
}

func (s *Session) onState(st types.RoomState, err error) {
	roomID := s.match.RoomID()
	if err != nil {
		s.log.Warn("room state poll failed", zap.String("room", roomID), zap.Error(err))
		s.emit(Event{Type: EventError, RoomID: roomID, Summary: "Connection to match interrupted", Detail: err.Error()})
		s.schedule(s.cfg.MatchPollInterval)
		return
	}

	u := s.match.applyState(st)
	if u.unknownStatus != "" {
		s.log.Warn("unknown room status", zap.String("room", roomID), zap.String("status", u.unknownStatus))
	}
	for _, a := range u.fresh {
		s.log.Debug("action observed", zap.String("room", roomID), zap.Int64("action", a.ID), zap.String("actor", a.ActorID))
	}
	s.emitSnapshot()

	if !u.terminal {
		s.schedule(s.cfg.MatchPollInterval)
		return
	}

	s.lastOutcome = s.match.outcome
	s.log.Info("match finished",
		zap.String("room", roomID),
		zap.String("status", string(s.match.room.Status)),
		zap.String("result", string(s.lastOutcome.Result)),
		zap.Stringer("reward_shape", s.lastOutcome.Shape))
	s.emit(Event{Type: EventTerminal, RoomID: roomID, Outcome: s.lastOutcome})

	// stop polling, keep the final view until teardown resets it
	s.switchMode(modeIdle)
	go func() {
		err := s.teardown.Run(s.ctx, roomID, func() { s.deliver(resetMsg{roomID: roomID}) })
		if err != nil {
			s.deliver(warnMsg{roomID: roomID, summary: "Room could not be closed", detail: err.Error()})
		}
	}()
}

func (s *Session) submit(in engine.Intent) (*Pending, error) {
	if s.match == nil || s.mode != modeMatch {
		return nil, ErrNotInMatch
	}
	m := s.match
	if !m.room.Status.AcceptsActions() {
		return nil, ErrMatchInactive
	}
	if s.pending != nil {
		return nil, ErrActionInFlight
	}
	self, ok := m.Self()
	if !ok {
		return nil, ErrNotParticipant
	}

	// stun and cooldowns outrank a missing target
	now := s.now()
	if err := engine.Validate(self, in, s.cat, now); err != nil {
		s.reject(err)
		return nil, err
	}
	if now.Before(m.cooldownUntil) {
		err := fmt.Errorf("%w: %s left", engine.ErrGlobalCooldown, m.cooldownUntil.Sub(now).Round(time.Millisecond))
		s.reject(err)
		return nil, err
	}

	if in.TargetID == "" && m.selection.TargetID != "" && engine.RequiresTarget(in, s.cat) {
		in.TargetID = m.selection.TargetID
	}
	if engine.RequiresTarget(in, s.cat) && in.TargetID == "" {
		s.emit(Event{Type: EventTargetRequired, RoomID: m.RoomID(), Intent: &in})
		return nil, engine.ErrTargetRequired
	}

	p := newPending(in)
	s.pending = p
	m.predict(in, s.cat)
	s.emitSnapshot()

	gen, roomID, timeout := s.gen, m.RoomID(), s.cfg.RequestTimeout
	req := types.ActionRequest{Type: string(in.Type), TargetID: in.TargetID, TechniqueID: in.TechniqueID}
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()
		res, err := s.svc.PerformAction(ctx, roomID, req)
		s.deliver(actionResult{gen: gen, pending: p, res: res, err: err})
	}()
	return p, nil
}

func (s *Session) reject(err error) {
	s.emit(Event{Type: EventError, Summary: "Action rejected", Detail: err.Error()})
}

func (s *Session) onActionResult(r actionResult) {
	if s.pending == r.pending {
		s.pending = nil
	}
	err := r.err
	if err == nil && !r.res.Success {
		err = fmt.Errorf("%w: %s", ErrActionFailed, r.res.Error)
	}
	defer r.pending.complete(r.res, err)

	if err != nil {
		s.log.Warn("action failed", zap.String("type", string(r.pending.Intent.Type)), zap.Error(err))
		s.emit(Event{Type: EventError, Summary: "Action failed", Detail: err.Error()})
		return
	}
	if r.gen != s.gen || s.match == nil {
		return
	}

	s.match.cooldownUntil = s.now().Add(s.cfg.ActionCooldown)
	res := &Resolution{Intent: r.pending.Intent}
	if r.res.Damage != nil {
		res.Damage = *r.res.Damage
	}
	if r.res.Healing != nil {
		res.Healing = *r.res.Healing
	}
	s.emit(Event{Type: EventActionResolved, RoomID: s.match.RoomID(), Resolved: res})
	s.emitSnapshot()
}

func (s *Session) resetMatch() {
	s.match = nil
	s.pending = nil
}

func (s *Session) view() View {
	if s.match == nil {
		return View{Outcome: s.lastOutcome, Rooms: s.rooms}
	}
	return s.match.view(s.now(), s.pending != nil)
}

func (s *Session) emitSnapshot() {
	v := s.view()
	s.emit(Event{Type: EventSnapshot, RoomID: v.RoomID, View: &v})
}

func (s *Session) emit(e Event) {
	for id, ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.log.Warn("dropping slow subscriber", zap.Int("subscriber", id))
			close(ch)
			delete(s.subs, id)
		}
	}
}

func (s *Session) shutdown() {
	s.stopTimer()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}
