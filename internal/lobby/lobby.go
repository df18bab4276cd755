// Package lobby runs one room as an actor. The lobby goroutine owns the arena
// state; everything else talks to it through the inbox.
package lobby

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/internal/arena"
	"github.com/zxckotee/pvp-arena/internal/engine"
)

var ErrClosed = errors.New("room closed")

// Recorder receives every finished match exactly once.
type Recorder interface {
	RecordMatch(ctx context.Context, s arena.Summary) error
}

type Msg interface{ isLobbyMsg() }

// Command applies one arena command and answers on Reply.
type Command struct {
	Cmd   arena.Command
	Reply chan Result
}

func (Command) isLobbyMsg() {}

type Result struct {
	Events []arena.Event
	State  arena.State
	Err    error
}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Snapshot struct {
	Version int
	State   arena.State
}

type View struct {
	Version    int
	NumClients int
	Ticking    bool
	State      arena.State
}

type Option func(*Lobby)

func WithTickInterval(d time.Duration) Option { return func(l *Lobby) { l.tickEvery = d } }

// WithRetention sets how long a dismissed room stays readable before the lobby stops.
func WithRetention(d time.Duration) Option { return func(l *Lobby) { l.retention = d } }

func WithRecorders(rs ...Recorder) Option {
	return func(l *Lobby) { l.recorders = append(l.recorders, rs...) }
}

func WithClock(now func() time.Time) Option { return func(l *Lobby) { l.now = now } }

func WithLogger(log *zap.Logger) Option { return func(l *Lobby) { l.log = log } }

// WithOnClose registers a callback run once after the lobby stops.
func WithOnClose(fn func(id string)) Option { return func(l *Lobby) { l.onClose = fn } }

type Lobby struct {
	id      string
	arena   *arena.Arena
	inbox   chan Msg
	state   arena.State
	version int
	clients map[string]chan Snapshot
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	tickEvery time.Duration
	retention time.Duration
	recorders []Recorder
	now       func() time.Time
	log       *zap.Logger
	onClose   func(id string)

	ticker   *time.Ticker
	expiry   *time.Timer
	recorded bool
}

func NewLobby(parent context.Context, a *arena.Arena, initial arena.State, opts ...Option) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		id:        initial.Room.ID,
		arena:     a,
		inbox:     make(chan Msg, 64), // Small buffer
		state:     initial,
		clients:   make(map[string]chan Snapshot),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		tickEvery: time.Second,
		retention: 2 * time.Minute,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.Named("lobby").With(zap.String("room", l.id))
	l.syncTimers()

	go l.loop()
	return l
}

func (l *Lobby) ID() string { return l.id }

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		var tick <-chan time.Time
		if l.ticker != nil {
			tick = l.ticker.C
		}
		var expired <-chan time.Time
		if l.expiry != nil {
			expired = l.expiry.C
		}

		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-tick:
			l.apply(arena.Command{Type: arena.CmdTick})

		case <-expired:
			l.log.Info("dismissed room retention over")
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				l.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: l.version, State: l.state}

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}

			case Command:
				res := l.apply(msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- res
				}

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Ticking:    l.ticker != nil,
					State:      l.state,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) apply(cmd arena.Command) Result {
	if cmd.Time.IsZero() {
		cmd.Time = l.now()
	}
	events, next, err := l.arena.Apply(l.state, cmd)
	if err != nil {
		return Result{State: l.state, Err: err}
	}
	if len(events) == 0 {
		return Result{State: l.state}
	}

	l.state = next
	l.version++
	for _, e := range events {
		if e.Type == arena.EvtCompleted && !l.recorded {
			l.recorded = true
			l.log.Info("match completed", zap.Int("winner_team", e.WinnerTeam), zap.Uint64("ticks", next.Room.Tick))
			go l.record(arena.Summarize(next))
		}
	}
	l.syncTimers()
	l.broadcast(Snapshot{Version: l.version, State: l.state})
	return Result{Events: events, State: l.state}
}

// syncTimers runs the tick source only while the match is live and arms the
// retention timer once the room is dismissed.
func (l *Lobby) syncTimers() {
	status := l.state.Room.Status
	switch {
	case status == engine.StatusInProgress && l.ticker == nil && l.tickEvery > 0:
		l.ticker = time.NewTicker(l.tickEvery)
	case status != engine.StatusInProgress && l.ticker != nil:
		l.ticker.Stop()
		l.ticker = nil
	}
	if status == engine.StatusDismissed && l.expiry == nil {
		l.expiry = time.NewTimer(l.retention)
	}
}

func (l *Lobby) record(sum arena.Summary) {
	if len(l.recorders) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(l.ctx), 5*time.Second)
	defer cancel()

	var err error
	for _, r := range l.recorders {
		err = multierr.Append(err, r.RecordMatch(ctx, sum))
	}
	if err != nil {
		l.log.Warn("failed to record match", zap.Error(err))
	}
}

func (l *Lobby) shutdown() {
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}
	if l.expiry != nil {
		l.expiry.Stop()
		l.expiry = nil
	}
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
	if l.onClose != nil {
		l.onClose(l.id)
	}
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
		}
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Done() <-chan struct{} { return l.done }

// Close stops the lobby without waiting for it.
func (l *Lobby) Close() { l.cancel() }

// Do applies cmd and waits for the outcome. Rule violations come back in the
// returned error.
func (l *Lobby) Do(ctx context.Context, cmd arena.Command) (Result, error) {
	reply := make(chan Result, 1)
	if err := l.send(ctx, Command{Cmd: cmd, Reply: reply}); err != nil {
		return Result{}, err
	}
	select {
	case res := <-reply:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-l.done:
		return Result{}, ErrClosed
	}
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-l.done:
		return View{}, ErrClosed
	}
}

func (l *Lobby) send(ctx context.Context, m Msg) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}
}
