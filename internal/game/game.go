package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"slices"
	"sync/atomic"
	"time"

	"github.com/victornm/blindquiz/internal/catalog"
	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/errors"
	"github.com/victornm/blindquiz/internal/event"
	"github.com/victornm/blindquiz/internal/matcher"
	"github.com/victornm/blindquiz/internal/scoring"
	"github.com/victornm/blindquiz/internal/telemetry"
)

type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Config struct {
	// Room carries the immutable room attributes, its players are ignored.
	Room      domain.Room
	Host      domain.Player
	Settings  Settings
	Catalog   catalog.Reader
	Publisher Publisher

	NewTickerFunc func(d time.Duration) Ticker
	Now           func() time.Time
}

// Reasons a guess is not accepted.
const (
	ReasonLate       = "late"
	ReasonNotPlaying = "not_playing"
	ReasonEliminated = "eliminated"
	ReasonInvalid    = "invalid"
)

// Ack answers a guess submission. Rejections are not errors.
type Ack struct {
	Accepted bool
	Reason   string
	Round    int
}

// Scheduler runs a single room. Every state change happens on the goroutine
// executing Run, other goroutines only send it closures through the inbox.
type Scheduler struct {
	inbox   chan func()
	done    chan struct{}
	pending atomic.Int64

	settings  Settings
	rules     Rules
	matcher   *matcher.Matcher
	engine    *scoring.Engine
	catalog   catalog.Reader
	pub       Publisher
	newTicker func(d time.Duration) Ticker
	now       func() time.Time
	rnd       *rand.Rand

	// Owned by Run.
	room         domain.Room
	players      []*domain.GamePlayer
	round        domain.RoundState
	playDeadline time.Time
	played       []string
	startedWith  int
	roundsPlayed int
	maxTotal     int
	lastTick     int64
	stopped      bool
}

func New(c Config) (*Scheduler, error) {
	if err := c.Settings.Validate(c.Room.Config); err != nil {
		return nil, errors.Invalidf("invalid settings: %v", err)
	}

	rules, err := NewRules(c.Room.Config, c.Settings)
	if err != nil {
		return nil, errors.Invalidf("%v", err)
	}

	s := &Scheduler{
		inbox:     make(chan func()),
		done:      make(chan struct{}),
		settings:  c.Settings,
		rules:     rules,
		matcher:   matcher.New(c.Settings.Matcher),
		engine:    scoring.NewEngine(scoring.Config{Table: c.Settings.Scoring}),
		catalog:   c.Catalog,
		pub:       c.Publisher,
		newTicker: c.NewTickerFunc,
		now:       c.Now,
		rnd:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		room:      c.Room,
	}

	if s.newTicker == nil {
		s.newTicker = newTicker
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.room.Players = nil
	s.room.HostID = c.Host.ID
	s.room.Status = domain.RoomStatusWaiting
	s.round = domain.RoundState{Phase: domain.RoundPhaseIdle}
	s.players = append(s.players, &domain.GamePlayer{Player: c.Host, Connected: true})

	return s, nil
}

func (s *Scheduler) ID() string {
	return s.room.RoomID
}

// Done is closed once the room stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run processes ticks and inbox messages until the room closes or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	t := s.newTicker(s.settings.Timers.Tick)
	defer t.Stop()

	telemetry.RoomsActive.Inc()
	defer telemetry.RoomsActive.Dec()

	for !s.stopped {
		select {
		case <-ctx.Done():
			s.close(context.WithoutCancel(ctx))
			return
		case <-t.C():
			s.safely(ctx, func() { s.tick(ctx) })
		case f := <-s.inbox:
			s.safely(ctx, f)
		}
	}
}

// safely confines a panic to this room.
func (s *Scheduler) safely(ctx context.Context, f func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "game: room panic",
				"room", s.room.RoomID,
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
			s.fail(ctx, fmt.Errorf("internal error"))
		}
	}()

	f()
}

// do runs f on the room goroutine and waits for it.
func (s *Scheduler) do(ctx context.Context, f func()) error {
	ran := make(chan struct{})
	msg := func() {
		defer close(ran)
		f()
	}

	select {
	case s.inbox <- msg:
	case <-s.done:
		return s.errClosed()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ran:
		return nil
	case <-s.done:
		select {
		case <-ran:
			return nil
		default:
			return s.errClosed()
		}
	}
}

func (s *Scheduler) errClosed() error {
	return errors.NotFoundf("room closed: %s", s.room.RoomID)
}

// Snapshot returns a copy of the room.
func (s *Scheduler) Snapshot(ctx context.Context) (domain.Room, error) {
	var r domain.Room
	err := s.do(ctx, func() { r = s.snapshot() })
	return r, err
}

func (s *Scheduler) snapshot() domain.Room {
	r := s.room
	r.Round = s.round.Index
	r.Phase = s.round.Phase
	r.Players = s.copyPlayers()
	return r
}

func (s *Scheduler) copyPlayers() []domain.GamePlayer {
	out := make([]domain.GamePlayer, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	return out
}

func (s *Scheduler) Join(ctx context.Context, p domain.Player) (domain.Room, error) {
	var (
		r   domain.Room
		err error
	)
	if e := s.do(ctx, func() { r, err = s.join(ctx, p) }); e != nil {
		return domain.Room{}, e
	}

	return r, err
}

func (s *Scheduler) join(ctx context.Context, p domain.Player) (domain.Room, error) {
	if s.room.Status == domain.RoomStatusFinished {
		return domain.Room{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("game already finished: room=%s", s.room.RoomID))
	}

	if gp := s.player(p.ID); gp != nil {
		if gp.Connected {
			return domain.Room{}, errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("player already in room: room=%s player=%s", s.room.RoomID, p.ID))
		}

		gp.Connected = true
		return s.snapshot(), nil
	}

	if len(s.players) >= s.room.MaxPlayers {
		return domain.Room{}, errors.New(errors.CodeResourceExhausted,
			errors.WithMessagef("room is full: room=%s max=%d", s.room.RoomID, s.room.MaxPlayers))
	}

	gp := &domain.GamePlayer{Player: p, Connected: true}
	if s.room.Status == domain.RoomStatusPlaying {
		s.rules.Setup(gp)
		if !s.rules.LateJoinersPlay() {
			gp.Lives, gp.Eliminated, gp.Spectator = 0, true, true
		}
	}
	s.players = append(s.players, gp)

	s.publish(ctx, domain.EventPlayerJoined{RoomID: s.room.RoomID, Player: p, Recipients: s.audience()})
	return s.snapshot(), nil
}

// Leave removes a player and reports how many remain. The room closes when nobody is left.
func (s *Scheduler) Leave(ctx context.Context, playerID string) (int, error) {
	var (
		n   int
		err error
	)
	if e := s.do(ctx, func() { n, err = s.leave(ctx, playerID) }); e != nil {
		return 0, e
	}

	return n, err
}

func (s *Scheduler) leave(ctx context.Context, playerID string) (int, error) {
	i := slices.IndexFunc(s.players, func(p *domain.GamePlayer) bool { return p.ID == playerID })
	if i < 0 {
		return len(s.players), errors.NotFoundf("player not in room: room=%s player=%s", s.room.RoomID, playerID)
	}

	s.players = slices.Delete(s.players, i, i+1)
	delete(s.round.Guesses, playerID)

	if len(s.players) == 0 {
		s.close(ctx)
		return 0, nil
	}

	if s.room.HostID == playerID {
		s.room.HostID = s.players[0].ID
	}

	s.publish(ctx, domain.EventPlayerLeft{
		RoomID:     s.room.RoomID,
		PlayerID:   playerID,
		HostID:     s.room.HostID,
		Recipients: s.audience(),
	})

	return len(s.players), nil
}

// SetConnected flags a player as connected or not. Disconnected players keep
// their score and lives, they simply do not answer.
func (s *Scheduler) SetConnected(ctx context.Context, playerID string, connected bool) error {
	var err error
	if e := s.do(ctx, func() {
		p := s.player(playerID)
		if p == nil {
			err = errors.NotFoundf("player not in room: room=%s player=%s", s.room.RoomID, playerID)
			return
		}
		p.Connected = connected
	}); e != nil {
		return e
	}

	return err
}

// Start launches the game. Only the host can start it, once.
func (s *Scheduler) Start(ctx context.Context, playerID string) error {
	var err error
	if e := s.do(ctx, func() { err = s.start(ctx, playerID) }); e != nil {
		return e
	}

	return err
}

func (s *Scheduler) start(ctx context.Context, playerID string) error {
	if playerID != s.room.HostID {
		return errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("only the host can start the game: room=%s", s.room.RoomID))
	}
	if s.room.Status != domain.RoomStatusWaiting {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("game already started: room=%s status=%s", s.room.RoomID, s.room.Status))
	}

	s.room.Status = domain.RoomStatusPlaying
	s.startedWith = len(s.players)
	for _, p := range s.players {
		p.Score, p.Streak = 0, 0
		s.rules.Setup(p)
	}

	slog.InfoContext(ctx, "game: started",
		"room", s.room.RoomID,
		"players", s.startedWith,
		"game_type", s.room.Config.GameType,
	)

	s.beginRound(ctx, 1)
	if s.stopped {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("game failed to start: room=%s", s.room.RoomID))
	}

	return nil
}

// End closes the room. An empty playerID is a system request and skips the host check.
func (s *Scheduler) End(ctx context.Context, playerID string) error {
	var err error
	if e := s.do(ctx, func() {
		if playerID != "" && playerID != s.room.HostID {
			err = errors.New(errors.CodePermissionDenied,
				errors.WithMessagef("only the host can end the game: room=%s", s.room.RoomID))
			return
		}
		s.close(ctx)
	}); e != nil {
		return e
	}

	return err
}

// Submit records a guess. Its receipt time is taken before it is queued,
// so a guess sent before the deadline is honored even if the deadline tick runs first.
func (s *Scheduler) Submit(ctx context.Context, g domain.Guess) (Ack, error) {
	s.pending.Add(1)
	g.ReceivedAt = s.now()

	var (
		ack       Ack
		err       error
		processed bool
	)
	e := s.do(ctx, func() {
		processed = true
		s.pending.Add(-1)
		ack, err = s.submit(ctx, g)
	})
	if !processed {
		s.pending.Add(-1)
	}
	if e != nil {
		return Ack{}, e
	}

	telemetry.Guesses.WithLabelValues(ackResult(ack)).Inc()
	return ack, err
}

func ackResult(a Ack) string {
	if a.Accepted {
		return "accepted"
	}
	return a.Reason
}

func (s *Scheduler) submit(ctx context.Context, g domain.Guess) (Ack, error) {
	if s.room.Status == domain.RoomStatusFinished {
		return Ack{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("game already finished: room=%s", s.room.RoomID))
	}

	p := s.player(g.PlayerID)
	if p == nil {
		return Ack{}, errors.NotFoundf("player not in room: room=%s player=%s", s.room.RoomID, g.PlayerID)
	}

	ack := Ack{Round: s.round.Index}
	switch {
	case s.round.Phase != domain.RoundPhasePlaying:
		ack.Reason = ReasonNotPlaying
		if s.round.Phase == domain.RoundPhaseReveal {
			ack.Reason = ReasonLate
		}
		return ack, nil
	case !g.ReceivedAt.Before(s.round.Deadline):
		ack.Reason = ReasonLate
		return ack, nil
	case p.Eliminated:
		ack.Reason = ReasonEliminated
		return ack, nil
	case !s.validGuess(g):
		ack.Reason = ReasonInvalid
		return ack, nil
	}

	// The last guess before the deadline is the one scored.
	s.round.Guesses[p.ID] = g
	p.Answered = true
	p.CurrentAnswer = s.answerText(g)

	s.publish(ctx, domain.EventGuessAccepted{
		RoomID:     s.room.RoomID,
		Round:      s.round.Index,
		PlayerID:   p.ID,
		ReceivedAt: g.ReceivedAt,
	})

	ack.Accepted = true
	return ack, nil
}

func (s *Scheduler) validGuess(g domain.Guess) bool {
	rt := s.room.Config.ResponseType
	if g.IsChoice() {
		return rt != domain.ResponseTypeTyping && g.Choice < len(s.round.Choices)
	}

	return rt != domain.ResponseTypeQCM && g.Text != ""
}

func (s *Scheduler) answerText(g domain.Guess) string {
	if g.IsChoice() {
		return s.round.Choices[g.Choice]
	}
	return g.Text
}

func (s *Scheduler) player(id string) *domain.GamePlayer {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Scheduler) audience() domain.Recipients {
	ids := make(domain.Recipients, 0, len(s.players))
	for _, p := range s.players {
		ids = append(ids, p.ID)
	}
	return ids
}

func (s *Scheduler) publish(ctx context.Context, e event.Event) {
	if s.pub != nil {
		s.pub.Publish(ctx, e)
	}
}

// close stops the room and tells its members.
func (s *Scheduler) close(ctx context.Context) {
	if s.stopped {
		return
	}
	s.stopped = true
	s.round.Phase = domain.RoundPhaseIdle

	s.publish(ctx, domain.EventRoomClosed{RoomID: s.room.RoomID, Recipients: s.audience()})
	slog.InfoContext(ctx, "game: room closed", "room", s.room.RoomID)
}

// fail stops the room after an unrecoverable error.
func (s *Scheduler) fail(ctx context.Context, err error) {
	if s.stopped {
		return
	}
	s.stopped = true
	s.room.Status = domain.RoomStatusFinished
	s.round.Phase = domain.RoundPhaseIdle
	telemetry.RoomFailures.Inc()

	slog.ErrorContext(ctx, "game: room failed", "room", s.room.RoomID, "error", err)
	s.publish(ctx, domain.EventRoomFailed{
		RoomID:     s.room.RoomID,
		Reason:     errors.Convert(err).Message,
		Recipients: s.audience(),
	})
}

type realTicker struct {
	*time.Ticker
}

func newTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

func (t realTicker) C() <-chan time.Time {
	return t.Ticker.C
}
