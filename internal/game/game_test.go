package game_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/blindquiz/internal/catalog"
	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/errors"
	"github.com/victornm/blindquiz/internal/event"
	"github.com/victornm/blindquiz/internal/game"
)

func TestScheduler_TypingRound(t *testing.T) {
	h := newHarness(t, typingConfig(1), memory(
		domain.Candidate{ID: "c1", Name: "Naruto", MediaURL: "https://cdn/naruto.mp3"},
	))
	h.join("p2")
	require.NoError(t, h.s.Start(h.ctx, "p1"))

	started := events[domain.EventRoundStarted](h.rec)
	require.Len(t, started, 1)
	assert.Equal(t, 1, started[0].Round)
	assert.Equal(t, "https://cdn/naruto.mp3", started[0].MediaURL)
	assert.ElementsMatch(t, []string{"p1", "p2"}, started[0].Audience())

	h.tick() // intro -> playing
	h.accept("p1", "naruto")
	h.accept("p2", "Narutoo")
	h.tick() // everybody answered

	revealed := events[domain.EventRoundRevealed](h.rec)
	require.Len(t, revealed, 1)
	assert.Equal(t, "c1", revealed[0].Candidate.ID)
	for _, v := range revealed[0].Verdicts {
		assert.True(t, v.Correct, v.PlayerID)
		assert.Equal(t, 5, v.Points)
		assert.Equal(t, 5, v.Score)
		assert.Equal(t, 1, v.Streak)
	}

	scores := events[domain.EventScoreUpdated](h.rec)
	require.Len(t, scores, 2)
	assert.Equal(t, 5, scores[0].MaxScore)

	h.tick() // reveal -> finished

	finished := events[domain.EventGameFinished](h.rec)
	require.Len(t, finished, 1)
	assert.Equal(t, 5, finished[0].MaxScore)
	require.Len(t, finished[0].Standings, 2)
	for _, st := range finished[0].Standings {
		assert.Equal(t, domain.RankSPlus, st.Rank)
	}

	r := h.snapshot()
	assert.Equal(t, domain.RoomStatusFinished, r.Status)
	assert.Equal(t, domain.RoundPhaseIdle, r.Phase)
}

func TestScheduler_LastGuessWins(t *testing.T) {
	h := newHarness(t, typingConfig(1), memory(domain.Candidate{ID: "c1", Name: "Naruto"}))
	require.NoError(t, h.s.Start(h.ctx, "p1"))

	h.tick()
	h.accept("p1", "bleach")
	h.accept("p1", "naruto")
	h.tick()

	v := events[domain.EventRoundRevealed](h.rec)[0].Verdicts
	require.Len(t, v, 1)
	assert.True(t, v[0].Correct)
	assert.Equal(t, "naruto", v[0].Answer)
}

func TestScheduler_LateGuess(t *testing.T) {
	h := newHarness(t, typingConfig(1), memory(domain.Candidate{ID: "c1", Name: "Naruto"}))
	require.NoError(t, h.s.Start(h.ctx, "p1"))

	ack := h.submit("p1", "naruto")
	assert.Equal(t, game.Ack{Reason: game.ReasonNotPlaying, Round: 1}, ack, "guesses are closed during the intro")

	h.tick()
	h.clock.Advance(10 * time.Second)

	ack = h.submit("p1", "naruto")
	assert.Equal(t, game.Ack{Reason: game.ReasonLate, Round: 1}, ack)

	h.tick()
	ack = h.submit("p1", "naruto")
	assert.Equal(t, game.Ack{Reason: game.ReasonLate, Round: 1}, ack)

	v := events[domain.EventRoundRevealed](h.rec)[0].Verdicts
	require.Len(t, v, 1)
	assert.False(t, v[0].Answered)
	assert.Equal(t, 0, v[0].Points)
}

func TestScheduler_StreakResetsOnMiss(t *testing.T) {
	h := newHarness(t, typingConfig(2), memory(
		domain.Candidate{ID: "c1", Name: "Naruto"},
		domain.Candidate{ID: "c2", Name: "Naruto Shippuden"},
	))
	require.NoError(t, h.s.Start(h.ctx, "p1"))

	h.playRound(map[string]string{"p1": "naruto"})
	h.playRound(map[string]string{"p1": "zzzzzz"})

	revealed := events[domain.EventRoundRevealed](h.rec)
	require.Len(t, revealed, 2)
	assert.Equal(t, 1, revealed[0].Verdicts[0].Streak)
	assert.Equal(t, 0, revealed[1].Verdicts[0].Streak)
	assert.Equal(t, 5, revealed[1].Verdicts[0].Score)

	require.Len(t, events[domain.EventRoundStarted](h.rec), 2, "a candidate is never drawn twice")

	finished := events[domain.EventGameFinished](h.rec)
	require.Len(t, finished, 1)
	assert.Equal(t, 10, finished[0].MaxScore)
	assert.Equal(t, domain.RankC, finished[0].Standings[0].Rank)
}

func TestScheduler_BinaryChoices(t *testing.T) {
	c := typingConfig(1)
	c.ResponseType = domain.ResponseTypeQCM

	h := newHarness(t, c, memory(
		domain.Candidate{ID: "c1", Name: "Naruto"},
		domain.Candidate{ID: "c2", Name: "Bleach"},
	), func(s *game.Settings) { s.Choices = 2 })
	h.join("p2")
	require.NoError(t, h.s.Start(h.ctx, "p1"))

	started := events[domain.EventRoundStarted](h.rec)[0]
	require.ElementsMatch(t, []string{"Naruto", "Bleach"}, started.Choices)

	h.tick()
	assert.Equal(t, game.ReasonInvalid, h.choose("p1", 5).Reason)
	assert.Equal(t, game.ReasonInvalid, h.submit("p1", "naruto").Reason, "typing is not allowed in qcm rooms")
	require.True(t, h.choose("p1", 0).Accepted)
	require.True(t, h.choose("p2", 1).Accepted)
	h.tick()

	verdicts := events[domain.EventRoundRevealed](h.rec)[0].Verdicts
	require.Len(t, verdicts, 2)

	var correct int
	for _, v := range verdicts {
		if v.Correct {
			correct++
			assert.Equal(t, 1, v.Points)
		} else {
			assert.Equal(t, 0, v.Points)
		}
	}
	assert.Equal(t, 1, correct)
	assert.Equal(t, 1, events[domain.EventScoreUpdated](h.rec)[0].MaxScore)
}

func TestScheduler_ShortCatalogChoices(t *testing.T) {
	c := typingConfig(1)
	c.ResponseType = domain.ResponseTypeQCM

	// Four choices are wanted but the catalog only has two labels.
	h := newHarness(t, c, memory(
		domain.Candidate{ID: "c1", Name: "Naruto"},
		domain.Candidate{ID: "c2", Name: "Bleach"},
	), func(s *game.Settings) { s.Choices = 4 })
	require.NoError(t, h.s.Start(h.ctx, "p1"))

	started := events[domain.EventRoundStarted](h.rec)[0]
	require.Len(t, started.Choices, 2)

	h.tick()
	right := 0
	if started.Choices[1] == "Naruto" {
		right = 1
	}
	require.True(t, h.choose("p1", right).Accepted)
	h.tick()

	v := events[domain.EventRoundRevealed](h.rec)[0].Verdicts[0]
	assert.True(t, v.Correct)
	assert.Equal(t, 1, v.Points, "two choices pay binary points")
	assert.Equal(t, 1, events[domain.EventScoreUpdated](h.rec)[0].MaxScore)

	h.tick()
	finished := events[domain.EventGameFinished](h.rec)
	require.Len(t, finished, 1)
	assert.Equal(t, 1, finished[0].MaxScore)
	assert.Equal(t, domain.RankSPlus, finished[0].Standings[0].Rank)
}

func TestScheduler_InFlightGuessAtDeadline(t *testing.T) {
	tests := map[string]struct {
		// stampLate moves the clock past the deadline before the guess is stamped.
		stampLate bool
		assert    func(t *testing.T, ack game.Ack, v domain.Verdict)
	}{
		"stamped before the deadline": {
			assert: func(t *testing.T, ack game.Ack, v domain.Verdict) {
				assert.True(t, ack.Accepted)
				assert.True(t, v.Answered)
				assert.True(t, v.Correct)
				assert.Equal(t, 5, v.Points)
			},
		},
		"stamped after the deadline": {
			stampLate: true,
			assert: func(t *testing.T, ack game.Ack, v domain.Verdict) {
				assert.Equal(t, game.Ack{Reason: game.ReasonLate, Round: 1}, ack)
				assert.False(t, v.Answered)
				assert.Equal(t, 0, v.Points)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			// A long tick leaves the drain plenty of time to receive the guess.
			h := newHarness(t, typingConfig(1), memory(domain.Candidate{ID: "c1", Name: "Naruto"}),
				func(s *game.Settings) { s.Timers.Tick = 5 * time.Second })
			require.NoError(t, h.s.Start(h.ctx, "p1"))
			h.tick() // intro -> playing

			if tc.stampLate {
				h.clock.Advance(time.Hour)
			}

			// The guess is stamped, then held back until the deadline tick is running.
			release := make(chan struct{})
			stamped := make(chan struct{})
			h.clock.OnNextNow(func() {
				close(stamped)
				<-release
			})

			type result struct {
				ack game.Ack
				err error
			}
			done := make(chan result, 1)
			go func() {
				ack, err := h.s.Submit(h.ctx, domain.Guess{PlayerID: "p1", Text: "naruto", Choice: -1})
				done <- result{ack, err}
			}()
			<-stamped

			if !tc.stampLate {
				h.clock.Advance(time.Hour)
			}
			h.ticker.ch <- h.clock.Now()
			close(release)

			var res result
			select {
			case res = <-done:
			case <-time.After(time.Second):
				t.Fatal("in-flight guess was not handled")
			}
			require.NoError(t, res.err)
			h.snapshot()

			revealed := events[domain.EventRoundRevealed](h.rec)
			require.Len(t, revealed, 1)
			tc.assert(t, res.ack, verdictOf(revealed[0], "p1"))
		})
	}
}

func TestScheduler_SpectatorsAreNotRevived(t *testing.T) {
	c := typingConfig(3)
	c.GameType = domain.GameTypeBattleRoyale
	c.LivesCount = 1

	h := newHarness(t, c, memory(
		domain.Candidate{ID: "c1", Name: "Naruto"},
		domain.Candidate{ID: "c2", Name: "Naruto"},
		domain.Candidate{ID: "c3", Name: "Naruto"},
	), func(s *game.Settings) {
		s.Royale.RevivalRound = 2
		s.Royale.LastStanding = false
	})
	h.join("p2")
	require.NoError(t, h.s.Start(h.ctx, "p1"))

	h.tick()
	h.accept("p1", "naruto")
	h.clock.Advance(time.Hour)
	h.tick() // reveal, p2 is out

	h.join("p3")
	r := h.snapshot()
	require.Len(t, r.Players, 3)
	assert.True(t, r.Players[2].Spectator)
	assert.True(t, r.Players[2].Eliminated)

	h.tick() // round 2, the revival round

	started := events[domain.EventRoundStarted](h.rec)
	require.Len(t, started, 2)
	assert.Equal(t, []string{"p2"}, started[1].Revived)

	r = h.snapshot()
	assert.False(t, r.Players[1].Eliminated)
	assert.True(t, r.Players[2].Eliminated)
}

func TestScheduler_CatalogFailure(t *testing.T) {
	h := newHarness(t, typingConfig(3), failingCatalog{}, func(s *game.Settings) {
		s.CatalogRetries = 1
		s.CatalogBackoff = time.Millisecond
	})

	err := h.s.Start(h.ctx, "p1")
	assert.True(t, errors.Is(err, errors.CodeUnavailable), "start reports the failed first round: %v", err)

	select {
	case <-h.s.Done():
	case <-time.After(time.Second):
		t.Fatal("room should stop after a catalog failure")
	}

	failed := events[domain.EventRoomFailed](h.rec)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Reason, "catalog unavailable")
	assert.Empty(t, events[domain.EventRoundStarted](h.rec))

	_, err = h.s.Join(h.ctx, domain.Player{ID: "p2"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestScheduler_BattleRoyaleRevival(t *testing.T) {
	c := domain.GameConfig{
		Mode:         domain.ModeMultiplayer,
		GameType:     domain.GameTypeBattleRoyale,
		ResponseType: domain.ResponseTypeTyping,
		Rounds:       16,
		Precision:    domain.PrecisionFranchise,
		Selection:    domain.SelectionRandom,
		LivesCount:   1,
	}

	var cs []domain.Candidate
	for i := range 16 {
		cs = append(cs, domain.Candidate{
			ID:        fmt.Sprintf("c%d", i),
			Name:      fmt.Sprintf("Naruto %d", i),
			Franchise: "Naruto",
		})
	}

	h := newHarness(t, c, memory(cs...))
	h.join("p2")
	h.join("p3")
	require.NoError(t, h.s.Start(h.ctx, "p1"))

	for range 16 {
		h.playRound(map[string]string{"p1": "naruto", "p2": "naruto"})
	}

	started := events[domain.EventRoundStarted](h.rec)
	require.Len(t, started, 16)
	for _, e := range started {
		if e.Round == 15 {
			assert.Equal(t, []string{"p3"}, e.Revived)
			assert.Equal(t, "goulag", e.Label)
		} else {
			assert.Empty(t, e.Revived, "round %d", e.Round)
		}
	}

	revealed := events[domain.EventRoundRevealed](h.rec)
	require.Len(t, revealed, 16)
	assert.Len(t, revealed[0].Verdicts, 3)
	assert.True(t, verdictOf(revealed[0], "p3").Eliminated)
	assert.Len(t, revealed[1].Verdicts, 2, "eliminated players are not scored")
	assert.Len(t, revealed[14].Verdicts, 3, "revived players play the revival round")
	assert.True(t, verdictOf(revealed[14], "p3").Eliminated)
	assert.Len(t, revealed[15].Verdicts, 2)

	finished := events[domain.EventGameFinished](h.rec)
	require.Len(t, finished, 1)
	assert.Equal(t, 16, finished[0].Rounds)
	assert.Equal(t, "p3", finished[0].Standings[2].PlayerID)
	assert.True(t, finished[0].Standings[2].Eliminated)
}

func TestScheduler_LivesRunOut(t *testing.T) {
	c := typingConfig(10)
	c.GameType = domain.GameTypeLives
	c.LivesCount = 2

	var cs []domain.Candidate
	for i := range 10 {
		cs = append(cs, domain.Candidate{ID: fmt.Sprintf("c%d", i), Name: "Naruto"})
	}

	h := newHarness(t, c, memory(cs...))
	require.NoError(t, h.s.Start(h.ctx, "p1"))

	h.playRound(map[string]string{"p1": "naruto"})
	h.playRound(map[string]string{"p1": "zzzzzz"})
	assert.Empty(t, events[domain.EventGameFinished](h.rec))

	h.playRound(map[string]string{"p1": "zzzzzz"})

	revealed := events[domain.EventRoundRevealed](h.rec)
	require.Len(t, revealed, 3)
	assert.Equal(t, 1, revealed[1].Verdicts[0].Lives)
	assert.True(t, revealed[2].Verdicts[0].Eliminated)

	finished := events[domain.EventGameFinished](h.rec)
	require.Len(t, finished, 1)
	assert.Equal(t, 3, finished[0].Rounds)
	assert.Equal(t, 15, finished[0].MaxScore)
}

func TestScheduler_Join(t *testing.T) {
	h := newHarness(t, typingConfig(1), memory(domain.Candidate{ID: "c1", Name: "Naruto"}))

	h.join("p2")

	_, err := h.s.Join(h.ctx, domain.Player{ID: "p2"})
	assert.True(t, errors.Is(err, errors.CodeAlreadyExists))

	_, err = h.s.Join(h.ctx, domain.Player{ID: "p3"})
	assert.True(t, errors.Is(err, errors.CodeResourceExhausted))

	require.NoError(t, h.s.SetConnected(h.ctx, "p2", false))
	r, err := h.s.Join(h.ctx, domain.Player{ID: "p2"})
	require.NoError(t, err, "a disconnected player can come back")
	assert.Len(t, r.Players, 2)

	joined := events[domain.EventPlayerJoined](h.rec)
	require.Len(t, joined, 1)
}

func TestScheduler_Start(t *testing.T) {
	h := newHarness(t, typingConfig(1), memory(domain.Candidate{ID: "c1", Name: "Naruto"}))
	h.join("p2")

	err := h.s.Start(h.ctx, "p2")
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))

	require.NoError(t, h.s.Start(h.ctx, "p1"))

	err = h.s.Start(h.ctx, "p1")
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))

	h.playRound(nil)

	_, err = h.s.Join(h.ctx, domain.Player{ID: "p3"})
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))
}

func TestScheduler_Leave(t *testing.T) {
	h := newHarness(t, typingConfig(1), memory())
	h.join("p2")

	n, err := h.s.Leave(h.ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "p2", h.snapshot().HostID)

	left := events[domain.EventPlayerLeft](h.rec)
	require.Len(t, left, 1)
	assert.Equal(t, "p2", left[0].HostID)

	n, err = h.s.Leave(h.ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	select {
	case <-h.s.Done():
	case <-time.After(time.Second):
		t.Fatal("empty room should stop")
	}
	assert.Len(t, events[domain.EventRoomClosed](h.rec), 1)
}

func TestScheduler_EndByHostOnly(t *testing.T) {
	h := newHarness(t, typingConfig(1), memory())
	h.join("p2")

	err := h.s.End(h.ctx, "p2")
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))

	require.NoError(t, h.s.End(h.ctx, "p1"))
	<-h.s.Done()

	closed := events[domain.EventRoomClosed](h.rec)
	require.Len(t, closed, 1)
	assert.ElementsMatch(t, []string{"p1", "p2"}, closed[0].Audience())
}

func TestNew_InvalidSettings(t *testing.T) {
	c := typingConfig(31)
	c.GameType = domain.GameTypeBattleRoyale

	_, err := game.New(game.Config{
		Room:     domain.Room{RoomID: "r1", MaxPlayers: 2, Config: c},
		Host:     domain.Player{ID: "p1"},
		Settings: game.DefaultSettings(),
		Catalog:  catalog.NewMemory(nil),
	})
	require.Error(t, err, "31 rounds are not covered by the default phases")
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	c = typingConfig(3)
	c.GameType = domain.GameTypeLives

	_, err = game.New(game.Config{
		Room:     domain.Room{RoomID: "r1", MaxPlayers: 2, Config: c},
		Host:     domain.Player{ID: "p1"},
		Settings: game.DefaultSettings(),
		Catalog:  catalog.NewMemory(nil),
	})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument), "lives rooms need a lives count")
}

func typingConfig(rounds int) domain.GameConfig {
	return domain.GameConfig{
		Mode:          domain.ModeMultiplayer,
		GameType:      domain.GameTypeStandard,
		ResponseType:  domain.ResponseTypeTyping,
		Rounds:        rounds,
		GuessDuration: 10 * time.Second,
		Precision:     domain.PrecisionExact,
		Selection:     domain.SelectionRandom,
	}
}

type harness struct {
	t   *testing.T
	ctx context.Context

	ticker *fakeTicker
	clock  *fakeClock
	rec    *recorder
	s      *game.Scheduler
}

func memory(cs ...domain.Candidate) catalog.Reader {
	return catalog.NewMemory(cs)
}

func newHarness(t *testing.T, c domain.GameConfig, r catalog.Reader, opts ...func(*game.Settings)) *harness {
	t.Helper()

	settings := game.DefaultSettings()
	settings.Timers = game.Timers{Tick: 5 * time.Millisecond}
	for _, opt := range opts {
		opt(&settings)
	}

	maxPlayers := 2
	if c.GameType == domain.GameTypeBattleRoyale {
		maxPlayers = 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		t:      t,
		ctx:    ctx,
		ticker: &fakeTicker{ch: make(chan time.Time)},
		clock:  &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		rec:    &recorder{},
	}

	s, err := game.New(game.Config{
		Room: domain.Room{
			RoomID:     "r1",
			Name:       "room",
			MaxPlayers: maxPlayers,
			Config:     c,
		},
		Host:          domain.Player{ID: "p1", Name: "Player 1"},
		Settings:      settings,
		Catalog:       r,
		Publisher:     h.rec,
		NewTickerFunc: func(time.Duration) game.Ticker { return h.ticker },
		Now:           h.clock.Now,
	})
	require.NoError(t, err)
	h.s = s

	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})

	return h
}

// tick fires the ticker and waits for the room to handle it.
func (h *harness) tick() {
	h.t.Helper()

	select {
	case h.ticker.ch <- h.clock.Now():
	case <-h.s.Done():
		return
	}
	h.snapshot()
}

// playRound answers a round and moves the room to the next one.
func (h *harness) playRound(guesses map[string]string) {
	h.t.Helper()

	h.tick() // intro -> playing
	for id, text := range guesses {
		h.accept(id, text)
	}
	h.clock.Advance(time.Hour)
	h.tick() // reveal
	h.tick() // next round or finish
}

func (h *harness) join(id string) {
	h.t.Helper()

	_, err := h.s.Join(h.ctx, domain.Player{ID: id, Name: "Player " + id})
	require.NoError(h.t, err)
}

func (h *harness) submit(id, text string) game.Ack {
	h.t.Helper()

	ack, err := h.s.Submit(h.ctx, domain.Guess{PlayerID: id, Text: text, Choice: -1})
	require.NoError(h.t, err)
	return ack
}

func (h *harness) choose(id string, choice int) game.Ack {
	h.t.Helper()

	ack, err := h.s.Submit(h.ctx, domain.Guess{PlayerID: id, Choice: choice})
	require.NoError(h.t, err)
	return ack
}

func (h *harness) accept(id, text string) {
	h.t.Helper()

	ack := h.submit(id, text)
	require.True(h.t, ack.Accepted, "guess %q of %s: %s", text, id, ack.Reason)
}

func (h *harness) snapshot() domain.Room {
	h.t.Helper()

	r, err := h.s.Snapshot(h.ctx)
	if errors.Is(err, errors.CodeNotFound) {
		return domain.Room{}
	}
	require.NoError(h.t, err)
	return r
}

func verdictOf(e domain.EventRoundRevealed, playerID string) domain.Verdict {
	for _, v := range e.Verdicts {
		if v.PlayerID == playerID {
			return v
		}
	}
	return domain.Verdict{}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	onNext func()
}

// Now runs the hook set by OnNextNow, once, after reading the time.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	now, hook := c.now, c.onNext
	c.onNext = nil
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	return now
}

func (c *fakeClock) OnNextNow(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNext = f
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(_ context.Context, e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func events[T event.Event](r *recorder) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []T
	for _, e := range r.events {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

type failingCatalog struct{}

func (failingCatalog) Candidates(context.Context, catalog.Query) ([]domain.Candidate, error) {
	return nil, fmt.Errorf("connection refused")
}

func (failingCatalog) All(context.Context) ([]domain.Candidate, error) {
	return nil, fmt.Errorf("connection refused")
}
