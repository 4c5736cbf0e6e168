package game

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/victornm/blindquiz/internal/catalog"
	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/errors"
	"github.com/victornm/blindquiz/internal/royale"
	"github.com/victornm/blindquiz/internal/scoring"
	"github.com/victornm/blindquiz/internal/telemetry"
)

var errNoCandidate = stderrors.New("no candidate left in catalog")

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	switch s.round.Phase {
	case domain.RoundPhaseIntro:
		if !now.Before(s.round.Deadline) {
			s.play(ctx, now)
		}

	case domain.RoundPhasePlaying:
		if now.Before(s.round.Deadline) && !s.allAnswered() {
			s.countdown(ctx, now)
			return
		}

		s.drainPending()
		if s.stopped || s.round.Phase != domain.RoundPhasePlaying {
			return
		}
		s.reveal(ctx, now)

	case domain.RoundPhaseReveal:
		if !now.Before(s.round.Deadline) {
			s.next(ctx)
		}
	}
}

// drainPending handles guesses stamped before now that are still on their way
// to the inbox. It waits at most one tick.
func (s *Scheduler) drainPending() {
	if s.pending.Load() == 0 {
		return
	}

	t := time.NewTimer(s.settings.Timers.Tick)
	defer t.Stop()

	for s.pending.Load() > 0 && !s.stopped {
		select {
		case f := <-s.inbox:
			f()
		case <-t.C:
			return
		}
	}
}

// allAnswered reports whether every player able to answer did.
func (s *Scheduler) allAnswered() bool {
	n := 0
	for _, p := range s.players {
		if p.Eliminated || !p.Connected {
			continue
		}
		if !p.Answered {
			return false
		}
		n++
	}

	return n > 0
}

func (s *Scheduler) countdown(ctx context.Context, now time.Time) {
	remaining := s.round.Deadline.Sub(now)
	secs := int64((remaining + time.Second - 1) / time.Second)
	if secs == s.lastTick {
		return
	}
	s.lastTick = secs

	s.publish(ctx, domain.EventRoundTick{
		RoomID:     s.room.RoomID,
		Round:      s.round.Index,
		Phase:      s.round.Phase,
		Remaining:  time.Duration(secs) * time.Second,
		Recipients: s.audience(),
	})
}

func (s *Scheduler) beginRound(ctx context.Context, index int) {
	revived := s.rules.BeforeRound(index, s.players)
	for _, p := range s.players {
		p.ResetRound()
	}

	rs := s.rules.Round(index)
	c, choices, err := s.draw(ctx, rs.Difficulty)
	if err != nil {
		s.fail(ctx, err)
		return
	}

	now := s.now()
	s.played = append(s.played, c.ID)
	s.round = domain.RoundState{
		Index:      index,
		Candidate:  c,
		Phase:      domain.RoundPhaseIntro,
		Deadline:   now.Add(s.settings.Timers.Intro),
		Label:      rs.Label,
		Difficulty: rs.Difficulty,
		Choices:    choices,
		Guesses:    make(map[string]domain.Guess),
	}
	s.playDeadline = s.round.Deadline.Add(rs.Duration)
	s.lastTick = -1

	if len(revived) > 0 {
		slog.InfoContext(ctx, "game: players revived", "room", s.room.RoomID, "round", index, "players", revived)
	}

	s.publish(ctx, domain.EventRoundStarted{
		RoomID:     s.room.RoomID,
		Round:      index,
		Rounds:     s.room.Config.Rounds,
		Label:      rs.Label,
		Difficulty: rs.Difficulty,
		MediaURL:   c.MediaURL,
		Choices:    choices,
		Deadline:   s.playDeadline,
		Revived:    revived,
		Recipients: s.audience(),
	})
}

func (s *Scheduler) play(ctx context.Context, now time.Time) {
	s.round.Phase = domain.RoundPhasePlaying
	s.round.Deadline = s.playDeadline
	s.countdown(ctx, now)
}

func (s *Scheduler) reveal(ctx context.Context, now time.Time) {
	s.round.Phase = domain.RoundPhaseReveal
	s.round.Deadline = now.Add(s.settings.Timers.Reveal)
	s.roundsPlayed++

	rt := s.room.Config.ResponseType
	// The round pays what its drawn choices allow, a short catalog may turn qcm into binary.
	s.maxTotal += s.engine.MaxPoints(rt, len(s.round.Choices))
	maxScore := s.maxScore()

	verdicts := make([]domain.Verdict, 0, len(s.players))
	for _, p := range s.players {
		if p.Eliminated {
			continue
		}

		g, answered := s.round.Guesses[p.ID]
		correct := answered && s.judge(g)
		res := s.engine.Score(scoring.ModeFor(rt, answered && g.IsChoice(), len(s.round.Choices)), correct, p.Streak)

		p.Score += res.Points
		p.Streak = res.Streak
		p.RoundPoints = res.Points
		p.IsCorrect = correct
		tr := s.rules.Resolve(p, correct)

		verdicts = append(verdicts, domain.Verdict{
			PlayerID:   p.ID,
			Answer:     p.CurrentAnswer,
			Answered:   answered,
			Correct:    correct,
			Points:     res.Points,
			Score:      p.Score,
			Streak:     p.Streak,
			Lives:      p.Lives,
			Eliminated: tr == royale.TransitionEliminated,
			Healed:     tr == royale.TransitionHealed,
		})
	}

	telemetry.Rounds.WithLabelValues(string(s.room.Config.GameType)).Inc()

	audience := s.audience()
	s.publish(ctx, domain.EventRoundRevealed{
		RoomID:     s.room.RoomID,
		Round:      s.round.Index,
		Candidate:  s.round.Candidate,
		Verdicts:   verdicts,
		Recipients: audience,
	})

	for _, v := range verdicts {
		s.publish(ctx, domain.EventScoreUpdated{
			RoomID:     s.room.RoomID,
			PlayerID:   v.PlayerID,
			Score:      v.Score,
			MaxScore:   maxScore,
			UpdateTime: now,
			Recipients: audience,
		})
	}
}

func (s *Scheduler) judge(g domain.Guess) bool {
	precision := s.room.Config.Precision
	if g.IsChoice() {
		return g.Choice < len(s.round.Choices) && s.round.Choices[g.Choice] == s.round.Candidate.Label(precision)
	}

	return s.matcher.Accept(g.Text, precision, s.round.Candidate)
}

func (s *Scheduler) maxScore() int {
	return s.maxTotal
}

func (s *Scheduler) next(ctx context.Context) {
	if s.roundsPlayed >= s.room.Config.Rounds || s.rules.Finished(s.players, s.startedWith) {
		s.finish(ctx)
		return
	}

	s.beginRound(ctx, s.round.Index+1)
}

func (s *Scheduler) finish(ctx context.Context) {
	s.room.Status = domain.RoomStatusFinished
	s.round.Phase = domain.RoundPhaseIdle

	maxScore := s.maxScore()
	standings := scoring.Standings(s.copyPlayers(), maxScore)

	slog.InfoContext(ctx, "game: finished",
		"room", s.room.RoomID,
		"rounds", s.roundsPlayed,
		"max_score", maxScore,
	)

	s.publish(ctx, domain.EventGameFinished{
		RoomID:     s.room.RoomID,
		Rounds:     s.roundsPlayed,
		MaxScore:   maxScore,
		Standings:  standings,
		Recipients: s.audience(),
	})
}

// draw picks the round's candidate and, for multiple choice rooms, its choices.
// Catalog errors are retried, a round never starts without a candidate.
func (s *Scheduler) draw(ctx context.Context, d domain.Difficulty) (domain.Candidate, []string, error) {
	q := s.query(d)

	var err error
	for attempt := 0; attempt <= s.settings.CatalogRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Candidate{}, nil, ctx.Err()
			case <-time.After(s.settings.CatalogBackoff):
			}
		}

		var cs []domain.Candidate
		if cs, err = s.fetch(ctx, q); err == nil {
			c, choices := s.pick(cs)
			return c, choices, nil
		}

		slog.WarnContext(ctx, "game: draw candidate failed",
			"room", s.room.RoomID,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return domain.Candidate{}, nil, errors.New(errors.CodeUnavailable,
		errors.WithMessagef("catalog unavailable: room=%s", s.room.RoomID),
		errors.WithCause(err),
	)
}

func (s *Scheduler) query(d domain.Difficulty) catalog.Query {
	c := s.room.Config

	q := catalog.Query{
		Difficulty: d,
		Exclude:    append([]string(nil), s.played...),
		Limit:      1,
	}
	if c.ResponseType != domain.ResponseTypeTyping {
		// Extra rows to find enough distinct labels.
		q.Limit = s.settings.Choices * 3
	}

	switch c.Selection {
	case domain.SelectionThematic:
		q.Tags = c.Themes
	case domain.SelectionUnseen:
		q.Exclude = append(q.Exclude, c.SeenIDs...)
	}

	return q
}

// fetch relaxes the difficulty when the catalog has nothing left at that level.
func (s *Scheduler) fetch(ctx context.Context, q catalog.Query) ([]domain.Candidate, error) {
	cs, err := s.catalog.Candidates(ctx, q)
	if err != nil {
		return nil, err
	}

	if len(cs) == 0 && q.Difficulty != "" {
		q.Difficulty = ""
		if cs, err = s.catalog.Candidates(ctx, q); err != nil {
			return nil, err
		}
	}

	if len(cs) == 0 {
		return nil, errNoCandidate
	}

	return cs, nil
}

func (s *Scheduler) pick(cs []domain.Candidate) (domain.Candidate, []string) {
	c := cs[0]
	if s.room.Config.ResponseType == domain.ResponseTypeTyping {
		return c, nil
	}

	precision := s.room.Config.Precision
	choices := []string{c.Label(precision)}
	for _, o := range cs[1:] {
		if len(choices) == s.settings.Choices {
			break
		}

		l := o.Label(precision)
		if !contains(choices, l) {
			choices = append(choices, l)
		}
	}

	s.rnd.Shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })
	return c, choices
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
