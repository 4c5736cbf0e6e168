package game

import (
	"fmt"
	"time"

	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/phase"
	"github.com/victornm/blindquiz/internal/royale"
)

type RoundSettings struct {
	Duration   time.Duration
	Difficulty domain.Difficulty
	Label      string
}

// Rules holds what differs between game types. One is chosen per room at creation.
type Rules interface {
	// Setup prepares a player at game start.
	Setup(p *domain.GamePlayer)
	Round(round int) RoundSettings
	// BeforeRound runs before the round is drawn and returns revived player ids.
	BeforeRound(round int, players []*domain.GamePlayer) []string
	// Resolve applies the outcome of a scored guess.
	Resolve(p *domain.GamePlayer, correct bool) royale.Transition
	Finished(players []*domain.GamePlayer, startedWith int) bool
	// LateJoinersPlay reports whether players joining a running game take part in it.
	LateJoinersPlay() bool
}

func NewRules(c domain.GameConfig, s Settings) (Rules, error) {
	switch c.GameType {
	case domain.GameTypeStandard, "":
		return standardRules{duration: c.GuessDuration}, nil

	case domain.GameTypeLives:
		return livesRules{
			duration: c.GuessDuration,
			m: royale.New(royale.Config{
				MaxLives: c.LivesCount,
			}),
		}, nil

	case domain.GameTypeBattleRoyale:
		rc := s.Royale
		if c.LivesCount > 0 {
			rc.MaxLives = c.LivesCount
		}
		if c.Mode == domain.ModeSolo {
			rc.LastStanding = false
		}

		return &royaleRules{
			phases: s.Phases,
			m:      royale.New(rc),
		}, nil

	default:
		return nil, fmt.Errorf("unknown game type %q", c.GameType)
	}
}

type standardRules struct {
	duration time.Duration
}

func (standardRules) Setup(p *domain.GamePlayer) {
	p.Lives, p.Eliminated, p.HealCounter = 0, false, 0
}

func (r standardRules) Round(int) RoundSettings {
	return RoundSettings{Duration: r.duration}
}

func (standardRules) BeforeRound(int, []*domain.GamePlayer) []string { return nil }

func (standardRules) Resolve(*domain.GamePlayer, bool) royale.Transition {
	return royale.TransitionNone
}

func (standardRules) Finished([]*domain.GamePlayer, int) bool { return false }

func (standardRules) LateJoinersPlay() bool { return true }

// livesRules takes a life on every miss, without healing nor revival.
type livesRules struct {
	duration time.Duration
	m        *royale.Machine
}

func (r livesRules) Setup(p *domain.GamePlayer) { r.m.Setup(p) }

func (r livesRules) Round(int) RoundSettings {
	return RoundSettings{Duration: r.duration}
}

func (livesRules) BeforeRound(int, []*domain.GamePlayer) []string { return nil }

func (r livesRules) Resolve(p *domain.GamePlayer, correct bool) royale.Transition {
	return r.m.Apply(p, correct)
}

func (r livesRules) Finished(players []*domain.GamePlayer, startedWith int) bool {
	return r.m.Finished(players, startedWith)
}

func (livesRules) LateJoinersPlay() bool { return true }

// royaleRules escalates through the phase table and owns the revival round.
type royaleRules struct {
	phases phase.Table
	m      *royale.Machine
}

func (r *royaleRules) Setup(p *domain.GamePlayer) { r.m.Setup(p) }

func (r *royaleRules) Round(round int) RoundSettings {
	// Coverage is checked by Settings.Validate.
	p, _ := r.phases.Lookup(round)
	return RoundSettings{
		Duration:   p.TimeLimit,
		Difficulty: p.Difficulty,
		Label:      p.Label,
	}
}

func (r *royaleRules) BeforeRound(round int, players []*domain.GamePlayer) []string {
	return r.m.BeforeRound(round, players)
}

func (r *royaleRules) Resolve(p *domain.GamePlayer, correct bool) royale.Transition {
	return r.m.Apply(p, correct)
}

func (r *royaleRules) Finished(players []*domain.GamePlayer, startedWith int) bool {
	return r.m.Finished(players, startedWith)
}

// Late joiners watch as ghosts.
func (*royaleRules) LateJoinersPlay() bool { return false }
