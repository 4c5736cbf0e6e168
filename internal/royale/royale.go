package royale

import (
	"fmt"

	"github.com/victornm/blindquiz/internal/domain"
)

type Transition string

const (
	TransitionNone       Transition = "none"
	TransitionHealed     Transition = "healed"
	TransitionLostLife   Transition = "lost_life"
	TransitionEliminated Transition = "eliminated"
)

const (
	defaultMaxLives     = 3
	defaultHealStreak   = 5
	defaultRevivalRound = 15
)

type Config struct {
	MaxLives int
	// HealStreak is the number of consecutive correct answers that restores a life, 0 disables healing.
	HealStreak int
	// RevivalRound is the round where Revival runs, 0 disables it.
	RevivalRound int
	// LastStanding ends the game when a single player is left alive.
	LastStanding bool
	Revival      RevivalPolicy
}

func DefaultConfig() Config {
	return Config{
		MaxLives:     defaultMaxLives,
		HealStreak:   defaultHealStreak,
		RevivalRound: defaultRevivalRound,
		LastStanding: true,
		Revival:      SecondChance(),
	}
}

func (c Config) Validate() error {
	if c.MaxLives < 1 {
		return fmt.Errorf("max lives must be at least 1: %d", c.MaxLives)
	}
	if c.HealStreak < 0 {
		return fmt.Errorf("heal streak must not be negative: %d", c.HealStreak)
	}
	if c.RevivalRound < 0 {
		return fmt.Errorf("revival round must not be negative: %d", c.RevivalRound)
	}

	return nil
}

// Machine drives lives for one room. It is not safe for concurrent use,
// the owning room serializes every call.
type Machine struct {
	c       Config
	revived bool
}

func New(c Config) *Machine {
	if c.Revival == nil {
		c.Revival = NoRevival()
	}

	return &Machine{c: c}
}

func (m *Machine) Config() Config {
	return m.c
}

// Setup gives p a full set of lives.
func (m *Machine) Setup(p *domain.GamePlayer) {
	p.Lives = m.c.MaxLives
	p.Eliminated = false
	p.HealCounter = 0
}

// Apply moves p according to the outcome of its guess. Eliminated players never move.
func (m *Machine) Apply(p *domain.GamePlayer, correct bool) Transition {
	if p.Eliminated {
		return TransitionNone
	}

	if correct {
		if m.c.HealStreak == 0 {
			return TransitionNone
		}

		p.HealCounter++
		if p.HealCounter < m.c.HealStreak {
			return TransitionNone
		}

		p.HealCounter = 0
		if p.Lives >= m.c.MaxLives {
			return TransitionNone
		}

		p.Lives++
		return TransitionHealed
	}

	p.HealCounter = 0
	p.Lives--
	if p.Lives > 0 {
		return TransitionLostLife
	}

	p.Lives = 0
	p.Eliminated = true
	return TransitionEliminated
}

// BeforeRound runs the revival policy when round is the revival round, once per machine.
func (m *Machine) BeforeRound(round int, players []*domain.GamePlayer) []string {
	if m.revived || m.c.RevivalRound == 0 || round != m.c.RevivalRound {
		return nil
	}
	m.revived = true

	ids := m.c.Revival.Revive(round, players)
	for _, p := range players {
		if p.Lives > m.c.MaxLives {
			p.Lives = m.c.MaxLives
		}
	}

	return ids
}

// Finished reports whether nobody can keep playing.
func (m *Machine) Finished(players []*domain.GamePlayer, startedWith int) bool {
	alive := Alive(players)
	if alive == 0 {
		return true
	}

	return m.c.LastStanding && startedWith > 1 && alive <= 1
}

func Alive(players []*domain.GamePlayer) int {
	n := 0
	for _, p := range players {
		if !p.Eliminated {
			n++
		}
	}

	return n
}
