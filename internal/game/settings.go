package game

import (
	"fmt"
	"time"

	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/matcher"
	"github.com/victornm/blindquiz/internal/phase"
	"github.com/victornm/blindquiz/internal/royale"
	"github.com/victornm/blindquiz/internal/scoring"
)

const (
	defaultIntro          = 3 * time.Second
	defaultReveal         = 10 * time.Second
	defaultTick           = 100 * time.Millisecond
	defaultChoices        = 4
	defaultCatalogRetries = 3
	defaultCatalogBackoff = 200 * time.Millisecond
)

type Timers struct {
	Intro  time.Duration
	Reveal time.Duration
	Tick   time.Duration
}

func DefaultTimers() Timers {
	return Timers{
		Intro:  defaultIntro,
		Reveal: defaultReveal,
		Tick:   defaultTick,
	}
}

// Settings is the tunable part of a room, validated once at creation.
type Settings struct {
	Timers  Timers
	Scoring scoring.Table
	Matcher matcher.Config
	Royale  royale.Config
	Phases  phase.Table
	// Choices is the number of options offered for multiple choice answers.
	Choices        int
	CatalogRetries int
	CatalogBackoff time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Timers:         DefaultTimers(),
		Scoring:        scoring.DefaultTable(),
		Matcher:        matcher.DefaultConfig(),
		Royale:         royale.DefaultConfig(),
		Phases:         phase.DefaultBattleRoyale(),
		Choices:        defaultChoices,
		CatalogRetries: defaultCatalogRetries,
		CatalogBackoff: defaultCatalogBackoff,
	}
}

// Validate checks s can run a game configured with c.
func (s Settings) Validate(c domain.GameConfig) error {
	if s.Timers.Intro < 0 || s.Timers.Reveal < 0 || s.Timers.Tick <= 0 {
		return fmt.Errorf("invalid timers: %+v", s.Timers)
	}
	if err := s.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if err := s.Matcher.Validate(); err != nil {
		return fmt.Errorf("matcher: %w", err)
	}
	if s.Choices < 2 {
		return fmt.Errorf("choices must be at least 2: %d", s.Choices)
	}
	if s.CatalogRetries < 0 {
		return fmt.Errorf("catalog retries must not be negative: %d", s.CatalogRetries)
	}

	switch c.GameType {
	case domain.GameTypeBattleRoyale:
		if err := s.Royale.Validate(); err != nil {
			return fmt.Errorf("battle royale: %w", err)
		}
		if err := s.Phases.Validate(c.Rounds); err != nil {
			return fmt.Errorf("phases: %w", err)
		}
	case domain.GameTypeLives:
		if c.LivesCount < 1 {
			return fmt.Errorf("lives count must be at least 1: %d", c.LivesCount)
		}
	}

	return nil
}
