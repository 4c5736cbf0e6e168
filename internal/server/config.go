package server

import (
	"fmt"
	"time"

	"github.com/victornm/blindquiz/internal/domain"
	"github.com/victornm/blindquiz/internal/game"
	"github.com/victornm/blindquiz/internal/matcher"
	"github.com/victornm/blindquiz/internal/phase"
	"github.com/victornm/blindquiz/internal/royale"
	"github.com/victornm/blindquiz/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
		// PublicURL is the address players open to join a room.
		PublicURL string
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Leaderboard struct {
			Addrs           []string
			Pass            string
			Prefix          string
			PublishInterval time.Duration
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	// Postgres.Catalog wins over Catalog.File when its address is set.
	Postgres struct {
		Catalog struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Catalog struct {
		File string
	}

	Log telemetry.LogConfig

	Game GameConfig
}

type GameConfig struct {
	Capacity       int
	Intro          time.Duration
	Reveal         time.Duration
	Tick           time.Duration
	Choices        int
	CatalogRetries int
	CatalogBackoff time.Duration

	Scoring struct {
		Typing int
		Mix    int
		QCM    int
		Binary int
	}

	Matcher matcher.Config

	Royale struct {
		MaxLives     int
		HealStreak   int
		RevivalRound int
		LastStanding bool
		// Revival is one of second-chance, none.
		Revival string
	}

	// Phases replaces the battle royale phase table when set.
	Phases []PhaseConfig
}

type PhaseConfig struct {
	Min        int
	Max        int
	TimeLimit  time.Duration
	Difficulty string
	Label      string
}

// DefaultConfig is the base every config file is merged onto.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Redis.Leaderboard.Prefix = "quiz"
	c.Redis.Leaderboard.PublishInterval = 200 * time.Millisecond
	c.Redis.Pubsub.Prefix = "quiz"
	c.Log = telemetry.LogConfig{Level: "info", Format: "tint"}

	d := game.DefaultSettings()
	g := &c.Game
	g.Capacity = 50
	g.Intro = d.Timers.Intro
	g.Reveal = d.Timers.Reveal
	g.Tick = d.Timers.Tick
	g.Choices = d.Choices
	g.CatalogRetries = d.CatalogRetries
	g.CatalogBackoff = d.CatalogBackoff
	g.Scoring.Typing = d.Scoring[domain.ResponseModeTyping]
	g.Scoring.Mix = d.Scoring[domain.ResponseModeMix]
	g.Scoring.QCM = d.Scoring[domain.ResponseModeQCM]
	g.Scoring.Binary = d.Scoring[domain.ResponseModeBinary]
	g.Matcher = d.Matcher
	g.Royale.MaxLives = d.Royale.MaxLives
	g.Royale.HealStreak = d.Royale.HealStreak
	g.Royale.RevivalRound = d.Royale.RevivalRound
	g.Royale.LastStanding = d.Royale.LastStanding
	g.Royale.Revival = "second-chance"

	return c
}

// Settings turns the configured values into room settings.
func (c GameConfig) Settings() (game.Settings, error) {
	revival, err := royale.PolicyByName(c.Royale.Revival)
	if err != nil {
		return game.Settings{}, err
	}

	s := game.DefaultSettings()
	s.Timers = game.Timers{Intro: c.Intro, Reveal: c.Reveal, Tick: c.Tick}
	s.Choices = c.Choices
	s.CatalogRetries = c.CatalogRetries
	s.CatalogBackoff = c.CatalogBackoff
	s.Scoring = map[domain.ResponseMode]int{
		domain.ResponseModeTyping: c.Scoring.Typing,
		domain.ResponseModeMix:    c.Scoring.Mix,
		domain.ResponseModeQCM:    c.Scoring.QCM,
		domain.ResponseModeBinary: c.Scoring.Binary,
	}
	s.Matcher = c.Matcher
	s.Royale = royale.Config{
		MaxLives:     c.Royale.MaxLives,
		HealStreak:   c.Royale.HealStreak,
		RevivalRound: c.Royale.RevivalRound,
		LastStanding: c.Royale.LastStanding,
		Revival:      revival,
	}
	if len(c.Phases) > 0 {
		s.Phases = make(phase.Table, 0, len(c.Phases))
		for _, p := range c.Phases {
			s.Phases = append(s.Phases, phase.Phase{
				Min:        p.Min,
				Max:        p.Max,
				TimeLimit:  p.TimeLimit,
				Difficulty: domain.Difficulty(p.Difficulty),
				Label:      p.Label,
			})
		}
	}

	if s.Timers.Tick <= 0 {
		return game.Settings{}, fmt.Errorf("tick must be positive: %s", s.Timers.Tick)
	}
	if err := s.Matcher.Validate(); err != nil {
		return game.Settings{}, fmt.Errorf("matcher: %w", err)
	}
	if err := s.Royale.Validate(); err != nil {
		return game.Settings{}, fmt.Errorf("royale: %w", err)
	}
	// Round coverage depends on the room, it is checked when one is created.
	if err := s.Phases.Validate(0); err != nil {
		return game.Settings{}, fmt.Errorf("phases: %w", err)
	}

	return s, nil
}
