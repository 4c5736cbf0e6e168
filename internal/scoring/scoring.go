package scoring

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/victornm/blindquiz/internal/domain"
)

// Table holds the base points awarded for a correct answer per response mode.
type Table map[domain.ResponseMode]int

func DefaultTable() Table {
	return Table{
		domain.ResponseModeTyping: 5,
		domain.ResponseModeMix:    5,
		domain.ResponseModeQCM:    2,
		domain.ResponseModeBinary: 1,
	}
}

func (t Table) Validate() error {
	for m, p := range t {
		if p < 0 {
			return fmt.Errorf("negative points for response mode %q: %d", m, p)
		}
	}

	return nil
}

type Config struct {
	Table Table
}

// Engine computes point deltas and ranks. It holds no per-player state.
type Engine struct {
	table Table
}

func NewEngine(c Config) *Engine {
	t := c.Table
	if len(t) == 0 {
		t = DefaultTable()
	}

	return &Engine{table: t}
}

type Result struct {
	Points int
	Streak int
}

// Score returns the points earned by an answer and the player's new streak.
// The streak never multiplies points.
func (e *Engine) Score(mode domain.ResponseMode, correct bool, streak int) Result {
	if !correct {
		return Result{Points: 0, Streak: 0}
	}

	return Result{
		Points: e.table[mode],
		Streak: streak + 1,
	}
}

// ModeFor picks the response mode of a single guess.
func ModeFor(rt domain.ResponseType, choice bool, choices int) domain.ResponseMode {
	switch {
	case choice && choices == 2:
		return domain.ResponseModeBinary
	case choice:
		return domain.ResponseModeQCM
	case rt == domain.ResponseTypeMix:
		return domain.ResponseModeMix
	default:
		return domain.ResponseModeTyping
	}
}

// MaxPoints is the best a single round can pay in a room with the given response type.
func (e *Engine) MaxPoints(rt domain.ResponseType, choices int) int {
	switch rt {
	case domain.ResponseTypeQCM:
		return e.table[ModeFor(rt, true, choices)]
	case domain.ResponseTypeMix:
		return max(e.table[domain.ResponseModeMix], e.table[ModeFor(rt, true, choices)])
	default:
		return e.table[domain.ResponseModeTyping]
	}
}

type breakpoint struct {
	min  decimal.Decimal
	rank domain.Rank
}

// Ordered highest first, the first satisfied breakpoint wins.
var breakpoints = []breakpoint{
	{decimal.NewFromInt(1), domain.RankSPlus},
	{decimal.RequireFromString("0.9"), domain.RankS},
	{decimal.RequireFromString("0.8"), domain.RankA},
	{decimal.RequireFromString("0.6"), domain.RankB},
	{decimal.RequireFromString("0.4"), domain.RankC},
}

// Rank maps score/maxScore to a letter rank.
func Rank(score, maxScore int) domain.Rank {
	if maxScore <= 0 {
		return domain.RankUndefined
	}

	return RankRatio(decimal.NewFromInt(int64(score)).Div(decimal.NewFromInt(int64(maxScore))))
}

func RankRatio(r decimal.Decimal) domain.Rank {
	for _, b := range breakpoints {
		if r.GreaterThanOrEqual(b.min) {
			return b.rank
		}
	}

	return domain.RankD
}

// Standings orders players by score, then streak, keeping join order for ties.
func Standings(players []domain.GamePlayer, maxScore int) []domain.Standing {
	ps := make([]domain.GamePlayer, len(players))
	copy(ps, players)

	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Score != ps[j].Score {
			return ps[i].Score > ps[j].Score
		}
		return ps[i].Streak > ps[j].Streak
	})

	out := make([]domain.Standing, 0, len(ps))
	for i, p := range ps {
		out = append(out, domain.Standing{
			PlayerID:   p.ID,
			Name:       p.Name,
			Score:      p.Score,
			Streak:     p.Streak,
			Eliminated: p.Eliminated,
			Position:   i + 1,
			Rank:       Rank(p.Score, maxScore),
		})
	}

	return out
}
