package phase

import (
	"fmt"
	"time"

	"github.com/victornm/blindquiz/internal/domain"
)

// Phase applies to the rounds in [Min, Max].
type Phase struct {
	Min        int
	Max        int
	TimeLimit  time.Duration
	Difficulty domain.Difficulty
	Label      string
}

func (p Phase) Contains(round int) bool {
	return round >= p.Min && round <= p.Max
}

// Table is an ordered list of phases, the first one containing a round wins.
type Table []Phase

// DefaultBattleRoyale is the escalation used by battle royale rooms.
func DefaultBattleRoyale() Table {
	return Table{
		{Min: 1, Max: 5, TimeLimit: 20 * time.Second, Difficulty: domain.DifficultyEasy, Label: "warm-up"},
		{Min: 6, Max: 10, TimeLimit: 15 * time.Second, Difficulty: domain.DifficultyEasy, Label: "heating up"},
		{Min: 11, Max: 14, TimeLimit: 15 * time.Second, Difficulty: domain.DifficultyMedium, Label: "pressure"},
		{Min: 15, Max: 15, TimeLimit: 20 * time.Second, Difficulty: domain.DifficultyMedium, Label: "goulag"},
		{Min: 16, Max: 20, TimeLimit: 12 * time.Second, Difficulty: domain.DifficultyMedium, Label: "survivors"},
		{Min: 21, Max: 25, TimeLimit: 10 * time.Second, Difficulty: domain.DifficultyHard, Label: "endgame"},
		{Min: 26, Max: 29, TimeLimit: 8 * time.Second, Difficulty: domain.DifficultyHard, Label: "final stretch"},
		{Min: 30, Max: 30, TimeLimit: 5 * time.Second, Difficulty: domain.DifficultyHard, Label: "sudden death"},
	}
}

// Lookup returns the phase of round. Tables are validated against the round
// count when a room is created, so a miss here means the caller skipped Validate.
func (t Table) Lookup(round int) (Phase, bool) {
	for _, p := range t {
		if p.Contains(round) {
			return p, true
		}
	}

	return Phase{}, false
}

// Validate checks the table is well formed and covers every round in 1..rounds.
func (t Table) Validate(rounds int) error {
	if len(t) == 0 {
		return fmt.Errorf("phase table is empty")
	}

	for i, p := range t {
		if p.Min < 1 || p.Max < p.Min {
			return fmt.Errorf("phase %d: invalid range [%d, %d]", i, p.Min, p.Max)
		}
		if p.TimeLimit <= 0 {
			return fmt.Errorf("phase %d: time limit must be positive: %s", i, p.TimeLimit)
		}
		switch p.Difficulty {
		case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard:
		default:
			return fmt.Errorf("phase %d: unknown difficulty %q", i, p.Difficulty)
		}
	}

	for r := 1; r <= rounds; r++ {
		if _, ok := t.Lookup(r); !ok {
			return fmt.Errorf("round %d is not covered by the phase table", r)
		}
	}

	return nil
}
