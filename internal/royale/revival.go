package royale

import (
	"fmt"

	"github.com/victornm/blindquiz/internal/domain"
)

// RevivalPolicy decides what happens at the revival round. It returns the ids of the revived players.
type RevivalPolicy interface {
	Revive(round int, players []*domain.GamePlayer) []string
}

type RevivalFunc func(round int, players []*domain.GamePlayer) []string

func (f RevivalFunc) Revive(round int, players []*domain.GamePlayer) []string {
	return f(round, players)
}

// SecondChance brings every eliminated player back with a single life. Spectators stay out.
func SecondChance() RevivalPolicy {
	return RevivalFunc(func(_ int, players []*domain.GamePlayer) []string {
		var ids []string
		for _, p := range players {
			if !p.Eliminated || p.Spectator {
				continue
			}

			p.Eliminated = false
			p.Lives = 1
			p.HealCounter = 0
			ids = append(ids, p.ID)
		}

		return ids
	})
}

func NoRevival() RevivalPolicy {
	return RevivalFunc(func(int, []*domain.GamePlayer) []string { return nil })
}

// PolicyByName resolves the policy names accepted in configuration.
func PolicyByName(name string) (RevivalPolicy, error) {
	switch name {
	case "", "second-chance":
		return SecondChance(), nil
	case "none":
		return NoRevival(), nil
	default:
		return nil, fmt.Errorf("unknown revival policy %q", name)
	}
}
