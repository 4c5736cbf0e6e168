package catalog

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/victornm/blindquiz/internal/domain"
)

// Query selects candidates for a round. Zero values mean no constraint.
type Query struct {
	// Tags keeps candidates carrying at least one of them.
	Tags       []string
	Difficulty domain.Difficulty
	Exclude    []string
	Limit      int
}

// Reader is the read-only view of the catalog store.
type Reader interface {
	// Candidates returns up to q.Limit random candidates matching q.
	Candidates(ctx context.Context, q Query) ([]domain.Candidate, error)
	// All returns the whole catalog, used for suggestions.
	All(ctx context.Context) ([]domain.Candidate, error)
}

// Memory is a Reader over a fixed slice of candidates.
type Memory struct {
	candidates []domain.Candidate

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewMemory(candidates []domain.Candidate) *Memory {
	return &Memory{
		candidates: candidates,
		rnd:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithSeed makes the draw order reproducible.
func (m *Memory) WithSeed(seed uint64) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rnd = rand.New(rand.NewPCG(seed, seed))
	return m
}

func (m *Memory) Candidates(_ context.Context, q Query) ([]domain.Candidate, error) {
	var out []domain.Candidate
	for _, c := range m.candidates {
		if q.matches(c) {
			out = append(out, c)
		}
	}

	m.mu.Lock()
	m.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	m.mu.Unlock()

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	return out, nil
}

func (m *Memory) All(context.Context) ([]domain.Candidate, error) {
	return m.candidates, nil
}

func (q Query) matches(c domain.Candidate) bool {
	if q.Difficulty != "" && c.Difficulty != q.Difficulty {
		return false
	}
	if slices.Contains(q.Exclude, c.ID) {
		return false
	}
	if len(q.Tags) == 0 {
		return true
	}

	return slices.ContainsFunc(c.Tags, func(t string) bool {
		return slices.Contains(q.Tags, t)
	})
}

type fileEntry struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Franchise  string   `yaml:"franchise"`
	AltNames   []string `yaml:"alt_names"`
	Tags       []string `yaml:"tags"`
	Difficulty string   `yaml:"difficulty"`
	MediaURL   string   `yaml:"media_url"`
}

// LoadFile reads a YAML catalog of the form `candidates: [...]`.
func LoadFile(path string) (*Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var f struct {
		Candidates []fileEntry `yaml:"candidates"`
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}

	cs := make([]domain.Candidate, 0, len(f.Candidates))
	for i, e := range f.Candidates {
		if e.ID == "" || e.Name == "" {
			return nil, fmt.Errorf("catalog: entry %d: id and name are required", i)
		}

		cs = append(cs, domain.Candidate{
			ID:         e.ID,
			Name:       e.Name,
			Franchise:  e.Franchise,
			AltNames:   e.AltNames,
			Tags:       e.Tags,
			Difficulty: domain.Difficulty(e.Difficulty),
			MediaURL:   e.MediaURL,
		})
	}

	return NewMemory(cs), nil
}
