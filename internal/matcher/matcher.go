package matcher

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/victornm/blindquiz/internal/domain"
)

const (
	defaultThresholdRatio = 0.60
	defaultMinLength      = 4
	defaultMaxSuggestions = 5

	// Queries shorter than this never match anything.
	minQueryLength = 2
)

type Config struct {
	// ThresholdRatio is the share of the name length allowed as edit distance.
	ThresholdRatio float64
	// Names shorter than MinLength are matched without any fuzzy slack.
	MinLength      int
	MaxSuggestions int
}

func DefaultConfig() Config {
	return Config{
		ThresholdRatio: defaultThresholdRatio,
		MinLength:      defaultMinLength,
		MaxSuggestions: defaultMaxSuggestions,
	}
}

func (c Config) Validate() error {
	if c.ThresholdRatio <= 0 || c.ThresholdRatio > 1 {
		return fmt.Errorf("threshold ratio must be in (0, 1]: %v", c.ThresholdRatio)
	}
	if c.MinLength < 0 {
		return fmt.Errorf("min length must not be negative: %d", c.MinLength)
	}
	if c.MaxSuggestions <= 0 {
		return fmt.Errorf("max suggestions must be positive: %d", c.MaxSuggestions)
	}

	return nil
}

// Matcher compares free-text guesses with catalog candidates. It is safe for concurrent use.
type Matcher struct {
	ratio          decimal.Decimal
	minLength      int
	maxSuggestions int
}

func New(c Config) *Matcher {
	return &Matcher{
		ratio:          decimal.NewFromFloat(c.ThresholdRatio),
		minLength:      c.MinLength,
		maxSuggestions: c.MaxSuggestions,
	}
}

// Accept reports whether guess designates the candidate.
func (m *Matcher) Accept(guess string, p domain.Precision, c domain.Candidate) bool {
	q := Normalize(guess)
	if utf8.RuneCountInString(q) < minQueryLength {
		return false
	}

	return m.match(q, p, c)
}

// Suggest returns the labels of the candidates matching query, deduplicated,
// in catalog order and capped at the configured count.
func (m *Matcher) Suggest(query string, p domain.Precision, candidates []domain.Candidate) []string {
	q := Normalize(query)
	if utf8.RuneCountInString(q) < minQueryLength {
		return nil
	}

	var (
		out  []string
		seen = make(map[string]struct{})
	)
	for _, c := range candidates {
		label := c.Label(p)
		if _, ok := seen[label]; ok {
			continue
		}

		if !m.match(q, p, c) {
			continue
		}

		seen[label] = struct{}{}
		out = append(out, label)
		if len(out) == m.maxSuggestions {
			break
		}
	}

	return out
}

func (m *Matcher) match(q string, p domain.Precision, c domain.Candidate) bool {
	if contains(q, c.Name) || contains(q, c.Franchise) {
		return true
	}
	for _, alt := range c.AltNames {
		if contains(q, alt) {
			return true
		}
	}

	if m.within(q, Normalize(c.Name)) {
		return true
	}

	return p == domain.PrecisionFranchise && c.Franchise != "" && m.within(q, Normalize(c.Franchise))
}

// within applies the edit distance budget of name to q.
func (m *Matcher) within(q, name string) bool {
	ql, nl := utf8.RuneCountInString(q), utf8.RuneCountInString(name)

	allowed := 0
	if nl >= m.minLength {
		allowed = int(decimal.NewFromInt(int64(nl)).Mul(m.ratio).Floor().IntPart())
	}

	diff := ql - nl
	if diff < 0 {
		diff = -diff
	}
	if diff > allowed {
		return false
	}

	return Distance(q, name) <= allowed
}

func contains(q, s string) bool {
	if s == "" {
		return false
	}

	return strings.Contains(Normalize(s), q)
}

// Distance is the Levenshtein distance between a and b, counted in runes.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// Normalize lowercases s, strips accents and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
