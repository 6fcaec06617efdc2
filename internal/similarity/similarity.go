// Package similarity computes pairwise similarity between lead records.
// All functions are pure: no I/O, no randomness, deterministic for a given
// pair of inputs.
package similarity

import (
	"math"
	"strings"

	"github.com/sells-group/lead-engine/internal/model"
)

// Weights holds the contribution of each matching signal. A signal only
// contributes when both sides carry non-empty data; absent signals are
// omitted from the sum without renormalizing the remaining weights, so a
// sparse pair can never be penalized for fields it lacks.
type Weights struct {
	Name         float64 `yaml:"name" mapstructure:"name"`
	Phone        float64 `yaml:"phone" mapstructure:"phone"`
	Email        float64 `yaml:"email" mapstructure:"email"`
	Address      float64 `yaml:"address" mapstructure:"address"`
	WebsiteBonus float64 `yaml:"website_bonus" mapstructure:"website_bonus"`
}

// DefaultWeights returns the production matching weights.
func DefaultWeights() Weights {
	return Weights{
		Name:         0.4,
		Phone:        30,
		Email:        20,
		Address:      0.1,
		WebsiteBonus: 10,
	}
}

// Engine scores lead pairs using a fixed weight configuration.
type Engine struct {
	weights Weights
}

// NewEngine creates a similarity engine with the given weights.
func NewEngine(w Weights) *Engine {
	return &Engine{weights: w}
}

// Score returns the similarity between two leads in [0, 100].
func (e *Engine) Score(a, b model.MatchFields) float64 {
	var score float64

	if a.BusinessName != "" && b.BusinessName != "" {
		score += StringSimilarity(a.BusinessName, b.BusinessName) * e.weights.Name
	}

	if pa, pb := NormalizePhone(a.Phone), NormalizePhone(b.Phone); pa != "" && pb != "" && pa == pb {
		score += e.weights.Phone
	}

	if a.OwnerEmail != "" && b.OwnerEmail != "" &&
		strings.EqualFold(strings.TrimSpace(a.OwnerEmail), strings.TrimSpace(b.OwnerEmail)) {
		score += e.weights.Email
	}

	if a.Address != "" && b.Address != "" {
		score += StringSimilarity(a.Address, b.Address) * e.weights.Address
	}

	if da, db := NormalizeDomain(a.Website), NormalizeDomain(b.Website); da != "" && db != "" && da == db {
		score += e.weights.WebsiteBonus
	}

	return clamp(score, 0, 100)
}

// StringSimilarity returns a 0-100 similarity between two strings based on
// normalized Levenshtein edit distance. Both strings are lower-cased and
// trimmed first; equal strings score 100, an empty side scores 0.
func StringSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	d := levenshtein(a, b)
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	return math.Round(float64(longer-d) / float64(longer) * 100)
}

// levenshtein computes the classic edit distance with unit costs for
// insertion, deletion, and substitution, using two rolling rows of the
// dynamic-programming table.
func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// NormalizePhone strips every non-digit character from a phone number.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeDomain reduces a website URL to its registrable hostname:
// scheme, www prefix, path, and trailing slash are stripped.
func NormalizeDomain(rawURL string) string {
	d := strings.ToLower(strings.TrimSpace(rawURL))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
