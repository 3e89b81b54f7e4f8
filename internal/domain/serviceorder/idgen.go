package serviceorder

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
)

const (
	idPrefix        = "SRV"
	seedFragmentLen = 4
	suffixLen       = 3

	// DefaultMaxAttempts bounds the regeneration loop. With 26^3 suffixes per
	// trailer prefix, hitting it means the prefix space is close to exhausted.
	DefaultMaxAttempts = 100
)

var ErrIdentifierExhausted = errors.New("could not generate an unused service order identifier")

// ExistenceChecker reports whether an identifier is already persisted.
type ExistenceChecker interface {
	ServiceOrderExists(ctx context.Context, id string) (bool, error)
}

// IDGenerator builds identifiers like SRV1HGCABC from a trailer serial.
type IDGenerator struct {
	checker     ExistenceChecker
	maxAttempts int
	intn        func(n int) int
}

func NewIDGenerator(checker ExistenceChecker, maxAttempts int) *IDGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &IDGenerator{
		checker:     checker,
		maxAttempts: maxAttempts,
		intn:        rand.IntN,
	}
}

// Generate returns an identifier that was unused at the time of the check.
// The caller still inserts with a uniqueness guard, since another transaction
// may claim the same value before commit.
func (g *IDGenerator) Generate(ctx context.Context, seed string) (string, error) {
	fragment := SeedFragment(seed)
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := idPrefix + fragment + g.randomSuffix()
		exists, err := g.checker.ServiceOrderExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check identifier %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrIdentifierExhausted, g.maxAttempts)
}

// MaxAttempts is the regeneration bound the generator was built with.
func (g *IDGenerator) MaxAttempts() int {
	return g.maxAttempts
}

// SeedFragment takes the first four non-space characters of the seed,
// uppercased and right-padded with X.
func SeedFragment(seed string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, seed)

	runes := []rune(cleaned)
	if len(runes) > seedFragmentLen {
		runes = runes[:seedFragmentLen]
	}
	fragment := string(runes)
	if n := len(runes); n < seedFragmentLen {
		fragment += strings.Repeat("X", seedFragmentLen-n)
	}
	return fragment
}

func (g *IDGenerator) randomSuffix() string {
	var b strings.Builder
	b.Grow(suffixLen)
	for i := 0; i < suffixLen; i++ {
		b.WriteByte(byte('A' + g.intn(26)))
	}
	return b.String()
}
