package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultCodeMin      = 10000
	defaultCodeMax      = 99999
	defaultCodeAttempts = 10000
)

// RandomCodes draws fixed-width numeric codes from [Min, Max] using crypto/rand,
// rejecting draws already present in the existing set.
type RandomCodes struct {
	Min         int
	Max         int
	MaxAttempts int
}

// NewRandomCodes returns the five-digit generator used in production.
func NewRandomCodes() *RandomCodes {
	return &RandomCodes{Min: defaultCodeMin, Max: defaultCodeMax, MaxAttempts: defaultCodeAttempts}
}

// Generate returns a code not contained in existing. Empty strings in existing
// are ignored since placeholder records carry no code.
func (g *RandomCodes) Generate(existing map[string]struct{}) (string, error) {
	if g.Max < g.Min {
		return "", fmt.Errorf("invalid code range [%d, %d]", g.Min, g.Max)
	}
	span := big.NewInt(int64(g.Max-g.Min) + 1)
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = defaultCodeAttempts
	}
	for i := 0; i < attempts; i++ {
		n, err := rand.Int(rand.Reader, span)
		if err != nil {
			return "", fmt.Errorf("draw access code: %w", err)
		}
		code := strconv.Itoa(g.Min + int(n.Int64()))
		if _, taken := existing[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// existingCodes collects the non-empty access codes of all sessions.
func existingCodes(sessions map[string]Participant) map[string]struct{} {
	codes := make(map[string]struct{}, len(sessions))
	for _, p := range sessions {
		if p.AccessCode == "" {
			continue
		}
		codes[p.AccessCode] = struct{}{}
	}
	return codes
}

// HashSecret produces the salted bcrypt hash stored in configuration in
// place of the registration password.
func HashSecret(secret string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

func secretMatches(hash []byte, secret string) bool {
	if len(hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(secret)) == nil
}
