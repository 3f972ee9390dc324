package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

const (
	tokenChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	tokenRandLen = 6
)

var portDigitsRegex = regexp.MustCompile(`\d+`)

// TokenGenerator produces access link tokens. Two strategies exist: standard
// tokens append the COM port to a random prefix; short tokens additionally
// embed the issue time as an HHMM minute-stamp in the configured zone, so an
// operator can tell from the token alone roughly when and for which port it
// was issued.
type TokenGenerator struct {
	zone *time.Location
	now  func() time.Time
}

// NewTokenGenerator creates a token generator stamping short tokens in zone.
func NewTokenGenerator(zone *time.Location) *TokenGenerator {
	return &TokenGenerator{zone: zone, now: time.Now}
}

// Standard returns a token of the form <rand6><comPort>.
func (g *TokenGenerator) Standard(comPort string) (string, error) {
	prefix, err := randomString(tokenRandLen)
	if err != nil {
		return "", err
	}
	return prefix + comPort, nil
}

// Short returns a token of the form <rand6><HHMM>M<port digits>.
func (g *TokenGenerator) Short(comPort string) (string, error) {
	prefix, err := randomString(tokenRandLen)
	if err != nil {
		return "", err
	}
	stamp := g.now().In(g.zone).Format("1504")
	digits := strings.Join(portDigitsRegex.FindAllString(comPort, -1), "")
	return fmt.Sprintf("%s%sM%s", prefix, stamp, digits), nil
}

func randomString(n int) (string, error) {
	chars := []byte(tokenChars)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		out[i] = chars[idx.Int64()]
	}
	return string(out), nil
}
