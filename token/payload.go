// Package token inspects compact signed access tokens on the client side.
//
// Nothing here verifies signatures unless a Verifier is used explicitly: the
// client only needs the payload to decide when a token should be treated as
// expired. Malformed input never panics; it degrades to "no payload" so the
// caller falls back to refreshing.
package token

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSkew is subtracted from the exp claim when deriving an expiration.
const DefaultSkew = 60 * time.Second

var (
	segmentDecoder = jwt.NewParser(jwt.WithPaddingAllowed())
	toURLAlphabet  = strings.NewReplacer("+", "-", "/", "_")
)

// DecodePayload returns the claims held in the second segment of raw.
// It reports false for anything that is not at least two dot separated
// segments with a base64url encoded JSON object in the second one.
func DecodePayload(raw string) (jwt.MapClaims, bool) {
	parts := strings.Split(raw, ".")
	if len(parts) < 2 {
		return nil, false
	}

	data, err := segmentDecoder.DecodeSegment(toURLAlphabet.Replace(parts[1]))
	if err != nil {
		return nil, false
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(data, &claims); err != nil || claims == nil {
		return nil, false
	}
	return claims, true
}

// Expiration returns the instant, in epoch milliseconds, from which the token
// should be considered expired: exp*1000 - skew, floored at 0. It reports
// false when the payload cannot be decoded or exp is missing or not a number.
func Expiration(raw string, skew time.Duration) (int64, bool) {
	claims, ok := DecodePayload(raw)
	if !ok {
		return 0, false
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return 0, false
	}

	ms := exp*1000 - float64(skew.Milliseconds())
	switch {
	case ms <= 0:
		return 0, true
	case ms >= math.MaxInt64:
		return math.MaxInt64, true
	}
	return int64(ms), true
}

// ExpirationTime is Expiration as a time.Time.
func ExpirationTime(raw string, skew time.Duration) (time.Time, bool) {
	ms, ok := Expiration(raw, skew)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
