package jwtx

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// segmentParser is only used for its base64url segment decoding. Nothing on
// the client side verifies signatures, the server remains the authority.
var segmentParser = jwt.NewParser()

// ExpiresAt reads the "exp" claim out of a bearer token without verifying
// its signature. It returns ErrMalformed when the token does not have a
// decodable JSON payload and ErrMissingExpiry when "exp" is absent or not a
// number.
func ExpiresAt(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return time.Time{}, ErrMalformed
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return time.Time{}, ErrMalformed
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, ErrMalformed
	}

	// GetExpirationTime returns an error for anything that isn't numeric
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, ErrMissingExpiry
	}

	return exp.Time, nil
}

// IsExpired reports whether the token should be considered expired right
// now. skew moves the effective expiry earlier so callers can refresh before
// the server starts rejecting the token.
//
// Anything that can't be parsed is treated as expired, this is a hint for
// when to refresh and never a reason to keep using a broken token.
func IsExpired(token string, skew time.Duration) bool {
	return IsExpiredAt(token, skew, time.Now())
}

// IsExpiredAt is IsExpired evaluated at a fixed instant. Comparison happens
// at whole-second resolution because that's what "exp" carries.
func IsExpiredAt(token string, skew time.Duration, now time.Time) bool {
	exp, err := ExpiresAt(token)
	if err != nil {
		return true
	}

	deadline := exp.Unix() - int64(skew/time.Second)
	return now.Unix() >= deadline
}
