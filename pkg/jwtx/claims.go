package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is how long the development server's access tokens
// live. Short on purpose so refreshes actually happen while poking at it.
const DefaultAccessTokenTTL = 15 * time.Minute

var (
	ErrMalformed     = errors.New("jwtx: malformed token")
	ErrMissingExpiry = errors.New("jwtx: missing exp claim")
	ErrInvalidSig    = errors.New("jwtx: invalid signature")
	ErrExpired       = errors.New("jwtx: token expired")
	ErrIssuer        = errors.New("jwtx: issuer mismatch")
)

// Claims is what the development server puts in an access token.
type Claims struct {
	jwt.RegisteredClaims

	// SID is shared by every access token minted from one login.
	SID      string `json:"sid,omitempty"`
	Username string `json:"username,omitempty"`
}

// NewAccessClaims returns claims valid from now for ttl.
func NewAccessClaims(subject, sid, username, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        newJTI(),
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SID:      sid,
		Username: username,
	}
}

func newJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
