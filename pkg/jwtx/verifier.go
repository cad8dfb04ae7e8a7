package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks a signed access token and returns its claims.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// EdDSAVerifier accepts tokens signed by one Ed25519 key under one kid.
type EdDSAVerifier struct {
	kid    string
	pub    ed25519.PublicKey
	issuer string

	// Leeway is the clock skew tolerated on exp and nbf.
	Leeway time.Duration

	// Now is the verifier's clock.
	Now func() time.Time
}

// NewVerifierEdDSA verifies tokens produced by signer. An empty issuer
// skips the iss check.
func NewVerifierEdDSA(signer Signer, issuer string) *EdDSAVerifier {
	return &EdDSAVerifier{
		kid:    signer.KID(),
		pub:    signer.PublicKey(),
		issuer: issuer,
		Now:    time.Now,
	}
}

// Verify checks signature, kid, exp, nbf and iss. Failures map onto
// ErrInvalidSig, ErrExpired, ErrMissingExpiry, ErrIssuer or ErrMalformed.
func (v *EdDSAVerifier) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.Leeway),
		jwt.WithTimeFunc(v.Now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, v.key, opts...)
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return nil, ErrMissingExpiry
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return nil, ErrIssuer
	default:
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}

func (v *EdDSAVerifier) key(t *jwt.Token) (any, error) {
	if kid, _ := t.Header["kid"].(string); kid != v.kid {
		return nil, fmt.Errorf("jwtx: unknown kid %q", kid)
	}
	return v.pub, nil
}
