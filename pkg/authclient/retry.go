package authclient

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how often the transport retries transient failures
// and how long it waits in between. Waits grow geometrically and carry no
// jitter.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one
	MaxRetries int

	// InitialBackoff is the wait before the first retry
	InitialBackoff time.Duration

	// Multiplier scales the wait after every retry
	Multiplier float64
}

// DefaultRetryPolicy retries three times, waiting 300ms, 600ms and 1.2s.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:     3,
	InitialBackoff: 300 * time.Millisecond,
	Multiplier:     2,
}

// NoRetry makes a single attempt.
var NoRetry = RetryPolicy{}

// NewBackOff returns a fresh backoff sequence for one logical request.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	if p.MaxRetries <= 0 {
		return &backoff.StopBackOff{}
	}

	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.Multiplier = multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0 // bounded by MaxRetries instead
	b.Reset()

	return backoff.WithMaxRetries(b, uint64(p.MaxRetries))
}
