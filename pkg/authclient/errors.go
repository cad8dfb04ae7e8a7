package authclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned when the server answers 401, or when an
	// authenticated call had to end the session.
	ErrUnauthorized = errors.New("authclient: unauthorized")

	// ErrMissingRefreshToken is returned when the access token has expired
	// and there is no refresh token to exchange for a new one.
	ErrMissingRefreshToken = errors.New("authclient: missing refresh token")
)

// SessionExpiredMessage is the status message a session carries after an
// unrecoverable refresh failure.
const SessionExpiredMessage = "session expired, please log in again"

// NetworkError is a failure below HTTP: the connection could not be made,
// was lost, or an attempt timed out.
type NetworkError struct {
	// Op is the request that failed, e.g. "POST /refresh"
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("authclient: network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response other than 401. The error envelope
// fields are filled when the body was {"error","error_description"}.
type StatusError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("authclient: server error with code %d", e.StatusCode)
	if e.Code != "" {
		msg += ": " + e.Code
		if e.Description != "" {
			msg += ": " + e.Description
		}
	}
	return msg
}

// Temporary reports whether the server asked for a retry, i.e. 5xx.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError && e.StatusCode <= 599
}

// DecodingError means a 2xx body could not be read into the expected type.
type DecodingError struct {
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("authclient: decoding failed: %v", e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// IsTemporary reports whether retrying the same request later might
// succeed. Authentication failures and malformed requests are never
// temporary.
func IsTemporary(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	return false
}
