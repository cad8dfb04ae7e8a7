package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Client runs API calls with a valid access token from its Session. An
// authorization failure ends the session rather than refreshing again.
type Client struct {
	session   *Session
	transport *Transport
}

func NewClient(session *Session, transport *Transport) *Client {
	return &Client{session: session, transport: transport}
}

// Session returns the session the client draws tokens from.
func (c *Client) Session() *Session {
	return c.session
}

// Call obtains a valid access token and passes it to op.
//
// If no token can be obtained the session is logged out and the returned
// error wraps both ErrUnauthorized and the cause. If op itself fails with
// ErrUnauthorized, for instance because the server revoked the token, the
// session is logged out too and no further refresh is attempted. Other
// errors from op are returned unchanged.
func Call[T any](ctx context.Context, c *Client, op func(ctx context.Context, token string) (T, error)) (T, error) {
	var zero T

	token, err := c.session.ValidAccessToken(ctx)
	if err != nil {
		// The caller giving up says nothing about the session
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return zero, err
		}
		c.session.expire(ctx)
		if errors.Is(err, ErrUnauthorized) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	res, err := op(ctx, token)
	if errors.Is(err, ErrUnauthorized) {
		c.session.expire(ctx)
		return zero, err
	}

	return res, err
}

// Do sends req with the session's bearer token and decodes the response
// into out, following the rules of Call.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	_, err := Call(ctx, c, func(ctx context.Context, token string) (struct{}, error) {
		authed := req
		authed.Header = req.Header.Clone()
		if authed.Header == nil {
			authed.Header = make(http.Header)
		}
		authed.Header.Set("Authorization", "Bearer "+token)

		return struct{}{}, c.transport.Do(ctx, authed, out)
	})
	return err
}

// Get is Do for a GET without a body.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}
