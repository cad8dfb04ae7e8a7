/*
Package authclient keeps a user signed in against a token issuing service
and authorizes API calls with its access tokens.

# Overview

The package is organized around four types:

  - Transport: JSON over HTTP with retries for transient failures and 5xx
  - Session: owns the access/refresh token pair and its persistence
  - Refresher: coalesces concurrent refreshes into a single request
  - Client: runs API calls with a valid token, ending the session on 401

The server is expected to expose three endpoints:

	POST /login    {"username","password"} -> {"accessToken","refreshToken"}
	POST /refresh  {"token"}               -> {"accessToken","refreshToken"?}
	POST /logout   {"token"}               -> 204

# Usage

	transport := authclient.NewTransport("https://api.example.com")
	session, err := authclient.NewSession(ctx, transport, store)
	if err != nil {
		return err
	}

	if err := session.Login(ctx, "alice", "secret"); err != nil {
		return err
	}

	client := authclient.NewClient(session, transport)

	var me Profile
	err = client.Get(ctx, "/me", &me)

Arbitrary calls go through Call, which hands op a token that is not about
to expire:

	user, err := authclient.Call(ctx, client, func(ctx context.Context, token string) (*User, error) {
		return api.FetchUser(ctx, token)
	})

# Token refresh

An access token counts as expired once the current time reaches its "exp"
claim minus the session's skew (DefaultExpirySkew). Tokens without a
readable "exp" always count as expired. The claims are never verified on
this side, the server stays the authority.

When several goroutines need a token at the same moment, exactly one
refresh request is sent and every waiter gets its outcome. A caller whose
context ends stops waiting, but the refresh keeps going for the rest.

A failed refresh ends the session: the tokens are cleared from memory and
from the TokenStore, and Status reports SessionExpiredMessage.

# Errors

Errors can be inspected with errors.Is and errors.As:

  - ErrUnauthorized: the server answered 401, or a Client call ended the session
  - ErrMissingRefreshToken: a refresh was needed but no refresh token is held
  - *NetworkError: the server could not be reached after all retries
  - *StatusError: any other non-2xx status; Temporary reports 5xx
  - *DecodingError: a 2xx body did not match the expected shape

IsTemporary tells the two kinds apart: retrying later may help, or the user
has to sign in again.
*/
package authclient
