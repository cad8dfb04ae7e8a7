package authclient

// TokenPair holds the current credentials. An empty string means the token
// is absent.
type TokenPair struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// IsZero reports whether neither token is present.
func (p TokenPair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /refresh and POST /logout.
type RefreshRequest struct {
	Token string `json:"token"`
}

// TokenResponse is returned by /login and /refresh. /refresh only includes
// a refresh token when the server rotates it.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// NoContent is used as the response type for endpoints that return no
// body. Decoding is skipped entirely.
type NoContent struct{}
