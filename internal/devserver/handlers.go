package devserver

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/aussiebroadwan/jwtclient/pkg/httpx"
	"github.com/aussiebroadwan/jwtclient/pkg/slogx"
)

// Widgets are the dashboard panels GET /dashboard/{widget} knows about.
var Widgets = []string{"profile", "messages", "notifications", "activity"}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

// MeResponse is the body of GET /me.
type MeResponse struct {
	Subject   string    `json:"sub"`
	Username  string    `json:"username"`
	SessionID string    `json:"sid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// WidgetResponse is the body of GET /dashboard/{widget}.
type WidgetResponse struct {
	Widget   string    `json:"widget"`
	Username string    `json:"username"`
	Items    []string  `json:"items"`
	Updated  time.Time `json:"updated"`
}

// HealthResponse is the body of GET /livez.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

type loginHandler struct {
	tokens *TokenService
}

// ServeHTTP handles POST /login.
func (h *loginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	pair, err := h.tokens.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "invalid username or password")
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pair)
}

type refreshHandler struct {
	tokens *TokenService
}

// ServeHTTP handles POST /refresh.
func (h *refreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	pair, err := h.tokens.Refresh(r.Context(), req.Token)
	switch {
	case errors.Is(err, ErrInvalidRefresh):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "refresh token is invalid or expired")
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("refresh failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pair)
}

// logoutHandler answers 204 for unknown tokens too, so it can't be used to
// probe which refresh tokens are live.
type logoutHandler struct {
	tokens *TokenService
}

// ServeHTTP handles POST /logout.
func (h *logoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	h.tokens.Revoke(r.Context(), req.Token)

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "")
		return
	}

	resp := MeResponse{
		Subject:   claims.Subject,
		Username:  claims.Username,
		SessionID: claims.SID,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func widgetHandler(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.ClaimsFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "")
			return
		}

		widget := r.PathValue("widget")
		if !slices.Contains(Widgets, widget) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "unknown widget "+widget)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, WidgetResponse{
			Widget:   widget,
			Username: claims.Username,
			Items:    []string{widget + " for " + claims.Username},
			Updated:  now().UTC(),
		})
	}
}

func livezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
		})
	}
}
