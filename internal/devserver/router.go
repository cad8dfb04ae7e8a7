package devserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/jwtclient/pkg/httpx"
	"github.com/aussiebroadwan/jwtclient/pkg/jwtx"
	"github.com/aussiebroadwan/jwtclient/pkg/slogx"
)

// Router wires the dev server's handlers together.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	Tokens   *TokenService
	Faults   *Faults
	verifier jwtx.Verifier

	// AuthLimit applies per client IP to /login and /refresh.
	AuthLimit httpx.RateLimitConfig

	version   string
	startTime time.Time
	logger    *slog.Logger
}

func NewRouter(tokens *TokenService, verifier jwtx.Verifier, version string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:       http.NewServeMux(),
		Tokens:    tokens,
		Faults:    NewFaults(),
		verifier:  verifier,
		AuthLimit: httpx.DefaultLoginLimit,
		version:   version,
		startTime: time.Now(),
		logger:    logger,
	}

	// Faults sit inside the logger so injected failures are logged too
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.Faults.Middleware,
	}

	return r
}

// ApplyRoutes registers every endpoint. Call it after adjusting AuthLimit.
func (r *Router) ApplyRoutes() {
	limit := httpx.RateLimitByIP(r.AuthLimit)

	r.Mux.Handle("POST /login", httpx.Chain(&loginHandler{tokens: r.Tokens}, limit))
	r.Mux.Handle("POST /refresh", httpx.Chain(&refreshHandler{tokens: r.Tokens}, limit))
	r.Mux.Handle("POST /logout", &logoutHandler{tokens: r.Tokens})

	authn := httpx.AuthnMiddleware(r.verifier)
	r.Mux.Handle("GET /me", httpx.Chain(http.HandlerFunc(meHandler), authn))
	r.Mux.Handle("GET /dashboard/{widget}", httpx.Chain(widgetHandler(r.Tokens.Now), authn))

	r.Mux.HandleFunc("GET /livez", livezHandler(r.startTime, r.version))
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}
