package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/aussiebroadwan/jwtclient/pkg/idx"
	"github.com/aussiebroadwan/jwtclient/pkg/slogx"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// DefaultRequestTimeout bounds a single HTTP attempt.
const DefaultRequestTimeout = 30 * time.Second

// maxResponseBody caps how much of a response is read into memory.
const maxResponseBody = 1 << 20

// Request describes one logical call. Path is relative to the transport's
// base URL. Body, when non-nil, is sent as JSON.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   any
}

func (r Request) op() string {
	return r.Method + " " + r.Path
}

// Transport performs JSON requests against a base URL and retries transient
// failures according to its RetryPolicy.
type Transport struct {
	baseURL        string
	httpClient     *http.Client
	policy         RetryPolicy
	requestTimeout time.Duration
	limiter        *rate.Limiter
	log            *slog.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *Transport) { t.httpClient = c }
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) TransportOption {
	return func(t *Transport) { t.policy = p }
}

// WithRequestTimeout sets the per-attempt timeout. A timed out attempt is
// retried like any other transient failure.
func WithRequestTimeout(d time.Duration) TransportOption {
	return func(t *Transport) { t.requestTimeout = d }
}

// WithRateLimit makes every attempt wait for a token from l.
func WithRateLimit(l *rate.Limiter) TransportOption {
	return func(t *Transport) { t.limiter = l }
}

// WithLogger sets the logger used for retry and request diagnostics.
func WithLogger(l *slog.Logger) TransportOption {
	return func(t *Transport) { t.log = l }
}

// NewTransport creates a Transport for the service at baseURL.
func NewTransport(baseURL string, opts ...TransportOption) *Transport {
	t := &Transport{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpClient:     &http.Client{},
		policy:         DefaultRetryPolicy,
		requestTimeout: DefaultRequestTimeout,
		log:            slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// BaseURL returns the base URL requests are resolved against.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

func (t *Transport) url(path string) string {
	return t.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// Send performs req and decodes a 2xx response into a T. Use NoContent for
// endpoints without a body.
func Send[T any](ctx context.Context, t *Transport, req Request) (T, error) {
	var out T
	if err := t.Do(ctx, req, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Do performs req, retrying transient network failures and 5xx responses.
// A 2xx body is decoded into out unless out is nil or a *NoContent.
//
// The returned error is ErrUnauthorized for 401, a *StatusError for other
// non-2xx statuses, a *NetworkError when the server could not be reached
// and a *DecodingError when the body did not match out. Cancelling ctx
// stops retrying and returns ctx.Err().
func (t *Transport) Do(ctx context.Context, req Request, out any) error {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	// One ID for every attempt so the server side can correlate retries
	reqID := idx.New().String()
	log := t.log.With("req_id", reqID, "method", req.Method, "path", req.Path)

	attempt := 0
	operation := func() error {
		attempt++
		return t.attempt(ctx, req, payload, reqID, out)
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("request attempt failed, retrying",
			"attempt", attempt,
			"wait", wait,
			"err", err,
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(t.policy.NewBackOff(), ctx), notify)
	if err != nil {
		log.Debug("request failed", "attempts", attempt, "err", err)
		return err
	}

	log.Debug("request completed", "attempts", attempt)
	return nil
}

// attempt makes one HTTP round trip. Errors that must not be retried are
// wrapped in backoff.Permanent.
func (t *Transport) attempt(ctx context.Context, req Request, payload []byte, reqID string, out any) error {
	if err := ctx.Err(); err != nil {
		return backoff.Permanent(err)
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	attemptCtx := ctx
	if t.requestTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, t.requestTimeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, t.url(req.Path), body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(slogx.RequestIDHeader, reqID)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return t.networkError(ctx, req, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return t.networkError(ctx, req, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return backoff.Permanent(ErrUnauthorized)

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		statusErr := parseStatusError(resp.StatusCode, data)
		if statusErr.Temporary() {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	if err := decodeBody(data, out); err != nil {
		return backoff.Permanent(err)
	}

	return nil
}

// networkError classifies a failed round trip. The caller's own
// cancellation is never retried.
func (t *Transport) networkError(ctx context.Context, req Request, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return backoff.Permanent(ctxErr)
	}

	netErr := &NetworkError{Op: req.op(), Err: err}
	if isTransient(err) {
		return netErr
	}
	return backoff.Permanent(netErr)
}

// isTransient reports whether err looks like a dropped or unreachable
// connection, or an attempt that ran out of time.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.EPIPE):
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	// Anything failing at dial time means we are not connected
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func parseStatusError(code int, body []byte) *StatusError {
	statusErr := &StatusError{StatusCode: code}

	var envelope struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		statusErr.Code = envelope.Error
		statusErr.Description = envelope.ErrorDescription
	}

	return statusErr
}

func decodeBody(data []byte, out any) error {
	switch out.(type) {
	case nil, *NoContent:
		return nil
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return &DecodingError{Err: errors.New("empty response body")}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &DecodingError{Err: err}
	}

	return nil
}
