package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/kaizen-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultRefreshTimeout bounds a coordinated refresh when none is configured.
const DefaultRefreshTimeout = 30 * time.Second

// Credentials is the session side of the interceptor. The interceptor reads
// the current token and asks for a renewal; it never edits the session.
type Credentials interface {
	AccessToken() string
	Renew(ctx context.Context) (string, error)
}

type refreshOutcome struct {
	accessToken string
	err         error
}

// waiter is a request queued behind the running refresh. seq is its enqueue
// position.
type waiter struct {
	seq uint64
	ch  chan refreshOutcome
}

// errCredentialCleared means the session was cleared while a 401 was in
// flight; the original 401 is returned.
var errCredentialCleared = errors.New("credential cleared")

// AuthInterceptor attaches the bearer token to outgoing requests and turns a
// 401 into at most one refresh, however many requests fail at the same time.
// Requests that fail while a refresh is running wait in a FIFO queue and are
// released with the outcome of that refresh.
type AuthInterceptor struct {
	credentials    Credentials
	refreshPath    string
	refreshTimeout time.Duration
	logger         zerolog.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []waiter // FIFO
	enqueued   uint64
	onRelease  func(seq uint64)
}

var _ Interceptor = (*AuthInterceptor)(nil)

// AuthInterceptorOption defines a function type to modify the AuthInterceptor.
type AuthInterceptorOption func(*AuthInterceptor)

// WithRefreshPath marks the refresh endpoint so its own 401 is never retried.
func WithRefreshPath(path string) AuthInterceptorOption {
	return func(a *AuthInterceptor) {
		a.refreshPath = path
	}
}

// WithRefreshTimeout bounds the coordinated refresh; every queued request
// fails when it elapses.
func WithRefreshTimeout(d time.Duration) AuthInterceptorOption {
	return func(a *AuthInterceptor) {
		if d > 0 {
			a.refreshTimeout = d
		}
	}
}

// WithInterceptorLogger sets the logger used for refresh diagnostics.
func WithInterceptorLogger(logger zerolog.Logger) AuthInterceptorOption {
	return func(a *AuthInterceptor) {
		a.logger = logger
	}
}

// NewAuthInterceptor creates an interceptor backed by credentials.
func NewAuthInterceptor(credentials Credentials, options ...AuthInterceptorOption) *AuthInterceptor {
	a := &AuthInterceptor{
		credentials:    credentials,
		refreshTimeout: DefaultRefreshTimeout,
		logger:         log.Logger,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Waiting returns the number of requests queued behind the running refresh.
func (a *AuthInterceptor) Waiting() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.waiters)
}

// Refreshing reports whether a coordinated refresh is in flight.
func (a *AuthInterceptor) Refreshing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshing
}

func (a *AuthInterceptor) Intercept(ctx context.Context, req *Request, next SendFunc) (json.RawMessage, error) {
	if req.Token == nil {
		req.Token = bearer(a.credentials.AccessToken())
	}
	var sentWith string
	if req.Token != nil {
		sentWith = req.Token.AccessToken
	}

	data, err := next(ctx, req)
	if !IsUnauthorized(err) {
		return data, err
	}

	if req.retried || (a.refreshPath != "" && req.Path == a.refreshPath) {
		return nil, err
	}

	if a.credentials.AccessToken() == "" {
		return nil, err
	}

	accessToken, refreshErr := a.awaitRefresh(ctx, sentWith)
	if errors.Is(refreshErr, errCredentialCleared) {
		return nil, err
	}
	if refreshErr != nil {
		return nil, refreshErr
	}
	return next(ctx, req.replay(accessToken))
}

// awaitRefresh either joins the refresh in flight, reuses a token that
// replaced sentWith since the request was sent, or leads a new refresh. The
// token check, the join and the lead decision happen in one critical section,
// so a refresh that settled a moment ago is never repeated.
func (a *AuthInterceptor) awaitRefresh(ctx context.Context, sentWith string) (string, error) {
	a.mu.Lock()
	if a.refreshing {
		w := waiter{seq: a.enqueued, ch: make(chan refreshOutcome, 1)}
		a.enqueued++
		a.waiters = append(a.waiters, w)
		a.mu.Unlock()

		select {
		case out := <-w.ch:
			return out.accessToken, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	// The credential only changes before a refresh settles, so under the lock
	// with no refresh running it is final for this 401.
	if current := a.credentials.AccessToken(); current != sentWith {
		a.mu.Unlock()
		if current == "" {
			return "", errCredentialCleared
		}
		return current, nil
	}
	a.refreshing = true
	a.mu.Unlock()

	accessToken, err := a.refresh(ctx)

	a.mu.Lock()
	waiters := a.waiters
	a.waiters = nil
	a.refreshing = false
	a.mu.Unlock()

	a.logger.Debug().
		Int("waiters", len(waiters)).
		Bool("success", err == nil).
		Msg("token refresh settled")

	for _, w := range waiters {
		if a.onRelease != nil {
			a.onRelease(w.seq)
		}
		w.ch <- refreshOutcome{accessToken: accessToken, err: err}
	}
	return accessToken, err
}

// refresh runs detached from the leader's cancellation: queued callers
// depend on it, so only the refresh timeout ends it early.
func (a *AuthInterceptor) refresh(ctx context.Context) (string, error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.refreshTimeout)
	defer cancel()

	accessToken, err := a.credentials.Renew(rctx)
	if err != nil {
		return "", err
	}
	if accessToken == "" {
		return "", apperrors.ErrRefreshFailed
	}
	return accessToken, nil
}
