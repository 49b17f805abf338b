// Package auth holds the client session: the access token, its derived
// expiration, the user profile and the last error. Store is the only writer
// of that state. Every transition is written through to a KV store so a new
// process can pick the session up again with CheckAuth.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/jrsteele09/kaizen-client/httpclient"
	"github.com/jrsteele09/kaizen-client/identity"
	apperrors "github.com/jrsteele09/kaizen-client/internal/errors"
	"github.com/jrsteele09/kaizen-client/kv"
	"github.com/jrsteele09/kaizen-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// SessionChangedTopic is published with a Record snapshot after every
// transition.
const SessionChangedTopic = "session:changed"

const refreshKey = "refresh"

// Transport performs the identity calls. It holds no session state.
type Transport interface {
	Login(ctx context.Context, username, password string) (*identity.TokenResponse, error)
	Refresh(ctx context.Context) (*identity.TokenResponse, error)
}

var _ Transport = (*identity.Client)(nil)

// Deps holds the collaborators of a Store.
type Deps struct {
	KV        kv.Store  // Where the session record is persisted
	Transport Transport // Login and refresh calls
}

// persistence says what a transition does to the stored record.
type persistence int

const (
	memoryOnly persistence = iota
	writeThrough
	removeStored
)

// Store is the session service. It is safe for concurrent use; network calls
// never run under its locks and concurrent refreshes share one call.
type Store struct {
	deps       Deps
	storageKey string
	skew       time.Duration
	nowTime    func() time.Time
	verifier   token.Verifier
	logger     zerolog.Logger
	bus        evbus.Bus

	commitMu   sync.Mutex   // serialises transitions (persist, then apply)
	mu         sync.RWMutex // guards state and generation
	state      Record
	generation uint64 // bumped by every transition

	refreshGroup singleflight.Group
}

var (
	_ httpclient.Credentials = (*Store)(nil)
	_ oauth2.TokenSource     = (*Store)(nil)
)

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// WithSkew sets the margin subtracted from the token's exp claim.
func WithSkew(skew time.Duration) StoreOption {
	return func(s *Store) {
		if skew >= 0 {
			s.skew = skew
		}
	}
}

// WithStorageKey sets the KV key the record is persisted under.
func WithStorageKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.storageKey = key
		}
	}
}

// WithVerifier makes tokens that fail signature verification count as
// unusable.
func WithVerifier(v token.Verifier) StoreOption {
	return func(s *Store) {
		s.verifier = v
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithEventBus publishes session changes on bus instead of a private one.
func WithEventBus(bus evbus.Bus) StoreOption {
	return func(s *Store) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// NewStore creates an anonymous Store. Call CheckAuth to resume a persisted
// session.
func NewStore(deps Deps, options ...StoreOption) (*Store, error) {
	if deps.KV == nil {
		return nil, errors.New("[NewStore] KV store is required")
	}
	if deps.Transport == nil {
		return nil, errors.New("[NewStore] Transport is required")
	}

	s := &Store{
		deps:       deps,
		storageKey: DefaultStorageKey,
		skew:       token.DefaultSkew,
		nowTime:    time.Now,
		logger:     log.Logger,
		bus:        evbus.New(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// State returns a snapshot of the session record.
func (s *Store) State() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// AccessToken returns the current access token, or "" when none is held.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token()
}

func (s *Store) User() json.RawMessage {
	return s.State().User
}

// LastError returns the last failure message, or "".
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Error == nil {
		return ""
	}
	return *s.state.Error
}

// Subscribe registers fn to receive a Record after every transition. fn runs
// synchronously on the goroutine that made the change.
func (s *Store) Subscribe(fn func(Record)) error {
	return s.bus.Subscribe(SessionChangedTopic, fn)
}

func (s *Store) Unsubscribe(fn func(Record)) error {
	return s.bus.Unsubscribe(SessionChangedTopic, fn)
}

// Login exchanges credentials for a session. It replaces any prior session,
// successful or not, and never returns an error: failures are reported in the
// result and in LastError.
func (s *Store) Login(ctx context.Context, username, password string) LoginResult {
	resp, err := s.deps.Transport.Login(ctx, username, password)
	if err != nil {
		msg := errorMessage(err, apperrors.ErrLoginFailed.Error())
		s.logger.Info().Err(err).Str("username", username).Msg("login failed")
		s.commit(ctx, Record{Error: &msg}, removeStored)
		return LoginResult{Error: msg}
	}

	accessToken := resp.Access
	if accessToken == "" || !s.usable(ctx, accessToken) {
		msg := apperrors.ErrLoginFailed.Error()
		s.logger.Warn().Str("username", username).Msg("login response carried no usable access token")
		s.commit(ctx, Record{Error: &msg}, removeStored)
		return LoginResult{Error: msg}
	}

	s.commit(ctx, Record{
		IsAuthenticated:       true,
		AccessToken:           &accessToken,
		AccessTokenExpiration: s.expiration(accessToken),
		User:                  resp.Data,
	}, writeThrough)
	return LoginResult{Success: true, Data: resp.Data}
}

// Logout clears the session in memory and in the KV store. It makes no
// network call and is idempotent.
func (s *Store) Logout(ctx context.Context) LogoutResult {
	s.commit(ctx, Record{}, removeStored)
	return LogoutResult{Success: true}
}

// RefreshAccessToken renews the access token from the refresh cookie and
// reports whether a new token is held.
func (s *Store) RefreshAccessToken(ctx context.Context) bool {
	_, err := s.Renew(ctx)
	return err == nil
}

// Renew is RefreshAccessToken returning the new token or the failure.
// Concurrent callers share one refresh call, which is detached from any one
// caller's cancellation; each stops waiting when its own ctx is done.
//
// A 4xx from the refresh endpoint or a 2xx without a usable token clears the
// session. Any other failure keeps it and only records the message.
func (s *Store) Renew(ctx context.Context) (string, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.refreshGroup.DoChan(refreshKey, func() (interface{}, error) {
		return s.refresh(shared)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Store) refresh(ctx context.Context) (string, error) {
	current, gen := s.snapshot()

	resp, err := s.deps.Transport.Refresh(ctx)
	if err != nil {
		if httpclient.IsClientError(err) {
			s.logger.Info().Err(err).Msg("refresh rejected, clearing session")
			s.commitIf(ctx, gen, Record{}, removeStored)
			return "", fmt.Errorf("[Store.Renew] %w", err)
		}
		msg := errorMessage(err, apperrors.ErrRefreshFailed.Error())
		s.logger.Warn().Err(err).Bool("network", httpclient.IsNetworkError(err)).Msg("refresh failed, keeping session")
		failed := current.clone()
		failed.Error = &msg
		s.commitIf(ctx, gen, failed, memoryOnly)
		return "", fmt.Errorf("[Store.Renew] %w", err)
	}

	accessToken := resp.Access
	if accessToken == "" || !s.usable(ctx, accessToken) {
		s.logger.Warn().Msg("refresh response carried no usable access token, clearing session")
		s.commitIf(ctx, gen, Record{}, removeStored)
		return "", fmt.Errorf("[Store.Renew] %w", apperrors.ErrEmptyToken)
	}

	renewed := current.clone()
	renewed.IsAuthenticated = true
	renewed.AccessToken = &accessToken
	renewed.AccessTokenExpiration = s.expiration(accessToken)
	renewed.Error = nil
	if !s.commitIf(ctx, gen, renewed, writeThrough) {
		// A login or logout landed while the refresh was in flight and wins.
		if latest := s.AccessToken(); latest != "" {
			return latest, nil
		}
		return "", fmt.Errorf("[Store.Renew] %w", apperrors.ErrNoCredential)
	}
	return accessToken, nil
}

// CheckAuth resumes the persisted session. It adopts a record whose token is
// still valid and otherwise adopts it as a starting point and refreshes.
// Call it at start-up and whenever the application regains focus.
func (s *Store) CheckAuth(ctx context.Context) bool {
	var stored Record
	found, err := kv.GetJSON(ctx, s.deps.KV, s.storageKey, &stored)
	if err != nil {
		s.logger.Err(err).Msg("failed to read persisted session")
		return false
	}
	if !found {
		return false
	}
	stored.normalize()

	accessToken := stored.Token()
	resolved := stored.AccessTokenExpiration
	if resolved == nil && accessToken != "" {
		// Records written before the expiration was stored.
		resolved = s.expiration(accessToken)
	}

	if accessToken != "" && resolved != nil && *resolved > s.nowTime().UnixMilli() && s.usable(ctx, accessToken) {
		changed := stored.AccessTokenExpiration == nil || *stored.AccessTokenExpiration != *resolved
		stored.AccessTokenExpiration = resolved
		stored.IsAuthenticated = true
		p := memoryOnly
		if changed {
			p = writeThrough
		}
		s.commit(ctx, stored, p)
		return true
	}

	s.commit(ctx, stored, memoryOnly)
	return s.RefreshAccessToken(ctx)
}

// Token makes the Store an oauth2.TokenSource. An expired token is renewed
// first.
func (s *Store) Token() (*oauth2.Token, error) {
	rec := s.State()
	accessToken := rec.Token()
	if accessToken == "" {
		return nil, apperrors.ErrNoCredential
	}
	if exp := rec.Expiration(); !exp.IsZero() && !exp.After(s.nowTime()) {
		renewed, err := s.Renew(context.Background())
		if err != nil {
			return nil, err
		}
		accessToken = renewed
		rec = s.State()
	}
	return &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer", Expiry: rec.Expiration()}, nil
}

func (s *Store) snapshot() (Record, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone(), s.generation
}

func (s *Store) expiration(accessToken string) *int64 {
	if exp, ok := token.Expiration(accessToken, s.skew); ok {
		return &exp
	}
	return nil
}

func (s *Store) usable(ctx context.Context, accessToken string) bool {
	if s.verifier == nil {
		return true
	}
	if err := s.verifier.Verify(ctx, accessToken); err != nil {
		s.logger.Warn().Err(err).Msg("access token failed verification")
		return false
	}
	return true
}

// commit applies rec unconditionally.
func (s *Store) commit(ctx context.Context, rec Record, p persistence) {
	s.transition(ctx, rec, p, func(uint64) bool { return true })
}

// commitIf applies rec only if no transition happened since gen was read.
func (s *Store) commitIf(ctx context.Context, gen uint64, rec Record, p persistence) bool {
	return s.transition(ctx, rec, p, func(current uint64) bool { return current == gen })
}

// transition persists rec as p says, then makes it the in-memory state.
// Persistence is best effort: a failed write is logged and memory is still
// updated.
func (s *Store) transition(ctx context.Context, rec Record, p persistence, guard func(uint64) bool) bool {
	s.commitMu.Lock()

	s.mu.RLock()
	current := s.generation
	s.mu.RUnlock()
	if !guard(current) {
		s.commitMu.Unlock()
		return false
	}

	// A caller giving up must not leave the store half written.
	pctx := context.WithoutCancel(ctx)
	switch p {
	case writeThrough:
		if err := kv.SetJSON(pctx, s.deps.KV, s.storageKey, rec); err != nil {
			s.logger.Err(err).Msg("failed to persist session")
		}
	case removeStored:
		if err := s.deps.KV.Remove(pctx, s.storageKey); err != nil {
			s.logger.Err(err).Msg("failed to remove persisted session")
		}
	}

	s.mu.Lock()
	s.state = rec.clone()
	s.generation++
	s.mu.Unlock()
	s.commitMu.Unlock()

	s.bus.Publish(SessionChangedTopic, rec.clone())
	return true
}

// errorMessage picks the human readable message of err.
func errorMessage(err error, fallback string) string {
	var reqErr *httpclient.RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
