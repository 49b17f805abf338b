package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/kaizen-client/auth"
	"github.com/jrsteele09/kaizen-client/httpclient"
	"github.com/jrsteele09/kaizen-client/identity"
	apperrors "github.com/jrsteele09/kaizen-client/internal/errors"
	"github.com/jrsteele09/kaizen-client/internal/utils"
	"github.com/jrsteele09/kaizen-client/kv"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func makeToken(t *testing.T, exp time.Time) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"jti": exp.String(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

type fakeTransport struct {
	login        func(ctx context.Context, username, password string) (*identity.TokenResponse, error)
	refresh      func(ctx context.Context) (*identity.TokenResponse, error)
	refreshCalls atomic.Int32
}

func (f *fakeTransport) Login(ctx context.Context, username, password string) (*identity.TokenResponse, error) {
	return f.login(ctx, username, password)
}

func (f *fakeTransport) Refresh(ctx context.Context) (*identity.TokenResponse, error) {
	f.refreshCalls.Add(1)
	return f.refresh(ctx)
}

func tokenResponse(access string, extra map[string]any) *identity.TokenResponse {
	body := map[string]any{}
	for k, v := range extra {
		body[k] = v
	}
	if access != "" {
		body["access"] = access
	}
	data, _ := json.Marshal(body)
	return &identity.TokenResponse{Access: access, Data: data}
}

type testFixture struct {
	kv        *kv.InMemoryStore
	transport *fakeTransport
	store     *auth.Store
	now       time.Time
}

func setupTestFixture(t *testing.T, options ...auth.StoreOption) *testFixture {
	t.Helper()
	f := &testFixture{
		kv:        kv.NewInMemoryStore(),
		transport: &fakeTransport{},
		now:       fixedNow,
	}
	f.transport.login = func(context.Context, string, string) (*identity.TokenResponse, error) {
		return tokenResponse(makeToken(t, f.now.Add(time.Hour)), map[string]any{
			"username":   "ana",
			"email":      "ana@example.com",
			"first_name": "Ana",
			"last_name":  "Kowalska",
			"gender":     "female",
		}), nil
	}
	f.transport.refresh = func(context.Context) (*identity.TokenResponse, error) {
		return tokenResponse(makeToken(t, f.now.Add(2*time.Hour)), nil), nil
	}

	opts := append([]auth.StoreOption{auth.WithNowTime(func() time.Time { return f.now })}, options...)
	store, err := auth.NewStore(auth.Deps{KV: f.kv, Transport: f.transport}, opts...)
	require.NoError(t, err)
	f.store = store
	return f
}

func (f *testFixture) persisted(t *testing.T) (auth.Record, bool) {
	t.Helper()
	var rec auth.Record
	found, err := kv.GetJSON(context.Background(), f.kv, auth.DefaultStorageKey, &rec)
	require.NoError(t, err)
	return rec, found
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	res := f.store.Login(context.Background(), "ana", "secret")
	require.True(t, res.Success, res.Error)
}

func requireAnonymous(t *testing.T, rec auth.Record) {
	t.Helper()
	require.False(t, rec.IsAuthenticated)
	require.Nil(t, rec.AccessToken)
	require.Nil(t, rec.AccessTokenExpiration)
	require.Nil(t, rec.User)
}

func TestNewStore(t *testing.T) {
	_, err := auth.NewStore(auth.Deps{Transport: &fakeTransport{}})
	require.Error(t, err)

	_, err = auth.NewStore(auth.Deps{KV: kv.NewInMemoryStore()})
	require.Error(t, err)

	store, err := auth.NewStore(auth.Deps{KV: kv.NewInMemoryStore(), Transport: &fakeTransport{}})
	require.NoError(t, err)
	requireAnonymous(t, store.State())
}

func TestLogin(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		res := f.store.Login(context.Background(), "ana", "secret")
		require.True(t, res.Success)
		require.Empty(t, res.Error)

		state := f.store.State()
		require.True(t, state.IsAuthenticated)
		require.NotEmpty(t, state.Token())
		require.Nil(t, state.Error)
		want := fixedNow.Add(time.Hour).UnixMilli() - 60_000
		require.Equal(t, want, utils.Value(state.AccessTokenExpiration))
		require.JSONEq(t, string(res.Data), string(state.User))

		profile, ok := state.Profile()
		require.True(t, ok)
		require.Equal(t, "ana", profile.Username)
		require.Equal(t, "Kowalska", profile.LastName)

		stored, found := f.persisted(t)
		require.True(t, found)
		require.Equal(t, state.Token(), stored.Token())
		require.Equal(t, want, utils.Value(stored.AccessTokenExpiration))
	})

	t.Run("custom skew", func(t *testing.T) {
		f := setupTestFixture(t, auth.WithSkew(5*time.Second))
		f.login(t)
		want := fixedNow.Add(time.Hour).UnixMilli() - 5_000
		require.Equal(t, want, utils.Value(f.store.State().AccessTokenExpiration))
	})

	t.Run("response without token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)

		f.transport.login = func(context.Context, string, string) (*identity.TokenResponse, error) {
			return &identity.TokenResponse{Data: json.RawMessage(`{}`)}, nil
		}
		res := f.store.Login(context.Background(), "ana", "secret")
		require.False(t, res.Success)
		require.Equal(t, "Login failed", res.Error)

		state := f.store.State()
		requireAnonymous(t, state)
		require.Equal(t, "Login failed", f.store.LastError())

		_, found := f.persisted(t)
		require.False(t, found, "a failed login replaces the prior session")
	})

	t.Run("transport failure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.transport.login = func(context.Context, string, string) (*identity.TokenResponse, error) {
			return nil, &httpclient.RequestError{
				Message: "No active account found with the given credentials",
				Status:  http.StatusUnauthorized,
			}
		}
		res := f.store.Login(context.Background(), "ana", "wrong")
		require.False(t, res.Success)
		require.Equal(t, "No active account found with the given credentials", res.Error)
		requireAnonymous(t, f.store.State())
		require.Equal(t, res.Error, f.store.LastError())
	})

	t.Run("token failing verification", func(t *testing.T) {
		f := setupTestFixture(t, auth.WithVerifier(rejectAll{}))
		res := f.store.Login(context.Background(), "ana", "secret")
		require.False(t, res.Success)
		require.Equal(t, apperrors.ErrLoginFailed.Error(), res.Error)
		require.False(t, f.store.IsAuthenticated())
	})
}

type rejectAll struct{}

func (rejectAll) Verify(context.Context, string) error {
	return apperrors.ErrInvalidToken
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	require.True(t, f.store.Logout(context.Background()).Success)
	requireAnonymous(t, f.store.State())
	require.Empty(t, f.store.AccessToken())
	require.Empty(t, f.store.LastError())
	_, found := f.persisted(t)
	require.False(t, found)

	require.True(t, f.store.Logout(context.Background()).Success, "logout is idempotent")

	fresh, err := auth.NewStore(auth.Deps{KV: f.kv, Transport: f.transport})
	require.NoError(t, err)
	require.False(t, fresh.CheckAuth(context.Background()))
	require.Zero(t, f.transport.refreshCalls.Load())
}

func TestRefreshAccessToken(t *testing.T) {
	t.Run("success keeps the user", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		before := f.store.State()

		require.True(t, f.store.RefreshAccessToken(context.Background()))
		after := f.store.State()
		require.True(t, after.IsAuthenticated)
		require.NotEqual(t, before.Token(), after.Token())
		require.Equal(t, fixedNow.Add(2*time.Hour).UnixMilli()-60_000, utils.Value(after.AccessTokenExpiration))
		require.JSONEq(t, string(before.User), string(after.User))

		stored, _ := f.persisted(t)
		require.Equal(t, after.Token(), stored.Token())
	})

	t.Run("network failure keeps the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		before := f.store.State()
		f.transport.refresh = func(context.Context) (*identity.TokenResponse, error) {
			return nil, &httpclient.RequestError{Message: "dial tcp: connection refused", NetworkError: true}
		}

		require.False(t, f.store.RefreshAccessToken(context.Background()))
		after := f.store.State()
		require.True(t, after.IsAuthenticated)
		require.Equal(t, before.Token(), after.Token())
		require.Equal(t, before.AccessTokenExpiration, after.AccessTokenExpiration)
		require.Equal(t, "dial tcp: connection refused", f.store.LastError())

		stored, _ := f.persisted(t)
		require.Nil(t, stored.Error, "the error is recorded in memory only")
		require.Equal(t, before.Token(), stored.Token())
	})

	t.Run("client error forces logout", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		f.transport.refresh = func(context.Context) (*identity.TokenResponse, error) {
			return nil, &httpclient.RequestError{Message: "Token is invalid or expired", Status: http.StatusUnauthorized}
		}

		require.False(t, f.store.RefreshAccessToken(context.Background()))
		requireAnonymous(t, f.store.State())
		_, found := f.persisted(t)
		require.False(t, found)
	})

	t.Run("server error keeps the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		f.transport.refresh = func(context.Context) (*identity.TokenResponse, error) {
			return nil, &httpclient.RequestError{Message: "Internal Server Error", Status: http.StatusInternalServerError}
		}

		require.False(t, f.store.RefreshAccessToken(context.Background()))
		require.True(t, f.store.IsAuthenticated())
		require.Equal(t, "Internal Server Error", f.store.LastError())
	})

	t.Run("empty token logs out", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		f.transport.refresh = func(context.Context) (*identity.TokenResponse, error) {
			return &identity.TokenResponse{Data: json.RawMessage(`{}`)}, nil
		}

		_, err := f.store.Renew(context.Background())
		require.ErrorIs(t, err, apperrors.ErrEmptyToken)
		requireAnonymous(t, f.store.State())
	})

	t.Run("concurrent callers share one call", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		gate := make(chan struct{})
		inner := f.transport.refresh
		f.transport.refresh = func(ctx context.Context) (*identity.TokenResponse, error) {
			<-gate
			return inner(ctx)
		}

		const callers = 5
		var g errgroup.Group
		tokens := make([]string, callers)
		for i := 0; i < callers; i++ {
			i := i
			g.Go(func() error {
				token, err := f.store.Renew(context.Background())
				tokens[i] = token
				return err
			})
		}
		require.Eventually(t, func() bool { return f.transport.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		close(gate)

		require.NoError(t, g.Wait())
		require.Equal(t, int32(1), f.transport.refreshCalls.Load())
		for _, token := range tokens {
			require.Equal(t, f.store.AccessToken(), token)
		}
	})
}

func TestRenewOutlivesLeaderCancellation(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	gate := make(chan struct{})
	inner := f.transport.refresh
	f.transport.refresh = func(ctx context.Context) (*identity.TokenResponse, error) {
		<-gate
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return inner(ctx)
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := f.store.Renew(leaderCtx)
		leaderDone <- err
	}()
	require.Eventually(t, func() bool { return f.transport.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	joinedDone := make(chan error, 1)
	var joined string
	go func() {
		var err error
		joined, err = f.store.Renew(context.Background())
		joinedDone <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-leaderDone, context.Canceled)

	close(gate)
	require.NoError(t, <-joinedDone)
	require.Equal(t, f.store.AccessToken(), joined)
	require.Empty(t, f.store.LastError())
	require.True(t, f.store.IsAuthenticated())
	require.Equal(t, int32(1), f.transport.refreshCalls.Load())
}

func TestRefreshDoesNotOverwriteNewerState(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	gate := make(chan struct{})
	inner := f.transport.refresh
	f.transport.refresh = func(ctx context.Context) (*identity.TokenResponse, error) {
		<-gate
		return inner(ctx)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.store.Renew(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return f.transport.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.store.Logout(context.Background())
	close(gate)

	require.ErrorIs(t, <-done, apperrors.ErrNoCredential)
	requireAnonymous(t, f.store.State())
	_, found := f.persisted(t)
	require.False(t, found)
}

func TestCheckAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing persisted", func(t *testing.T) {
		f := setupTestFixture(t)
		require.False(t, f.store.CheckAuth(ctx))
		require.Zero(t, f.transport.refreshCalls.Load())
	})

	t.Run("valid token is adopted", func(t *testing.T) {
		f := setupTestFixture(t)
		token := makeToken(t, fixedNow.Add(time.Hour))
		exp := fixedNow.Add(time.Hour).UnixMilli() - 60_000
		require.NoError(t, kv.SetJSON(ctx, f.kv, auth.DefaultStorageKey, auth.Record{
			IsAuthenticated:       true,
			AccessToken:           &token,
			AccessTokenExpiration: &exp,
			User:                  json.RawMessage(`{"username":"ana"}`),
		}))

		require.True(t, f.store.CheckAuth(ctx))
		require.Zero(t, f.transport.refreshCalls.Load())
		require.Equal(t, token, f.store.AccessToken())
		profile, ok := f.store.State().Profile()
		require.True(t, ok)
		require.Equal(t, "ana", profile.Username)
	})

	t.Run("missing expiration is recomputed", func(t *testing.T) {
		f := setupTestFixture(t)
		token := makeToken(t, fixedNow.Add(time.Hour))
		require.NoError(t, f.kv.Set(ctx, auth.DefaultStorageKey, []byte(`{"isAuthenticated":true,"accessToken":"`+token+`","user":null}`)))

		require.True(t, f.store.CheckAuth(ctx))
		want := fixedNow.Add(time.Hour).UnixMilli() - 60_000
		require.Equal(t, want, utils.Value(f.store.State().AccessTokenExpiration))

		stored, _ := f.persisted(t)
		require.Equal(t, want, utils.Value(stored.AccessTokenExpiration), "recomputed value is persisted")
	})

	t.Run("expired token triggers refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		token := makeToken(t, fixedNow.Add(-time.Minute))
		exp := fixedNow.UnixMilli() - 5_000
		require.NoError(t, kv.SetJSON(ctx, f.kv, auth.DefaultStorageKey, auth.Record{
			IsAuthenticated:       true,
			AccessToken:           &token,
			AccessTokenExpiration: &exp,
			User:                  json.RawMessage(`{"username":"ana"}`),
		}))

		require.True(t, f.store.CheckAuth(ctx))
		require.Equal(t, int32(1), f.transport.refreshCalls.Load())
		require.NotEqual(t, token, f.store.AccessToken())
		require.JSONEq(t, `{"username":"ana"}`, string(f.store.User()), "user survives the refresh")
	})

	t.Run("malformed token triggers refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.kv.Set(ctx, auth.DefaultStorageKey, []byte(`{"isAuthenticated":true,"accessToken":"not-a-token"}`)))
		f.transport.refresh = func(context.Context) (*identity.TokenResponse, error) {
			return nil, &httpclient.RequestError{Message: "offline", NetworkError: true}
		}

		require.False(t, f.store.CheckAuth(ctx))
		require.Equal(t, int32(1), f.transport.refreshCalls.Load())
		require.Equal(t, "not-a-token", f.store.AccessToken(), "network failure keeps the adopted record")
		require.Equal(t, "offline", f.store.LastError())
	})
}

type failingKV struct {
	kv.Store
}

func (failingKV) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestPersistenceFailureKeepsMemory(t *testing.T) {
	f := setupTestFixture(t)
	store, err := auth.NewStore(auth.Deps{KV: failingKV{Store: f.kv}, Transport: f.transport},
		auth.WithNowTime(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	res := store.Login(context.Background(), "ana", "secret")
	require.True(t, res.Success)
	require.True(t, store.IsAuthenticated())
}

func TestSubscribe(t *testing.T) {
	f := setupTestFixture(t)
	var mu sync.Mutex
	var seen []bool
	handler := func(rec auth.Record) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, rec.IsAuthenticated)
	}
	require.NoError(t, f.store.Subscribe(handler))

	f.login(t)
	f.store.Logout(context.Background())
	require.NoError(t, f.store.Unsubscribe(handler))
	f.login(t)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []bool{true, false}, seen)
}

func TestTokenSource(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.store.Token()
	require.ErrorIs(t, err, apperrors.ErrNoCredential)

	f.login(t)
	tok, err := f.store.Token()
	require.NoError(t, err)
	require.Equal(t, f.store.AccessToken(), tok.AccessToken)
	require.Equal(t, "Bearer", tok.Type())
	require.Zero(t, f.transport.refreshCalls.Load())

	f.now = fixedNow.Add(2 * time.Hour)
	tok, err = f.store.Token()
	require.NoError(t, err)
	require.Equal(t, int32(1), f.transport.refreshCalls.Load(), "expired token is renewed first")
	require.Equal(t, f.store.AccessToken(), tok.AccessToken)
}
