// Package bootstrap builds the client object graph from configuration: the
// KV store, the cookie jar, the identity transport, the session store and the
// authenticated API client.
package bootstrap

import (
	"context"
	"errors"
	"net/http"

	evbus "github.com/asaskevich/EventBus"
	"github.com/jrsteele09/kaizen-client/auth"
	"github.com/jrsteele09/kaizen-client/httpclient"
	"github.com/jrsteele09/kaizen-client/identity"
	"github.com/jrsteele09/kaizen-client/ideas"
	"github.com/jrsteele09/kaizen-client/internal/config"
	"github.com/jrsteele09/kaizen-client/kv"
	"github.com/jrsteele09/kaizen-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App is the wired client.
type App struct {
	Config      config.Config
	KV          kv.Store
	Jar         *identity.Jar
	Identity    *identity.Client
	Session     *auth.Store
	Interceptor *httpclient.AuthInterceptor
	API         *httpclient.Client
	Ideas       *ideas.Services
	Bus         evbus.Bus

	ownsKV bool
}

type options struct {
	kv        kv.Store
	transport http.RoundTripper
	logger    zerolog.Logger
}

// Option defines a function type to modify how the App is built.
type Option func(*options)

// WithKVStore uses store instead of the configured driver. The App does not
// close it.
func WithKVStore(store kv.Store) Option {
	return func(o *options) {
		o.kv = store
	}
}

// WithTransport sets the round tripper of the shared http.Client.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New wires an App. The session starts anonymous; call Resume to pick up a
// persisted one.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("[bootstrap.New] config is required")
	}
	o := options{logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg, KV: o.kv, Bus: evbus.New()}
	if app.KV == nil {
		store, err := NewKVStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.KV = store
		app.ownsKV = true
	}

	if err := app.wire(ctx, o); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context, o options) error {
	cfg := a.Config

	jar, err := identity.NewJar(ctx, a.KV, identity.WithJarKey(cfg.GetStorageKey()+"-cookies"))
	if err != nil {
		return err
	}
	a.Jar = jar

	// One http.Client so API calls and identity calls share the cookie jar.
	hc := &http.Client{Jar: jar, Timeout: cfg.GetRequestTimeout(), Transport: o.transport}

	identityHTTP := httpclient.New(cfg.GetAPIBaseURL(), httpclient.WithHTTPClient(hc), httpclient.WithLogger(o.logger))
	a.Identity, err = identity.New(identityHTTP,
		identity.WithJar(jar),
		identity.WithPaths(cfg.GetLoginPath(), cfg.GetRefreshPath(), cfg.GetLogoutPath()),
		identity.WithLogger(o.logger),
	)
	if err != nil {
		return err
	}

	storeOptions := []auth.StoreOption{
		auth.WithSkew(cfg.GetTokenSkew()),
		auth.WithStorageKey(cfg.GetStorageKey()),
		auth.WithLogger(o.logger),
		auth.WithEventBus(a.Bus),
	}
	if jwksURL := cfg.GetJWKSURL(); jwksURL != "" {
		storeOptions = append(storeOptions, auth.WithVerifier(token.NewRemoteVerifier(ctx, jwksURL)))
	}
	a.Session, err = auth.NewStore(auth.Deps{KV: a.KV, Transport: a.Identity}, storeOptions...)
	if err != nil {
		return err
	}

	a.Interceptor = httpclient.NewAuthInterceptor(a.Session,
		httpclient.WithRefreshPath(a.Identity.RefreshPath()),
		httpclient.WithRefreshTimeout(cfg.GetRefreshTimeout()),
		httpclient.WithInterceptorLogger(o.logger),
	)
	a.API = httpclient.New(cfg.GetAPIBaseURL(),
		httpclient.WithHTTPClient(hc),
		httpclient.WithInterceptor(a.Interceptor),
		httpclient.WithLogger(o.logger),
	)
	a.Ideas, err = ideas.New(a.API)
	return err
}

// Resume validates the persisted session, refreshing it when needed.
func (a *App) Resume(ctx context.Context) bool {
	return a.Session.CheckAuth(ctx)
}

// SignOut clears the local session. With remote set it first asks the server
// to revoke the refresh credential; a failure there is returned but the local
// session is cleared regardless.
func (a *App) SignOut(ctx context.Context, remote bool) (auth.LogoutResult, error) {
	var err error
	if remote {
		err = a.Identity.Logout(ctx)
	} else if clearErr := a.Jar.Clear(ctx); clearErr != nil {
		err = clearErr
	}
	return a.Session.Logout(ctx), err
}

// Close releases the KV store when the App opened it.
func (a *App) Close() error {
	if !a.ownsKV || a.KV == nil {
		return nil
	}
	if closer, ok := a.KV.(kv.Closer); ok {
		return closer.Close()
	}
	return nil
}
