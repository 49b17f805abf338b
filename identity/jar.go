package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/jrsteele09/kaizen-client/kv"
	"golang.org/x/net/publicsuffix"
)

// DefaultJarKey is the KV key the cookie jar is persisted under.
const DefaultJarKey = "auth-cookies"

// storedCookie is one Set-Cookie as received, with MaxAge folded into Expires.
type storedCookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

func (s storedCookie) key() string {
	return s.URL + "|" + s.Domain + "|" + s.Path + "|" + s.Name
}

func (s storedCookie) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Value:    s.Value,
		Path:     s.Path,
		Domain:   s.Domain,
		Expires:  s.Expires,
		Secure:   s.Secure,
		HttpOnly: s.HttpOnly,
	}
}

// Jar is an http.CookieJar that survives process restarts by mirroring every
// cookie it accepts into a KV store. It is what lets a fresh process refresh
// a session whose refresh credential is an HTTP-only cookie.
type Jar struct {
	store   kv.Store
	key     string
	nowTime func() time.Time

	mu      sync.Mutex
	jar     *cookiejar.Jar
	entries map[string]storedCookie
}

var _ http.CookieJar = (*Jar)(nil)

// JarOption defines a function type to modify the Jar instance.
type JarOption func(*Jar)

// WithJarKey sets the KV key the cookies are stored under.
func WithJarKey(key string) JarOption {
	return func(j *Jar) {
		if key != "" {
			j.key = key
		}
	}
}

// WithJarNowTime sets the now time function (primarily for testing)
func WithJarNowTime(nowFunc func() time.Time) JarOption {
	return func(j *Jar) {
		j.nowTime = nowFunc
	}
}

// NewJar creates a jar and restores any unexpired cookies found in store.
func NewJar(ctx context.Context, store kv.Store, options ...JarOption) (*Jar, error) {
	if store == nil {
		return nil, errors.New("[identity.NewJar] KV store is required")
	}
	j := &Jar{
		store:   store,
		key:     DefaultJarKey,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(j)
	}
	if err := j.reset(); err != nil {
		return nil, err
	}

	var saved []storedCookie
	if _, err := kv.GetJSON(ctx, store, j.key, &saved); err != nil {
		return nil, fmt.Errorf("[identity.NewJar] %w", err)
	}
	now := j.nowTime()
	for _, c := range saved {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		u, err := url.Parse(c.URL)
		if err != nil {
			continue
		}
		j.jar.SetCookies(u, []*http.Cookie{c.cookie()})
		j.entries[c.key()] = c
	}
	return j, nil
}

func (j *Jar) reset() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("[identity.Jar] %w", err)
	}
	j.jar = jar
	j.entries = make(map[string]storedCookie)
	return nil
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
	now := j.nowTime()
	for _, c := range cookies {
		entry := storedCookie{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if c.MaxAge > 0 {
			entry.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if c.MaxAge < 0 || (!entry.Expires.IsZero() && !entry.Expires.After(now)) {
			delete(j.entries, entry.key())
			continue
		}
		j.entries[entry.key()] = entry
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Save writes the current cookies to the KV store.
func (j *Jar) Save(ctx context.Context) error {
	j.mu.Lock()
	saved := make([]storedCookie, 0, len(j.entries))
	for _, c := range j.entries {
		saved = append(saved, c)
	}
	j.mu.Unlock()

	if err := kv.SetJSON(ctx, j.store, j.key, saved); err != nil {
		return fmt.Errorf("[identity.Jar.Save] %w", err)
	}
	return nil
}

// Clear forgets every cookie, in memory and in the KV store.
func (j *Jar) Clear(ctx context.Context) error {
	j.mu.Lock()
	err := j.reset()
	j.mu.Unlock()
	if err != nil {
		return err
	}
	if err := j.store.Remove(ctx, j.key); err != nil {
		return fmt.Errorf("[identity.Jar.Clear] %w", err)
	}
	return nil
}
