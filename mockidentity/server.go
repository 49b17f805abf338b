// Package mockidentity is an in-process stand-in for the idea board backend.
// It reproduces the identity contract the client depends on: the login and
// refresh endpoints, the HTTP-only refresh cookie, 401 on invalid bearer
// tokens. It also serves an in-memory board so the API services can be
// exercised end to end. Hooks let tests hold, fail or count refresh calls.
package mockidentity

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	LoginPath         = "/api/access/token/"
	RefreshPath       = "/api/access/token/refresh/"
	LogoutPath        = "/api/access/logout/"
	RefreshCookieName = "refresh_token"

	// Seeded account for local development.
	DefaultUsername = "kaizen"
	DefaultPassword = "kaizen123"

	defaultAccessTTL  = 5 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

type seedUser struct {
	user     User
	password string
}

type refreshSession struct {
	userID    int
	expiresAt time.Time
}

// Server is the mock backend. Use Handler with httptest.NewServer or an
// http.Server.
type Server struct {
	router     chi.Router
	users      *userRepo
	tokens     *tokenIssuer
	board      *board
	nowTime    func() time.Time
	refreshTTL time.Duration
	logger     zerolog.Logger
	seeds      []seedUser

	refreshCalls atomic.Int64

	mu          sync.Mutex
	generation  int64
	sessions    map[string]refreshSession
	refreshGate chan struct{}
	refreshFail int
	omitAccess  bool
}

// ServerOption defines a function type to modify the Server instance.
type ServerOption func(*Server)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) ServerOption {
	return func(s *Server) {
		s.tokens.ttl = ttl
	}
}

// WithRefreshTTL sets the lifetime of the refresh cookie.
func WithRefreshTTL(ttl time.Duration) ServerOption {
	return func(s *Server) {
		s.refreshTTL = ttl
	}
}

// WithSecret sets the HS256 signing secret.
func WithSecret(secret []byte) ServerOption {
	return func(s *Server) {
		s.tokens.secret = secret
	}
}

// WithUser adds an account next to the default one.
func WithUser(user User, password string) ServerOption {
	return func(s *Server) {
		s.seeds = append(s.seeds, seedUser{user: user, password: password})
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a mock backend seeded with the default account, a second
// author and a few categories and posts.
func New(options ...ServerOption) (*Server, error) {
	s := &Server{
		users:      newUserRepo(),
		nowTime:    time.Now,
		refreshTTL: defaultRefreshTTL,
		logger:     log.Logger,
		sessions:   make(map[string]refreshSession),
		seeds: []seedUser{
			{
				user:     User{Username: DefaultUsername, Nickname: "kaizen", Email: "kaizen@example.com", FirstName: "Kai", LastName: "Zen", Gender: "other"},
				password: DefaultPassword,
			},
			{
				user:     User{Username: "mentor", Nickname: "mentor", Email: "mentor@example.com", FirstName: "Ada", LastName: "Lean", Gender: "female"},
				password: "mentor123",
			},
		},
	}
	s.tokens = &tokenIssuer{
		secret:  []byte("mock-identity-secret"),
		ttl:     defaultAccessTTL,
		nowTime: func() time.Time { return s.nowTime() },
	}
	for _, opt := range options {
		opt(s)
	}
	if len(s.tokens.secret) == 0 {
		return nil, errors.New("[mockidentity.New] signing secret is required")
	}

	for _, seed := range s.seeds {
		if _, err := s.users.add(seed.user, seed.password); err != nil {
			return nil, err
		}
	}
	s.board = newBoard(func() time.Time { return s.nowTime() })
	if mentor, err := s.users.authenticate("mentor", "mentor123"); err == nil {
		s.board.seed(mentor)
	}

	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post(LoginPath, s.handleLogin)
	r.Post(RefreshPath, s.handleRefresh)
	r.Post(LogoutPath, s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate(false))
		r.Get("/api/posts/", s.handleListPosts)
		r.Get("/api/posts/{id}/", s.handleGetPost)
		r.Get("/api/posts/{id}/comments/", s.handleListComments)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate(true))
		r.Get("/api/me/", s.handleMe)
		r.Post("/api/posts/", s.handleCreatePost)
		r.Patch("/api/posts/{id}/", s.handlePatchPost)
		r.Delete("/api/posts/{id}/", s.handleDeletePost)
		r.Post("/api/posts/{id}/comments/", s.handleAddComment)
		r.Post("/api/posts/{id}/like/", s.handleToggleLike)
		r.Post("/api/posts/{id}/survey/", s.handleSurvey)
		r.Put("/api/posts/{id}/survey/", s.handleSurvey)
		r.Put("/api/comments/{id}/", s.handleUpdateComment)
		r.Delete("/api/comments/{id}/", s.handleDeleteComment)
		r.Get("/api/notifications/", s.handleListNotifications)
		r.Get("/api/notifications/unread_count/", s.handleUnreadCount)
		r.Post("/api/notifications/mark_all_read/", s.handleMarkAllRead)
		r.Post("/api/notifications/{id}/mark_read/", s.handleMarkRead)
		r.Get("/api/categories/", s.handleListCategories)
	})
	return r
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// RefreshCalls returns how many requests reached the refresh endpoint.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// HoldRefresh makes refresh requests block until the returned release
// function is called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.refreshGate == gate {
				s.refreshGate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// FailRefresh makes the refresh endpoint answer with status. Zero restores
// normal behaviour.
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshFail = status
}

// OmitAccessToken makes login and refresh answer 200 without an access token.
func (s *Server) OmitAccessToken(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitAccess = omit
}

// RevokeAccessTokens invalidates every access token issued so far. Refresh
// cookies stay valid.
func (s *Server) RevokeAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// RevokeRefreshTokens forgets every refresh cookie.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]refreshSession)
}

func (s *Server) currentGeneration() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}
