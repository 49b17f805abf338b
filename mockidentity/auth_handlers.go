package mockidentity

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access    string `json:"access,omitempty"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
}

type refreshResponse struct {
	Access string `json:"access,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.users.authenticate(req.Username, req.Password)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	access, err := s.tokens.issue(user, s.currentGeneration())
	if err != nil {
		s.logger.Err(err).Msg("failed to issue access token")
		writeDetail(w, http.StatusInternalServerError, "token issue failed")
		return
	}

	refreshID := uuid.New().String()
	now := s.nowTime()
	s.mu.Lock()
	s.sessions[refreshID] = refreshSession{userID: user.ID, expiresAt: now.Add(s.refreshTTL)}
	omit := s.omitAccess
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refreshID,
		Path:     RefreshPath,
		MaxAge:   int(s.refreshTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	resp := loginResponse{
		Access:    access,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Gender:    user.Gender,
	}
	if omit {
		resp.Access = ""
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	s.mu.Lock()
	gate := s.refreshGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	failStatus := s.refreshFail
	omit := s.omitAccess
	s.mu.Unlock()
	if failStatus != 0 {
		writeDetail(w, failStatus, "Token is invalid or expired")
		return
	}

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}

	s.mu.Lock()
	session, ok := s.sessions[cookie.Value]
	if ok && !session.expiresAt.After(s.nowTime()) {
		delete(s.sessions, cookie.Value)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}

	user, err := s.users.get(session.userID)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	access, err := s.tokens.issue(user, s.currentGeneration())
	if err != nil {
		s.logger.Err(err).Msg("failed to issue access token")
		writeDetail(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	if omit {
		access = ""
	}
	writeJSON(w, http.StatusOK, refreshResponse{Access: access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshPath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeDetail(w, http.StatusOK, "Successfully logged out and token invalidated.")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromContext(r.Context()))
}
