package auth

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jrsteele09/kaizen-client/internal/utils"
)

// DefaultStorageKey is the KV key the session record is persisted under.
const DefaultStorageKey = "auth-storage"

// Record is the session as held in memory and persisted to the KV store.
// IsAuthenticated implies a non-empty AccessToken.
type Record struct {
	IsAuthenticated bool    `json:"isAuthenticated"`
	AccessToken     *string `json:"accessToken"`
	// AccessTokenExpiration is epoch milliseconds, already reduced by the skew.
	AccessTokenExpiration *int64          `json:"accessTokenExpiration"`
	User                  json.RawMessage `json:"user"`  // Last identity payload from login, passed through as is
	Error                 *string         `json:"error"` // Last human readable failure
}

// Profile is the user part of the login response.
type Profile struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
}

// normalize folds the shapes older or partial records may have into the
// canonical one: a JSON null user and an empty token both mean absent.
func (r *Record) normalize() {
	if bytes.Equal(bytes.TrimSpace(r.User), []byte("null")) {
		r.User = nil
	}
	if utils.Value(r.AccessToken) == "" {
		r.AccessToken = nil
		r.IsAuthenticated = false
	}
}

// Token returns the access token or "".
func (r Record) Token() string {
	return utils.Value(r.AccessToken)
}

// Expiration returns the skewed expiration, or the zero time when unknown.
func (r Record) Expiration() time.Time {
	if r.AccessTokenExpiration == nil {
		return time.Time{}
	}
	return time.UnixMilli(*r.AccessTokenExpiration)
}

// Profile decodes the user payload.
func (r Record) Profile() (*Profile, bool) {
	if len(r.User) == 0 {
		return nil, false
	}
	var p Profile
	if err := json.Unmarshal(r.User, &p); err != nil {
		return nil, false
	}
	return &p, true
}

// clone returns a copy that shares nothing with r.
func (r Record) clone() Record {
	out := r
	if r.AccessToken != nil {
		out.AccessToken = utils.Ptr(*r.AccessToken)
	}
	if r.AccessTokenExpiration != nil {
		out.AccessTokenExpiration = utils.Ptr(*r.AccessTokenExpiration)
	}
	if r.Error != nil {
		out.Error = utils.Ptr(*r.Error)
	}
	if r.User != nil {
		out.User = append(json.RawMessage(nil), r.User...)
	}
	return out
}

// LoginResult is what Login reports to the caller. Data is the server payload
// on success; Error is the message on failure.
type LoginResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type LogoutResult struct {
	Success bool `json:"success"`
}
