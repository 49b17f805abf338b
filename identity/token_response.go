package identity

import "encoding/json"

// LoginRequest is the body of the login call.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by the login and refresh endpoints.
//
// The login response merges the user profile into the same object as the
// access token, e.g.
//
//	{"access": "eyJ...", "username": "ana", "email": "ana@example.com", ...}
//
// Refresh responses carry only "access". The refresh credential itself never
// appears in the body: it travels as an HTTP-only cookie.
type TokenResponse struct {
	// Access is the short-lived bearer credential. Empty when the server
	// answered 2xx without a usable token.
	Access string `json:"access"`

	// Data is the full response body, passed through untouched.
	Data json.RawMessage `json:"-"`
}

func parseTokenResponse(data json.RawMessage) *TokenResponse {
	resp := &TokenResponse{Data: data}
	if len(data) == 0 {
		return resp
	}
	if err := json.Unmarshal(data, resp); err != nil {
		// A body that is JSON but not an object still counts as a response
		// without a token.
		resp.Access = ""
	}
	return resp
}
