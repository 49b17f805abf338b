package mockidentity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenIssuer creates and validates HS256 access tokens.
type tokenIssuer struct {
	secret  []byte
	ttl     time.Duration
	nowTime func() time.Time
}

// issue creates an access token for user. generation ties the token to the
// server's current revocation generation.
func (ti *tokenIssuer) issue(user *User, generation int64) (string, error) {
	now := ti.nowTime()
	claims := jwtlib.MapClaims{
		"token_type": "access",
		"sub":        strconv.Itoa(user.ID),
		"user_id":    user.ID,
		"username":   user.Username,
		"iat":        now.Unix(),
		"exp":        now.Add(ti.ttl).Unix(),
		"jti":        uuid.New().String(),
		"gen":        generation,
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}

// validate checks signature, expiry and generation and returns the user id.
func (ti *tokenIssuer) validate(raw string, generation int64) (int, error) {
	claims := jwtlib.MapClaims{}
	_, err := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(ti.nowTime),
		jwtlib.WithExpirationRequired(),
	).ParseWithClaims(raw, claims, func(*jwtlib.Token) (interface{}, error) {
		return ti.secret, nil
	})
	if err != nil {
		return 0, err
	}
	if gen, ok := claims["gen"].(float64); !ok || int64(gen) != generation {
		return 0, errors.New("token revoked")
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, errors.New("token has no user_id")
	}
	return int(userID), nil
}
