package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrAuthFailed means the service did not accept the credentials.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrAuthExpired means the bearer token is past its exp claim.
	ErrAuthExpired = errors.New("session expired")
	// ErrNotLoggedIn means no bearer token is held.
	ErrNotLoggedIn = errors.New("not logged in")
)

// BasicAuthHeader builds the Authorization header used by the login request.
func BasicAuthHeader(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// TokenExpiry decodes the exp claim of a JSON web token without verifying its
// signature; the service verifies tokens, the client only needs the expiry.
// A zero time is returned when the token has no exp claim.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("decode token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// Expired reports whether token should no longer be sent. Tokens without an
// exp claim never expire; tokens that cannot be decoded are treated as expired.
func Expired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	exp, err := TokenExpiry(token)
	if err != nil {
		return true
	}
	if exp.IsZero() {
		return false
	}
	return now.After(exp)
}
