package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of a JWT bearer token without
// verifying its signature. ok is false when the token carries no exp.
// Opaque (non-JWT) tokens return ErrTokenMalformed.
func TokenExpiry(token string) (exp time.Time, ok bool, err error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false, nil
	}
	return claims.ExpiresAt.Time, true, nil
}

// TokenExpired reports whether a JWT bearer token has expired at now.
// Tokens without an exp claim and opaque tokens are never reported
// expired; the dashboard decides for those.
func TokenExpired(token string, now time.Time) bool {
	exp, ok, err := TokenExpiry(token)
	if err != nil || !ok {
		return false
	}
	return !now.Before(exp)
}
