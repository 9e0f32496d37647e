package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("dashboard-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	token := signedToken(t, jwt.RegisteredClaims{
		Subject:   "device-7",
		ExpiresAt: jwt.NewNumericDate(exp),
	})

	got, ok, err := TokenExpiry(token)
	if err != nil {
		t.Fatalf("TokenExpiry() error = %v", err)
	}
	if !ok || !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, %v; want %v, true", got, ok, exp)
	}
}

func TestTokenExpiry_NoExp(t *testing.T) {
	token := signedToken(t, jwt.RegisteredClaims{Subject: "device-7"})

	_, ok, err := TokenExpiry(token)
	if err != nil {
		t.Fatalf("TokenExpiry() error = %v", err)
	}
	if ok {
		t.Error("TokenExpiry() ok = true for token without exp")
	}
}

func TestTokenExpiry_Opaque(t *testing.T) {
	_, _, err := TokenExpiry("c2VudGluZWwtb3BhcXVlLXRva2Vu")
	if !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("TokenExpiry() error = %v, want ErrTokenMalformed", err)
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"expired", signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))}), true},
		{"expires now", signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now)}), true},
		{"valid", signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}), false},
		{"no exp", signedToken(t, jwt.RegisteredClaims{Subject: "d"}), false},
		{"opaque", "opaque-token", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenExpired(tt.token, now); got != tt.want {
				t.Errorf("TokenExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}
