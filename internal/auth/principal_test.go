package auth

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestFromTokenReadsClaims(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "u1", "name": "Ana"})

	p, err := FromToken(token, "", "")
	if err != nil {
		t.Fatalf("from token: %v", err)
	}
	if p.UserID != "u1" || p.Name != "Ana" || p.Token != token {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestFromTokenExplicitValuesWin(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "u1", "name": "Ana"})

	p, err := FromToken(token, "u9", "")
	if err != nil {
		t.Fatalf("from token: %v", err)
	}
	if p.UserID != "u9" || p.Name != "Ana" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestFromTokenRequiresIdentity(t *testing.T) {
	if _, err := FromToken("", "", ""); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	if _, err := FromToken("opaque-token", "", ""); err == nil {
		t.Fatalf("expected error for unreadable token without user id")
	}
	if p, err := FromToken("opaque-token", "u1", ""); err != nil || p.UserID != "u1" {
		t.Fatalf("expected explicit user id to be enough, got %+v %v", p, err)
	}
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
