// Package auth describes who is playing. The backend verifies tokens; the
// client only reads the identity claims it needs to render the duel.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoIdentity is returned when neither the token nor the config names a user.
var ErrNoIdentity = errors.New("no user identity: set user.id or use a token with a sub claim")

// Principal is the signed-in player, created at sign-in and passed explicitly
// to whatever needs it.
type Principal struct {
	UserID string
	Name   string
	Token  string
}

// FromToken reads sub and name from the bearer token without verifying it.
// Explicit userID/name values win over the claims.
func FromToken(token, userID, name string) (Principal, error) {
	p := Principal{UserID: userID, Name: name, Token: token}
	if token != "" && (p.UserID == "" || p.Name == "") {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			if p.UserID == "" {
				return p, fmt.Errorf("read token claims: %w", err)
			}
		} else {
			if p.UserID == "" {
				sub, _ := claims.GetSubject()
				p.UserID = sub
			}
			if p.Name == "" {
				if n, ok := claims["name"].(string); ok {
					p.Name = n
				}
			}
		}
	}
	if p.UserID == "" {
		return p, ErrNoIdentity
	}
	return p, nil
}
