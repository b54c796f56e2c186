package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
	"k8s.io/apimachinery/pkg/util/sets"
)

// DefaultSafetyMargin is subtracted from a credential's expiry before it is
// considered valid, so a token never expires mid-request.
const DefaultSafetyMargin = 2 * time.Minute

// Credential is an OAuth2 access/refresh token pair as persisted between
// invocations.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`

	// RequestedScopes is what the login asked for. Servers may grant less.
	RequestedScopes []string `json:"requested_scopes,omitempty"`
}

// Valid reports whether the access token can be used at now. A zero expiry
// never expires.
func (c Credential) Valid(now time.Time, margin time.Duration) bool {
	if c.AccessToken == "" {
		return false
	}
	if c.Expiry.IsZero() {
		return true
	}
	return now.Before(c.Expiry.Add(-margin))
}

// CanRefresh reports whether a refresh grant can be attempted.
func (c Credential) CanRefresh() bool {
	return c.RefreshToken != ""
}

// HasScopes reports whether every required scope was granted.
func (c Credential) HasScopes(required []string) bool {
	if len(required) == 0 {
		return true
	}
	return sets.New(c.Scopes...).HasAll(required...)
}

// CoversScopes reports whether the login behind c asked for every required
// scope. A narrower grant still covers the request, so a credential is not
// discarded on every run because the server granted less. Credentials saved
// without RequestedScopes fall back to the granted set.
func (c Credential) CoversScopes(required []string) bool {
	if len(required) == 0 {
		return true
	}
	if len(c.RequestedScopes) == 0 {
		return c.HasScopes(required)
	}
	return sets.New(c.RequestedScopes...).HasAll(required...)
}

// Type returns the authorization scheme, normalizing the casing some
// providers use.
func (c Credential) Type() string {
	switch {
	case strings.EqualFold(c.TokenType, "bearer"), c.TokenType == "":
		return "Bearer"
	case strings.EqualFold(c.TokenType, "mac"):
		return "MAC"
	case strings.EqualFold(c.TokenType, "basic"):
		return "Basic"
	}
	return c.TokenType
}

// Subject returns the user identity from the ID token (or a JWT access
// token) without verifying it. It is only used for display.
func (c Credential) Subject() string {
	token := c.IDToken
	if token == "" {
		token = c.AccessToken
	}
	if token == "" {
		return ""
	}
	parser := jwt.Parser{}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return ""
	}
	for _, key := range []string{"email", "preferred_username", "name", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func credentialFromToken(token *oauth2.Token, requested []string) Credential {
	cred := Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}
	if len(requested) > 0 {
		cred.RequestedScopes = append([]string(nil), requested...)
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		cred.IDToken = idToken
	}
	if scope, ok := token.Extra("scope").(string); ok && strings.TrimSpace(scope) != "" {
		cred.Scopes = strings.Fields(scope)
	} else if len(requested) > 0 {
		cred.Scopes = append([]string(nil), requested...)
	}
	return cred
}
