package idp

import (
	"context"
	"errors"

	"github.com/dhruvspathak/Songify/internal/validate"
	"golang.org/x/oauth2"
)

var (
	// ErrTokenExpired is returned when the resource API rejects the access
	// token with 401. Callers should ask the client to refresh.
	ErrTokenExpired = errors.New("access token expired or revoked")

	// ErrAuthHostMismatch is returned when the built authorization URL does
	// not point at the expected provider host. It indicates misconfiguration.
	ErrAuthHostMismatch = errors.New("authorization URL host mismatch")
)

// User is the subset of the provider profile exposed to the frontend.
type User struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"display_name"`
	Email        string            `json:"email,omitempty"`
	Country      string            `json:"country,omitempty"`
	Product      string            `json:"product,omitempty"`
	URI          string            `json:"uri,omitempty"`
	ExternalURLs map[string]string `json:"external_urls,omitempty"`
	Images       []Image           `json:"images,omitempty"`
	Followers    *Followers        `json:"followers,omitempty"`
}

type Image struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

type Followers struct {
	Total int `json:"total"`
}

// EndpointProbe is the outcome of calling one resource endpoint with the
// user's token.
type EndpointProbe struct {
	Endpoint string `json:"endpoint"`
	Path     string `json:"path"`
	Success  bool   `json:"success"`
	Status   int    `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RefreshResult carries a refreshed token and whether the provider rotated
// the refresh token.
type RefreshResult struct {
	Token   *oauth2.Token
	Rotated bool
}

// Provider abstracts the identity provider operations the auth flow needs.
type Provider interface {
	// AuthURL builds the authorization redirect for state.
	AuthURL(state string) (string, error)

	// ExchangeCode redeems an authorization code.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)

	// Refresh redeems a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)

	// CurrentUser fetches the profile for accessToken.
	CurrentUser(ctx context.Context, accessToken string) (*User, error)

	// ProbeEndpoints reports which resource endpoints accessToken can reach.
	ProbeEndpoints(ctx context.Context, accessToken string) ([]EndpointProbe, error)

	// Scopes returns the requested scopes.
	Scopes() []string
}

// TokenPayload extracts the raw token response fields for validation.
// expires_in is read from the raw response when available so that values
// x/oauth2 would silently drop still reach the validator.
func TokenPayload(tok *oauth2.Token) validate.TokenPayload {
	p := validate.TokenPayload{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}

	if raw := tok.Extra("expires_in"); raw != nil {
		p.ExpiresIn = raw
	} else if tok.ExpiresIn > 0 {
		p.ExpiresIn = tok.ExpiresIn
	}
	return p
}
