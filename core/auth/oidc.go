package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var ErrOauthState = errors.New("oauth state mismatch")

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

// OauthProvider is an OpenID Connect identity provider used for social
// login.
type OauthProvider struct {
	Name     string
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// Identity is what an identity provider asserts about a user.
type Identity struct {
	Email    string
	Verified bool
	Metadata Metadata
}

// MakeProviders runs discovery for every configured provider. Providers
// without a client id are skipped.
func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (map[string]*OauthProvider, error) {
	provs := make(map[string]*OauthProvider, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.Client == "" {
			continue
		}

		p, err := oidc.NewProvider(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider %s: %w", cfg.Name, err)
		}

		provs[cfg.Name] = &OauthProvider{
			Name: cfg.Name,
			oauth: oauth2.Config{
				ClientID:     cfg.Client,
				ClientSecret: cfg.Secret,
				RedirectURL:  cfg.RedirectURL,
				Endpoint:     p.Endpoint(),
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
			verifier: p.Verifier(&oidc.Config{ClientID: cfg.Client}),
		}
	}
	return provs, nil
}

func (p *OauthProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a verified identity.
func (p *OauthProvider) Exchange(ctx context.Context, code string) (Identity, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchanging code: %w", err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok {
		return Identity{}, errors.New("no id_token in token response")
	}

	idt, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("verifying id token: %w", err)
	}

	var c struct {
		Email      string `json:"email"`
		Verified   bool   `json:"email_verified"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := idt.Claims(&c); err != nil {
		return Identity{}, fmt.Errorf("decoding id token claims: %w", err)
	}

	return Identity{
		Email:    c.Email,
		Verified: c.Verified,
		Metadata: Metadata{FirstName: c.GivenName, LastName: c.FamilyName},
	}, nil
}
