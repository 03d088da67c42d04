// Package sso integrates an external OIDC identity provider. Accounts
// are provisioned on first login from the provider's subject claim.
package sso

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/nferro/atelier/internal/database"
)

const stateTTL = 10 * time.Minute

// UserInfo represents standardized user claims from the OIDC provider.
type UserInfo struct {
	Subject  string // "sub" claim - unique user identifier
	Email    string
	Name     string
	Verified bool // email verification status
}

// Config is the provider configuration, typically sourced from env vars.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       string // space-separated, "openid" implied
}

// Provider handles the OIDC authorization-code flow against a single
// identity provider.
type Provider struct {
	db           *sql.DB
	oidcProvider *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewProvider performs OIDC discovery and builds the OAuth2 config.
func NewProvider(ctx context.Context, db *sql.DB, cfg Config) (*Provider, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("issuer URL is required for OIDC provider")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required for OIDC provider")
	}
	if err := validateOIDCURL(cfg.IssuerURL, "issuer URL"); err != nil {
		return nil, err
	}
	if err := validateOIDCURL(cfg.RedirectURL, "redirect URL"); err != nil {
		return nil, err
	}

	oidcProvider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to perform OIDC discovery for %s: %w", cfg.IssuerURL, err)
	}

	verifier := oidcProvider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
	})

	scopes := []string{oidc.ScopeOpenID}
	if cfg.Scopes != "" {
		for _, scope := range strings.Split(cfg.Scopes, " ") {
			scope = strings.TrimSpace(scope)
			if scope != "" && scope != oidc.ScopeOpenID {
				scopes = append(scopes, scope)
			}
		}
	} else {
		scopes = append(scopes, "profile", "email")
	}

	return &Provider{
		db:           db,
		oidcProvider: oidcProvider,
		verifier:     verifier,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       scopes,
			RedirectURL:  cfg.RedirectURL,
		},
	}, nil
}

// BeginLogin generates state and nonce, persists them for CSRF
// protection, and returns the authorization URL to redirect to.
func (p *Provider) BeginLogin(returnURL string) (string, error) {
	state, err := randomToken()
	if err != nil {
		return "", err
	}
	nonce, err := randomToken()
	if err != nil {
		return "", err
	}

	if err := database.CreateSSOState(p.db, state, nonce, returnURL, stateTTL); err != nil {
		return "", fmt.Errorf("failed to create SSO state: %w", err)
	}

	return p.oauth2Config.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("nonce", nonce),
	), nil
}

// CompleteLogin validates state, exchanges the authorization code, and
// verifies the ID token and nonce. Returns the user claims and the
// return URL captured at login start.
func (p *Provider) CompleteLogin(ctx context.Context, code, state string) (*UserInfo, string, error) {
	if code == "" {
		return nil, "", fmt.Errorf("authorization code is required")
	}
	if state == "" {
		return nil, "", fmt.Errorf("state is required")
	}

	// State is single-use: consuming deletes it
	nonce, returnURL, err := database.ConsumeSSOState(p.db, state)
	if err != nil {
		if err == database.ErrNotFound {
			return nil, "", fmt.Errorf("invalid or expired state")
		}
		return nil, "", fmt.Errorf("failed to validate state: %w", err)
	}

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange code for token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, "", fmt.Errorf("no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to verify ID token: %w", err)
	}

	// Constant-time nonce comparison prevents replay
	if subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(nonce)) != 1 {
		return nil, "", fmt.Errorf("nonce mismatch")
	}

	info, err := userInfoFromIDToken(idToken)
	if err != nil {
		return nil, "", err
	}
	return info, returnURL, nil
}

// userInfoFromIDToken extracts user info from the ID token claims.
func userInfoFromIDToken(idToken *oidc.IDToken) (*UserInfo, error) {
	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}

	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
	}

	name := claims.Name
	if name == "" && (claims.GivenName != "" || claims.FamilyName != "") {
		name = strings.TrimSpace(claims.GivenName + " " + claims.FamilyName)
	}

	return &UserInfo{
		Subject:  claims.Sub,
		Email:    claims.Email,
		Name:     name,
		Verified: claims.EmailVerified,
	}, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// validateOIDCURL requires HTTPS, with HTTP allowed only for localhost
// development.
func validateOIDCURL(urlStr, fieldName string) error {
	if urlStr == "" {
		return nil
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid %s: %v", fieldName, err)
	}

	if parsed.Scheme == "https" {
		return nil
	}

	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
	}

	return fmt.Errorf("%s must use HTTPS scheme (HTTP allowed only for localhost)", fieldName)
}
