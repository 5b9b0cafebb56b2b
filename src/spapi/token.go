package spapi

import (
	"context"
	"strings"

	"golang.org/x/oauth2"

	"github.com/username/sellersync/backend/src/logger"
)

// TokenSource yields a bearer access token for one outbound operation.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenProvider exchanges the long-lived refresh credential for a short-lived
// bearer token via the OAuth refresh-token grant. Tokens are fetched per
// operation and not cached; retries belong to the orchestrator, not here.
type TokenProvider struct {
	clientID     string
	clientSecret string
	refreshToken string
	tokenURL     string
}

func NewTokenProvider(clientID, clientSecret, refreshToken, tokenURL string) *TokenProvider {
	return &TokenProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		tokenURL:     tokenURL,
	}
}

// AccessToken performs the refresh grant and returns the bearer token.
// Missing credentials fail before the network call.
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	if strings.TrimSpace(p.clientID) == "" || strings.TrimSpace(p.clientSecret) == "" ||
		strings.TrimSpace(p.refreshToken) == "" || strings.TrimSpace(p.tokenURL) == "" {
		return "", &AuthError{Reason: "credentials incomplete", Err: ErrMissingCredentials}
	}

	conf := &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: p.tokenURL},
	}

	// A fresh TokenSource per call keeps the at-most-one-token-per-call
	// contract explicit; the oauth2 package posts the form-encoded
	// refresh-token grant and parses the token response shape for us.
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken})
	tok, err := src.Token()
	if err != nil {
		logger.L.Warn("Token exchange failed", "tokenURL", p.tokenURL, "error", err)
		return "", &AuthError{Reason: "token exchange failed", Err: err}
	}
	if tok.AccessToken == "" {
		return "", &AuthError{Reason: "token endpoint returned empty access_token"}
	}
	return tok.AccessToken, nil
}
