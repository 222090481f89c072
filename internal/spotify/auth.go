package spotify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/toozej/fuzic/pkg/config"
)

// Scopes requested at login. Library read and playlist modify cover every dashboard operation.
var Scopes = []string{
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
}

// Authenticator runs the OAuth2 authorization-code flow against Spotify and builds
// per-credential clients.
type Authenticator struct {
	auth   *spotifyauth.Authenticator
	cfg    config.SpotifyConfig
	logger *logrus.Logger
}

// NewAuthenticator creates an Authenticator for the configured Spotify application.
func NewAuthenticator(cfg config.SpotifyConfig, logger *logrus.Logger) (*Authenticator, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(Scopes...),
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
	)

	logger.WithFields(logrus.Fields{
		"component":    "spotify_auth",
		"client_id":    cfg.ClientID,
		"redirect_url": cfg.RedirectURL,
	}).Debug("Created Spotify authenticator")

	return &Authenticator{auth: auth, cfg: cfg, logger: logger}, nil
}

// AuthURL returns the consent page URL carrying the given state.
func (a *Authenticator) AuthURL(state string) string {
	return a.auth.AuthURL(state)
}

// Exchange trades an authorization code for a token.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := a.auth.Exchange(ctx, code)
	if err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"component": "spotify_auth",
			"operation": "exchange",
		}).Error("Failed to exchange authorization code")
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	return token, nil
}

// Refresh obtains a new access token using the token's refresh token. The refresh is
// forced even when the local expiry says the access token is still valid, since the
// provider has the final word on that.
func (a *Authenticator) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}

	stale := *token
	stale.Expiry = time.Now().Add(-time.Minute)

	refreshed, err := a.auth.RefreshToken(ctx, &stale)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = token.RefreshToken
	}

	a.logger.WithFields(logrus.Fields{
		"component": "spotify_auth",
		"operation": "refresh",
		"expiry":    refreshed.Expiry,
	}).Debug("Spotify access token refreshed")

	return refreshed, nil
}

// NewClient returns a Client bound to token. onRefresh, when non-nil, receives every
// token obtained by RefreshCredentials.
func (a *Authenticator) NewClient(token *oauth2.Token, onRefresh func(*oauth2.Token)) *Client {
	opts := []Option{WithOnRefresh(onRefresh)}
	if a.cfg.APIBaseURL != "" {
		opts = append(opts, WithBaseURL(a.cfg.APIBaseURL))
	}
	return NewClient(token, a, a.logger, opts...)
}
