package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/toozej/fuzic/internal/spotify"
)

// newCLIClient builds a Spotify client from the token saved by 'fuzic login'.
// Refreshed tokens are written back to the token file.
func newCLIClient() (*spotify.Client, error) {
	logger := log.StandardLogger()

	auth, err := spotify.NewAuthenticator(conf.Spotify, logger)
	if err != nil {
		return nil, fmt.Errorf("spotify credentials: %w", err)
	}

	tokenPath, err := conf.Spotify.GetTokenFilePath()
	if err != nil {
		return nil, err
	}
	token, err := spotify.LoadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'fuzic login' first)", err)
	}

	return auth.NewClient(token, func(tok *oauth2.Token) {
		if err := spotify.SaveToken(tokenPath, tok); err != nil {
			logger.WithError(err).WithField("token_file", tokenPath).Warn("Failed to save refreshed token")
			return
		}
		logger.WithField("token_file", tokenPath).Debug("Saved refreshed token")
	}), nil
}
