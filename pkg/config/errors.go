// Package config provides error definitions for configuration-related errors.
package config

import "errors"

// Configuration validation errors
var (
	// ErrMissingSpotifyClientID is returned when Spotify Client ID is not provided
	ErrMissingSpotifyClientID = errors.New("spotify client ID is required")

	// ErrMissingSpotifyClientSecret is returned when Spotify Client Secret is not provided
	ErrMissingSpotifyClientSecret = errors.New("spotify client secret is required")

	// ErrMissingRedirectURL is returned when the OAuth callback URL is not provided
	ErrMissingRedirectURL = errors.New("spotify redirect URL is required")

	// ErrUnknownSessionStore is returned for a SESSION_STORE other than memory or sqlite
	ErrUnknownSessionStore = errors.New("unknown session store")

	// ErrMissingSessionDBPath is returned when the sqlite session store has no database path
	ErrMissingSessionDBPath = errors.New("session database path is required for the sqlite store")

	// ErrInvalidMergeSize is returned when a page or batch size exceeds provider limits
	ErrInvalidMergeSize = errors.New("invalid merge size")

	// ErrEnvPathTraversal is returned when the .env path escapes the working directory
	ErrEnvPathTraversal = errors.New(".env file path traversal detected")
)
