package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by the services and the HTTP layer.
var (
	// ErrValidation is returned when caller input is rejected before any provider call.
	ErrValidation = errors.New("validation failed")

	// ErrAuthExpired is returned when credentials are expired and could not be refreshed.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrPermissionDenied is returned when the granted scopes do not allow the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNoTracksFound is returned when the sources contain no usable tracks.
	ErrNoTracksFound = errors.New("no tracks found in the selected sources")

	// ErrProviderWrite is returned when creating a playlist or adding tracks fails.
	ErrProviderWrite = errors.New("failed to write playlist")

	// ErrInvalidPlaylistResponse is returned when a created playlist lacks an id or name.
	ErrInvalidPlaylistResponse = errors.New("invalid playlist response")

	// ErrNotAuthenticated is returned when a request carries no session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnsupportedPlatform is returned for playlist URLs of platforms without an integration.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrSessionNotFound is returned by session stores for unknown or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError wraps ErrValidation with the offending field.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ProviderError is a failed Spotify Web API call.
type ProviderError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("spotify %s: %d %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("spotify %s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is maps HTTP 401 to ErrAuthExpired and 403 to ErrPermissionDenied.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrAuthExpired:
		return e.Status == http.StatusUnauthorized
	case ErrPermissionDenied:
		return e.Status == http.StatusForbidden
	}
	return false
}
