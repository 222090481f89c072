package server

import (
	"errors"
	"net/http"

	"github.com/toozej/fuzic/internal/types"
)

const (
	msgNoAccessToken    = "No access token"
	msgAuthExpired      = "Authentication expired. Please log in again."
	msgPermissionDenied = "Permission denied. Please check app permissions."
	msgRateLimited      = "Too many requests. Please slow down."
	msgProviderBusy     = "Spotify is rate limiting requests. Please try again later."
)

// statusFor maps an operation error to an HTTP status and a user-facing message.
// fallback is used for unclassified failures.
func statusFor(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrUnsupportedPlatform),
		errors.Is(err, types.ErrNoTracksFound):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, types.ErrNotAuthenticated):
		return http.StatusUnauthorized, msgNoAccessToken
	case errors.Is(err, types.ErrAuthExpired):
		return http.StatusUnauthorized, msgAuthExpired
	case errors.Is(err, types.ErrPermissionDenied):
		return http.StatusForbidden, msgPermissionDenied
	}

	var providerErr *types.ProviderError
	if errors.As(err, &providerErr) {
		switch providerErr.Status {
		case http.StatusNotFound:
			if providerErr.Message == "" {
				return http.StatusNotFound, "Not found"
			}
			return http.StatusNotFound, providerErr.Message
		case http.StatusTooManyRequests:
			return http.StatusTooManyRequests, msgProviderBusy
		}
	}
	return http.StatusInternalServerError, fallback
}
