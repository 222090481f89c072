// Package session persists browser sessions that bind a cookie to a Spotify token.
package session

import (
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/toozej/fuzic/internal/types"
	"github.com/toozej/fuzic/pkg/config"
)

// Supported values of SESSION_STORE.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// New returns the session store selected by cfg.Store.
func New(cfg config.SessionConfig, logger *log.Logger) (types.SessionStore, error) {
	switch cfg.Store {
	case "", StoreMemory:
		logger.WithFields(log.Fields{
			"component":   "session_store",
			"store":       StoreMemory,
			"max_entries": cfg.MaxEntries,
			"ttl":         cfg.TTL.String(),
		}).Info("Using in-memory session store")
		return NewMemoryStore(cfg.MaxEntries, cfg.TTL), nil
	case StoreSQLite:
		return NewSQLiteStore(cfg.DBPath, cfg.TTL, logger)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownSessionStore, cfg.Store)
	}
}

// NewID returns a random session identifier.
func NewID() string {
	return uuid.NewString()
}
