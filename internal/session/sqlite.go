package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/toozej/fuzic/internal/types"
	"github.com/toozej/fuzic/pkg/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL DEFAULT '',
	token      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

// SQLiteStore persists sessions in a SQLite database so they survive restarts.
// A session expires ttl after its last save.
type SQLiteStore struct {
	db     *sql.DB
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, ttl time.Duration, logger *log.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, config.ErrMissingSessionDBPath
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	// sqlite serialises writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}

	logger.WithFields(log.Fields{
		"component": "session_store",
		"store":     StoreSQLite,
		"path":      path,
		"ttl":       ttl.String(),
	}).Info("Using SQLite session store")

	return &SQLiteStore{db: db, ttl: ttl, logger: logger, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.Session, error) {
	var (
		session            types.Session
		rawToken           string
		created, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&session.ID, &session.UserID, &rawToken, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session.CreatedAt = time.UnixMilli(created)
	session.UpdatedAt = time.UnixMilli(updatedAt)
	if s.expired(session.UpdatedAt) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			s.logger.WithError(err).WithField("component", "session_store").Warn("Failed to delete expired session")
		}
		return nil, types.ErrSessionNotFound
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(rawToken), &tok); err != nil {
		return nil, fmt.Errorf("failed to decode session token: %w", err)
	}
	session.Token = &tok
	return &session, nil
}

func (s *SQLiteStore) Save(ctx context.Context, session *types.Session) error {
	if session == nil || session.ID == "" {
		return types.ValidationError("session id is required")
	}
	stamp(session, s.now())

	rawToken, err := json.Marshal(session.Token)
	if err != nil {
		return fmt.Errorf("failed to encode session token: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO sessions (id, user_id, token, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, token = excluded.token, updated_at = excluded.updated_at`,
		session.ID, session.UserID, string(rawToken), session.CreatedAt.UnixMilli(), session.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Prune deletes every expired session and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.ttl).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.WithFields(log.Fields{
			"component": "session_store",
			"pruned":    n,
		}).Info("Pruned expired sessions")
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) expired(updatedAt time.Time) bool {
	return s.ttl > 0 && s.now().Sub(updatedAt) > s.ttl
}
