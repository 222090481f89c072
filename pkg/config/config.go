// Package config provides secure configuration management for the fuzic application.
//
// Configuration is loaded from environment variables and an optional .env file in the
// current working directory, using github.com/caarlos0/env for parsing and
// github.com/joho/godotenv for .env loading. Environment variables take priority over
// the .env file, which takes priority over defaults.
//
// Example usage:
//
//	conf := config.GetEnvVars()
//	fmt.Printf("Listening on %s\n", conf.Server.Address())
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Provider limits for the Spotify Web API.
const (
	MaxSavedTracksPageSize = 50
	MaxPlaylistPageSize    = 100
	MaxBatchSize           = 100
)

// Config represents the main application configuration with nested service configurations.
type Config struct {
	Spotify SpotifyConfig `envPrefix:"SPOTIFY_"`
	Server  ServerConfig  `envPrefix:"SERVER_"`
	Session SessionConfig `envPrefix:"SESSION_"`
	Merge   MergeConfig   `envPrefix:"MERGE_"`
}

// SpotifyConfig represents the configuration for Spotify API integration.
type SpotifyConfig struct {
	// ClientID is the Spotify application client ID.
	ClientID string `env:"CLIENT_ID"`

	// ClientSecret is the Spotify application client secret.
	ClientSecret string `env:"CLIENT_SECRET"` // #nosec G117 -- OAuth client secret, expected in config

	// RedirectURL is the callback URL for OAuth authentication.
	RedirectURL string `env:"REDIRECT_URI" envDefault:"http://127.0.0.1:3000/callback"`

	// APIBaseURL overrides the Web API base URL. Empty means the library default.
	APIBaseURL string `env:"API_BASE_URL"`

	// TokenFilePath is where the CLI stores its Spotify token.
	TokenFilePath string `env:"TOKEN_FILE_PATH" envDefault:"~/.config/fuzic/spotify_token.json"`
}

// ServerConfig represents the HTTP API server configuration.
type ServerConfig struct {
	Host              string        `env:"HOST" envDefault:"127.0.0.1"`
	Port              int           `env:"PORT" envDefault:"3000"`
	Production        bool          `env:"PRODUCTION" envDefault:"false"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	PostLoginRedirect string        `env:"POST_LOGIN_REDIRECT" envDefault:"/dashboard"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"120s"`
	LogFormat         string        `env:"LOG_FORMAT" envDefault:"text"`
	RateLimit         float64       `env:"RATE_LIMIT" envDefault:"1"`
	RateBurst         int           `env:"RATE_BURST" envDefault:"3"`
}

// SessionConfig selects and tunes the browser session store.
type SessionConfig struct {
	// Store is either "memory" or "sqlite".
	Store      string        `env:"STORE" envDefault:"memory"`
	DBPath     string        `env:"DB_PATH" envDefault:"fuzic-sessions.db"`
	TTL        time.Duration `env:"TTL" envDefault:"720h"`
	MaxEntries int           `env:"MAX_ENTRIES" envDefault:"10000"`
}

// MergeConfig holds the page and batch sizes used when reading and writing tracks.
type MergeConfig struct {
	SavedTracksPageSize int `env:"SAVED_TRACKS_PAGE_SIZE" envDefault:"50"`
	PlaylistPageSize    int `env:"PLAYLIST_PAGE_SIZE" envDefault:"100"`
	BatchSize           int `env:"BATCH_SIZE" envDefault:"100"`
}

// DefaultMergeConfig returns the provider maximums.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		SavedTracksPageSize: MaxSavedTracksPageSize,
		PlaylistPageSize:    MaxPlaylistPageSize,
		BatchSize:           MaxBatchSize,
	}
}

// WithDefaults returns a copy of c with every non-positive size replaced by its
// provider maximum.
func (c MergeConfig) WithDefaults() MergeConfig {
	defaults := DefaultMergeConfig()
	if c.SavedTracksPageSize <= 0 {
		c.SavedTracksPageSize = defaults.SavedTracksPageSize
	}
	if c.PlaylistPageSize <= 0 {
		c.PlaylistPageSize = defaults.PlaylistPageSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}

// GetEnvVars loads and returns the application configuration from environment
// variables and the .env file in the current directory.
//
// The .env path is resolved against the working directory and rejected if it escapes
// it. The function terminates the program with os.Exit(1) when the directory cannot be
// read, the .env file cannot be parsed, parsing fails, or validation fails.
func GetEnvVars() Config {
	conf, err := Load()
	if err != nil {
		fmt.Printf("Configuration error: %s\n", err)
		fmt.Println("Please check your configuration and try again.")
		os.Exit(1)
	}
	return conf
}

// Load is GetEnvVars without the process exit, returning any error instead.
func Load() (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("getting current working directory: %w", err)
	}

	envPath := filepath.Join(cwd, ".env")

	// Ensure the path is within our expected directory (prevent traversal)
	cleanEnvPath, err := filepath.Abs(envPath)
	if err != nil {
		return Config{}, fmt.Errorf("resolving .env file path: %w", err)
	}
	cleanCwd, err := filepath.Abs(cwd)
	if err != nil {
		return Config{}, fmt.Errorf("resolving current directory: %w", err)
	}
	relPath, err := filepath.Rel(cleanCwd, cleanEnvPath)
	if err != nil || strings.Contains(relPath, "..") {
		return Config{}, ErrEnvPathTraversal
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return Config{}, fmt.Errorf("loading .env file: %w", err)
		}
	}

	var conf Config
	if err := env.Parse(&conf); err != nil {
		return Config{}, fmt.Errorf("parsing configuration from environment: %w", err)
	}

	if err := validateConfig(&conf); err != nil {
		return Config{}, err
	}

	return conf, nil
}

// Address returns the server address
func (s ServerConfig) Address() string {
	if s.Host == "" {
		s.Host = "127.0.0.1"
	}
	if s.Port == 0 {
		s.Port = 3000
	}
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetTokenFilePath returns the resolved token file path, handling tilde expansion
// and ensuring the directory exists.
func (s SpotifyConfig) GetTokenFilePath() (string, error) {
	tokenPath := s.TokenFilePath

	if strings.HasPrefix(tokenPath, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		tokenPath = filepath.Join(homeDir, tokenPath[2:])
	}

	absPath, err := filepath.Abs(tokenPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	tokenDir := filepath.Dir(absPath)
	if err := os.MkdirAll(tokenDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create token directory %s: %w", tokenDir, err)
	}

	return absPath, nil
}

// RequireCredentials reports whether the OAuth client settings needed to talk to
// Spotify are present.
func (s SpotifyConfig) RequireCredentials() error {
	switch {
	case s.ClientID == "":
		return ErrMissingSpotifyClientID
	case s.ClientSecret == "":
		return ErrMissingSpotifyClientSecret
	case s.RedirectURL == "":
		return ErrMissingRedirectURL
	}
	return nil
}

// validateConfig validates the configuration
func validateConfig(conf *Config) error {
	var errors []string

	if conf.Server.Port < 1 || conf.Server.Port > 65535 {
		errors = append(errors, "server port must be between 1 and 65535")
	}
	if conf.Server.RateLimit <= 0 {
		errors = append(errors, "server rate limit must be greater than 0")
	}
	if conf.Server.RateBurst < 1 {
		errors = append(errors, "server rate burst must be at least 1")
	}
	switch conf.Server.LogFormat {
	case "text", "json":
	default:
		errors = append(errors, "server log format must be text or json")
	}

	// Spotify credentials only warn; `fuzic version` and `fuzic man` work without them.
	if conf.Spotify.ClientID == "" {
		fmt.Println("Warning: SPOTIFY_CLIENT_ID is not set. The application will not be able to connect to Spotify.")
		fmt.Println("Please set your Spotify credentials to use the application.")
	}
	if conf.Spotify.ClientSecret == "" {
		fmt.Println("Warning: SPOTIFY_CLIENT_SECRET is not set. The application will not be able to connect to Spotify.")
	}

	switch conf.Session.Store {
	case "memory":
	case "sqlite":
		if conf.Session.DBPath == "" {
			errors = append(errors, ErrMissingSessionDBPath.Error())
		}
	default:
		errors = append(errors, fmt.Sprintf("%s: %q", ErrUnknownSessionStore, conf.Session.Store))
	}
	if conf.Session.TTL <= 0 {
		errors = append(errors, "session TTL must be greater than 0")
	}
	if conf.Session.MaxEntries < 1 {
		errors = append(errors, "session max entries must be at least 1")
	}

	if err := conf.Merge.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Validate checks the sizes against the provider limits.
func (m MergeConfig) Validate() error {
	switch {
	case m.SavedTracksPageSize < 1 || m.SavedTracksPageSize > MaxSavedTracksPageSize:
		return fmt.Errorf("%w: saved tracks page size must be between 1 and %d", ErrInvalidMergeSize, MaxSavedTracksPageSize)
	case m.PlaylistPageSize < 1 || m.PlaylistPageSize > MaxPlaylistPageSize:
		return fmt.Errorf("%w: playlist page size must be between 1 and %d", ErrInvalidMergeSize, MaxPlaylistPageSize)
	case m.BatchSize < 1 || m.BatchSize > MaxBatchSize:
		return fmt.Errorf("%w: batch size must be between 1 and %d", ErrInvalidMergeSize, MaxBatchSize)
	}
	return nil
}
