// Package server exposes the playlist operations as a JSON API behind Spotify
// OAuth sessions.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/toozej/fuzic/internal/playlist"
	"github.com/toozej/fuzic/internal/search"
	"github.com/toozej/fuzic/internal/types"
	"github.com/toozej/fuzic/pkg/config"
)

const shutdownTimeout = 10 * time.Second

// Authenticator runs the OAuth2 authorization-code flow.
type Authenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// ClientFactory binds a provider client to a token. onRefresh receives every token
// the client obtains by refreshing.
type ClientFactory func(token *oauth2.Token, onRefresh func(*oauth2.Token)) types.ProviderClient

// Deps are the collaborators the server dispatches to.
type Deps struct {
	Auth       Authenticator
	NewClient  ClientFactory
	Sessions   types.SessionStore
	SessionTTL time.Duration
	Playlists  *playlist.PlaylistService
	Searcher   *search.PlaylistSearcher
	Metrics    *Metrics
}

// Server is the Fuzic HTTP API.
type Server struct {
	cfg        config.ServerConfig
	logger     *log.Logger
	auth       Authenticator
	newClient  ClientFactory
	sessions   types.SessionStore
	sessionTTL time.Duration
	playlists  *playlist.PlaylistService
	searcher   *search.PlaylistSearcher
	metrics    *Metrics
	limiters   *limiterPool
	engine     *gin.Engine
	server     *http.Server
}

// New builds the gin engine and the underlying http.Server.
func New(cfg config.ServerConfig, deps Deps, logger *log.Logger) *Server {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Searcher == nil {
		deps.Searcher = search.NewPlaylistSearcher(logger)
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		auth:       deps.Auth,
		newClient:  deps.NewClient,
		sessions:   deps.Sessions,
		sessionTTL: deps.SessionTTL,
		playlists:  deps.Playlists,
		searcher:   deps.Searcher,
		metrics:    deps.Metrics,
		limiters:   newLimiterPool(cfg.RateLimit, cfg.RateBurst),
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), accessLog(logger), s.metrics.middleware(), cors(cfg.AllowedOrigins))
	s.routes()

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "fuzic"})
	})
	r.GET("/readyz", s.handleReady)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	r.GET("/login", s.handleLogin)
	r.GET("/callback", s.handleCallback)

	api := r.Group("/api", s.requireSession())
	api.POST("/logout", s.handleLogout)
	api.GET("/user", s.handleUser)
	api.GET("/me", s.handleUser)
	api.GET("/liked-songs", s.handleLikedSongs)
	api.GET("/playlists", s.handlePlaylists)

	ops := api.Group("", s.rateLimit())
	ops.POST("/convert-liked-to-playlist", s.handleConvertLiked)
	ops.POST("/merge-playlists", s.handleMerge)
	ops.POST("/remove-artist-songs", s.handleRemoveArtist)
	ops.POST("/import-playlist", s.handleImport)
	ops.POST("/export-playlist", s.handleExport)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithFields(log.Fields{
		"component":  "http",
		"addr":       s.server.Addr,
		"production": s.cfg.Production,
	}).Info("Starting HTTP server")

	go func() {
		<-ctx.Done()
		s.logger.WithField("component", "http").Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Failed to shutdown HTTP server gracefully")
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}
