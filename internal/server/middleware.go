package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/toozej/fuzic/internal/types"
)

const (
	sessionCookie = "fuzic_session"
	stateCookie   = "spotify_auth_state"

	ctxSession = "fuzic.session"
	ctxClient  = "fuzic.client"

	tokenSaveTimeout = 5 * time.Second
)

// accessLog writes one structured log line per request.
func accessLog(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(log.Fields{
			"component":  "http",
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}

// cors allows credentialed requests from the configured origins.
func cors(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && slices.Contains(allowed, origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requireSession resolves the session cookie to a provider client bound to the
// session's token. An expired token is refreshed before the handler runs.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.APIResponse{Success: false, Error: msgNoAccessToken})
			return
		}

		ctx := c.Request.Context()
		session, err := s.sessions.Get(ctx, id)
		if errors.Is(err, types.ErrSessionNotFound) || (err == nil && session.Token == nil) {
			s.clearCookies(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.APIResponse{Success: false, Error: msgNoAccessToken})
			return
		}
		if err != nil {
			s.logger.WithError(err).WithField("component", "http").Error("Failed to load session")
			c.AbortWithStatusJSON(http.StatusInternalServerError, types.APIResponse{Success: false, Error: "Failed to load session"})
			return
		}

		client := s.newClient(session.Token, s.persistToken(session))
		if !session.Token.Valid() && session.Token.RefreshToken != "" {
			if err := client.RefreshCredentials(ctx); err != nil {
				s.logger.WithError(err).WithFields(log.Fields{
					"component": "http",
					"user_id":   session.UserID,
				}).Warn("Session token refresh failed, signing out")
				if delErr := s.sessions.Delete(ctx, session.ID); delErr != nil {
					s.logger.WithError(delErr).Warn("Failed to delete session")
				}
				s.clearCookies(c)
				c.AbortWithStatusJSON(http.StatusUnauthorized, types.APIResponse{Success: false, Error: msgAuthExpired})
				return
			}
		}

		c.Set(ctxSession, session)
		c.Set(ctxClient, client)
		c.Next()
	}
}

// persistToken returns the refresh callback that writes rotated tokens back to the
// session store.
func (s *Server) persistToken(session *types.Session) func(*oauth2.Token) {
	return func(tok *oauth2.Token) {
		ctx, cancel := context.WithTimeout(context.Background(), tokenSaveTimeout)
		defer cancel()

		updated := *session
		updated.Token = tok
		if err := s.sessions.Save(ctx, &updated); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"component": "http",
				"user_id":   session.UserID,
			}).Error("Failed to persist refreshed token")
			return
		}
		session.Token = tok
	}
}

// rateLimit rejects requests beyond the per-session budget.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if session, ok := c.Get(ctxSession); ok {
			key = session.(*types.Session).ID
		}
		if !s.limiters.allow(key) {
			s.metrics.RateLimitedRequests.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, types.APIResponse{Success: false, Error: msgRateLimited})
			return
		}
		c.Next()
	}
}

func clientFrom(c *gin.Context) types.ProviderClient {
	return c.MustGet(ctxClient).(types.ProviderClient)
}

func (s *Server) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", s.cfg.Production, true)
}

func (s *Server) clearCookies(c *gin.Context) {
	s.setCookie(c, sessionCookie, "", -1)
	s.setCookie(c, stateCookie, "", -1)
}
