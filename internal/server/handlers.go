package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/toozej/fuzic/internal/merge"
	"github.com/toozej/fuzic/internal/playlist"
	"github.com/toozej/fuzic/internal/session"
	"github.com/toozej/fuzic/internal/types"
	"github.com/toozej/fuzic/pkg/config"
)

const stateCookieMaxAge = 600

func (s *Server) handleReady(c *gin.Context) {
	if s.sessions == nil || s.auth == nil || s.playlists == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "service": "fuzic"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "service": "fuzic"})
}

func (s *Server) handleLogin(c *gin.Context) {
	state := session.NewID()
	s.setCookie(c, stateCookie, state, stateCookieMaxAge)
	c.Redirect(http.StatusFound, s.auth.AuthURL(state))
}

func (s *Server) handleCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.Redirect(http.StatusFound, "/#error=invalid_token")
		return
	}

	stored, err := c.Cookie(stateCookie)
	if err != nil || stored != state {
		s.logger.WithField("component", "http").Warn("OAuth state mismatch")
		c.Redirect(http.StatusFound, "/#error=state_mismatch")
		return
	}
	s.setCookie(c, stateCookie, "", -1)

	ctx := c.Request.Context()
	token, err := s.auth.Exchange(ctx, code)
	if err != nil {
		c.Redirect(http.StatusFound, "/#error=invalid_token")
		return
	}

	user, err := s.newClient(token, nil).CurrentUser(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("component", "http").Error("Failed to fetch user after login")
		c.Redirect(http.StatusFound, "/#error=invalid_token")
		return
	}

	sess := &types.Session{ID: session.NewID(), Token: token, UserID: user.ID}
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.logger.WithError(err).WithField("component", "http").Error("Failed to save session")
		c.Redirect(http.StatusFound, "/#error=session_failed")
		return
	}

	s.logger.WithFields(log.Fields{
		"component": "http",
		"user_id":   user.ID,
	}).Info("User logged in")

	s.setCookie(c, sessionCookie, sess.ID, int(s.sessionTTL.Seconds()))
	c.Redirect(http.StatusFound, s.cfg.PostLoginRedirect)
}

func (s *Server) handleLogout(c *gin.Context) {
	sess := c.MustGet(ctxSession).(*types.Session)
	if err := s.sessions.Delete(c.Request.Context(), sess.ID); err != nil {
		s.respondError(c, err, "Failed to log out")
		return
	}
	s.clearCookies(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleUser(c *gin.Context) {
	client := clientFrom(c)
	ctx := c.Request.Context()
	user, err := merge.Do(ctx, s.retrier(client), "current user", func() (*types.User, error) {
		return client.CurrentUser(ctx)
	})
	if err != nil {
		s.respondError(c, err, "Failed to fetch user info")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleLikedSongs(c *gin.Context) {
	offset := max(queryInt(c, "offset", 0), 0)
	limit := playlist.ClampLikedSongsLimit(queryInt(c, "limit", config.MaxSavedTracksPageSize))

	tracks, err := s.playlists.LikedSongs(c.Request.Context(), clientFrom(c), offset, limit)
	if err != nil {
		s.respondError(c, err, "Failed to fetch liked songs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": tracks, "offset": offset, "limit": limit})
}

func (s *Server) handlePlaylists(c *gin.Context) {
	playlists, err := s.playlists.ListPlaylists(c.Request.Context(), clientFrom(c))
	if err != nil {
		s.respondError(c, err, "Failed to fetch playlists")
		return
	}
	playlists = s.searcher.Filter(playlists, c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"items": playlists, "total": len(playlists)})
}

func (s *Server) handleConvertLiked(c *gin.Context) {
	var req types.ConvertLikedRequest
	if !s.bind(c, &req, true) {
		return
	}
	result, err := s.playlists.ConvertLikedSongs(c.Request.Context(), clientFrom(c), req.Name)
	if err != nil {
		s.respondError(c, err, "Failed to convert liked songs to playlist")
		return
	}
	c.JSON(http.StatusOK, playlistResult(result))
}

func (s *Server) handleMerge(c *gin.Context) {
	var req types.MergeRequest
	if !s.bind(c, &req, false) {
		return
	}
	result, err := s.playlists.MergePlaylists(c.Request.Context(), clientFrom(c), req.PlaylistName(), req.SourceIDs())
	if err != nil {
		s.respondError(c, err, "Failed to merge playlists")
		return
	}
	c.JSON(http.StatusOK, playlistResult(result))
}

func (s *Server) handleRemoveArtist(c *gin.Context) {
	var req types.RemoveArtistRequest
	if !s.bind(c, &req, false) {
		return
	}
	removed, err := s.playlists.RemoveArtistTracks(c.Request.Context(), clientFrom(c), req.PlaylistID, req.ArtistName)
	if err != nil {
		s.respondError(c, err, "Failed to remove artist songs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tracksRemoved": removed})
}

func (s *Server) handleImport(c *gin.Context) {
	var req types.ImportRequest
	if !s.bind(c, &req, false) {
		return
	}
	result, err := s.playlists.ImportPlaylist(c.Request.Context(), clientFrom(c), req.PlaylistURL, req.PlaylistName)
	if err != nil {
		s.respondError(c, err, "Failed to import playlist")
		return
	}
	c.JSON(http.StatusOK, playlistResult(result))
}

func (s *Server) handleExport(c *gin.Context) {
	var req types.ExportRequest
	if !s.bind(c, &req, false) {
		return
	}
	if err := s.playlists.ExportPlaylist(c.Request.Context(), clientFrom(c), req.Platform, req.PlaylistID); err != nil {
		s.respondError(c, err, "Failed to export playlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// bind decodes the JSON body into dst. An empty body is accepted when optional.
func (s *Server) bind(c *gin.Context, dst any, optional bool) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	c.JSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: "Invalid request body"})
	return false
}

func (s *Server) respondError(c *gin.Context, err error, fallback string) {
	status, message := statusFor(err, fallback)
	_ = c.Error(err)
	if status == http.StatusUnauthorized {
		s.clearCookies(c)
	}
	c.JSON(status, types.APIResponse{Success: false, Error: message})
}

func (s *Server) retrier(client types.ProviderClient) merge.Retrier {
	return merge.Retrier{Client: client, Logger: s.logger, Recorder: s.metrics}
}

func playlistResult(result *merge.Result) types.PlaylistResult {
	return types.PlaylistResult{Success: true, Playlist: result.Playlist, TracksAdded: result.TracksAdded}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
