package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/toozej/fuzic/internal/types"
	"github.com/toozej/fuzic/pkg/useragent"
)

const (
	trackURIPrefix    = "spotify:track:"
	playlistURIPrefix = "spotify:playlist:"
)

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different Web API root, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		c.baseURL = baseURL
	}
}

// WithOnRefresh registers a callback receiving every refreshed token.
func WithOnRefresh(fn func(*oauth2.Token)) Option {
	return func(c *Client) {
		c.onRefresh = fn
	}
}

// Client implements types.ProviderClient for a single credential. Tokens are never
// refreshed implicitly: an expired access token surfaces as HTTP 401 and the caller
// decides whether to call RefreshCredentials.
type Client struct {
	api       *spotify.Client
	token     *oauth2.Token
	mu        sync.RWMutex
	refresher Refresher
	onRefresh func(*oauth2.Token)
	baseURL   string
	logger    *logrus.Logger
}

var _ types.ProviderClient = (*Client)(nil)

// NewClient creates a Client bound to token.
func NewClient(token *oauth2.Token, refresher Refresher, logger *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		token:     token,
		refresher: refresher,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.api = c.newAPI(token)
	return c
}

func (c *Client) newAPI(token *oauth2.Token) *spotify.Client {
	// StaticTokenSource keeps oauth2 from refreshing behind our back.
	base := &http.Client{Transport: useragent.Wrap(http.DefaultTransport)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	httpClient.Timeout = 30 * time.Second

	var opts []spotify.ClientOption
	if c.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(c.baseURL))
	}
	return spotify.New(httpClient, opts...)
}

func (c *Client) client() *spotify.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.api
}

// RefreshCredentials swaps in a freshly refreshed access token. Any failure is
// reported as types.ErrAuthExpired.
func (c *Client) RefreshCredentials(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refresher == nil || c.token == nil || c.token.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token available", types.ErrAuthExpired)
	}

	token, err := c.refresher.Refresh(ctx, c.token)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"component": "spotify_client",
			"operation": "refresh_credentials",
		}).Warn("Failed to refresh Spotify credentials")
		return fmt.Errorf("%w: %v", types.ErrAuthExpired, err)
	}

	c.token = token
	c.api = c.newAPI(token)

	c.logger.WithFields(logrus.Fields{
		"component": "spotify_client",
		"operation": "refresh_credentials",
		"expiry":    token.Expiry,
	}).Info("Spotify credentials refreshed")

	if c.onRefresh != nil {
		c.onRefresh(token)
	}
	return nil
}

// CurrentUser returns the account the credentials belong to.
func (c *Client) CurrentUser(ctx context.Context) (*types.User, error) {
	user, err := c.client().CurrentUser(ctx)
	if err != nil {
		return nil, classify("current user", err)
	}

	return &types.User{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		ExternalURL: user.ExternalURLs["spotify"],
	}, nil
}

// SavedTracks returns one page of the user's liked songs.
func (c *Client) SavedTracks(ctx context.Context, offset, limit int) ([]types.PlaylistItem, error) {
	page, err := c.client().CurrentUsersTracks(ctx, spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, classify("saved tracks", err)
	}

	items := make([]types.PlaylistItem, 0, len(page.Tracks))
	for _, saved := range page.Tracks {
		item := types.PlaylistItem{AddedAt: parseAddedAt(saved.AddedAt)}
		if saved.ID != "" {
			item.Track = convertTrack(&saved.FullTrack)
		}
		items = append(items, item)
	}

	c.logger.WithFields(logrus.Fields{
		"component":   "spotify_client",
		"operation":   "saved_tracks",
		"offset":      offset,
		"limit":       limit,
		"track_count": len(items),
	}).Debug("Fetched saved tracks page")

	return items, nil
}

// PlaylistTracks returns one page of a playlist. Episodes, local files without an ID,
// and removed tracks come back with a nil Track.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) ([]types.PlaylistItem, error) {
	page, err := c.client().GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, classify("playlist tracks", err)
	}

	items := make([]types.PlaylistItem, 0, len(page.Items))
	for _, entry := range page.Items {
		item := types.PlaylistItem{AddedAt: parseAddedAt(entry.AddedAt)}
		if entry.Track.Track != nil && entry.Track.Track.ID != "" {
			item.Track = convertTrack(entry.Track.Track)
		}
		items = append(items, item)
	}

	c.logger.WithFields(logrus.Fields{
		"component":   "spotify_client",
		"operation":   "playlist_tracks",
		"playlist_id": playlistID,
		"offset":      offset,
		"limit":       limit,
		"track_count": len(items),
	}).Debug("Fetched playlist tracks page")

	return items, nil
}

// CreatePlaylist creates a non-collaborative playlist owned by ownerID.
func (c *Client) CreatePlaylist(ctx context.Context, ownerID, name string, opts types.PlaylistOptions) (*types.Playlist, error) {
	created, err := c.client().CreatePlaylistForUser(ctx, ownerID, name, opts.Description, opts.Public, false)
	if err != nil {
		return nil, classify("create playlist", err)
	}

	playlist := convertFullPlaylist(created)

	c.logger.WithFields(logrus.Fields{
		"component":     "spotify_client",
		"operation":     "create_playlist",
		"playlist_id":   playlist.ID,
		"playlist_name": playlist.Name,
		"user_id":       ownerID,
	}).Info("Created playlist")

	return playlist, nil
}

// AddTracks appends tracks, given as URIs or bare IDs, to a playlist. The provider
// accepts at most 100 per call; batching is the caller's job.
func (c *Client) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if _, err := c.client().AddTracksToPlaylist(ctx, spotify.ID(playlistID), trackIDs(uris)...); err != nil {
		return classify("add tracks", err)
	}
	return nil
}

// RemoveTracks removes every occurrence of the given tracks from a playlist.
func (c *Client) RemoveTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if _, err := c.client().RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), trackIDs(uris)...); err != nil {
		return classify("remove tracks", err)
	}
	return nil
}

// UserPlaylists returns one page of the playlists in the user's library.
func (c *Client) UserPlaylists(ctx context.Context, offset, limit int) ([]types.Playlist, error) {
	page, err := c.client().CurrentUsersPlaylists(ctx, spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, classify("user playlists", err)
	}

	playlists := make([]types.Playlist, 0, len(page.Playlists))
	for i := range page.Playlists {
		playlists = append(playlists, convertSimplePlaylist(&page.Playlists[i]))
	}
	return playlists, nil
}

// GetPlaylist returns a playlist's metadata.
func (c *Client) GetPlaylist(ctx context.Context, playlistID string) (*types.Playlist, error) {
	full, err := c.client().GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, classify("get playlist", err)
	}
	return convertFullPlaylist(full), nil
}

// classify turns library errors into *types.ProviderError so callers can match
// types.ErrAuthExpired and types.ErrPermissionDenied with errors.Is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("spotify %s: %w", op, err)
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return &types.ProviderError{Op: op, Status: apiErr.Status, Message: apiErr.Message, Err: err}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := http.StatusUnauthorized
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &types.ProviderError{Op: op, Status: status, Message: retrieveErr.Error(), Err: err}
	}

	return &types.ProviderError{Op: op, Message: err.Error(), Err: err}
}

// TrackID returns the bare ID of a track URI. Values without the URI prefix are
// returned unchanged.
func TrackID(uri string) string {
	return strings.TrimPrefix(uri, trackURIPrefix)
}

// PlaylistID returns the bare ID of a playlist URI.
func PlaylistID(uri string) string {
	return strings.TrimPrefix(uri, playlistURIPrefix)
}

func trackIDs(uris []string) []spotify.ID {
	ids := make([]spotify.ID, len(uris))
	for i, uri := range uris {
		ids[i] = spotify.ID(TrackID(uri))
	}
	return ids
}

func convertTrack(t *spotify.FullTrack) *types.Track {
	artists := make([]types.Artist, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = types.Artist{ID: string(a.ID), Name: a.Name}
	}

	uri := string(t.URI)
	if uri == "" {
		uri = trackURIPrefix + string(t.ID)
	}

	return &types.Track{
		ID:      string(t.ID),
		URI:     uri,
		Name:    t.Name,
		Artists: artists,
	}
}

func convertSimplePlaylist(p *spotify.SimplePlaylist) types.Playlist {
	return types.Playlist{
		ID:           string(p.ID),
		Name:         p.Name,
		URI:          string(p.URI),
		ExternalURL:  p.ExternalURLs["spotify"],
		ExternalURLs: p.ExternalURLs,
		OwnerID:      p.Owner.ID,
		TrackCount:   int(p.Tracks.Total),
		Public:       p.IsPublic,
	}
}

func convertFullPlaylist(p *spotify.FullPlaylist) *types.Playlist {
	if p == nil {
		return &types.Playlist{}
	}
	playlist := convertSimplePlaylist(&p.SimplePlaylist)
	// FullPlaylist shadows the embedded track summary with a full page.
	playlist.TrackCount = int(p.Tracks.Total)
	return &playlist
}

func parseAddedAt(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}
