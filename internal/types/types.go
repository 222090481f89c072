package types

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// LikedSongsSourceID is the reserved source identifier meaning "the user's saved tracks".
const LikedSongsSourceID = "liked-songs"

// ProviderClient is the typed view of the Spotify Web API used by every service.
// A ProviderClient is bound to one user's credentials for the lifetime of a request.
type ProviderClient interface {
	CurrentUser(ctx context.Context) (*User, error)
	SavedTracks(ctx context.Context, offset, limit int) ([]PlaylistItem, error)
	PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) ([]PlaylistItem, error)
	CreatePlaylist(ctx context.Context, ownerID, name string, opts PlaylistOptions) (*Playlist, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) error
	RemoveTracks(ctx context.Context, playlistID string, uris []string) error
	UserPlaylists(ctx context.Context, offset, limit int) ([]Playlist, error)
	GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error)
	// RefreshCredentials exchanges the refresh token for a new access token and
	// rebinds the client to it.
	RefreshCredentials(ctx context.Context) error
}

// SessionStore persists browser sessions keyed by session ID.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Core data models

// Artist represents a Spotify artist
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track represents a Spotify track
type Track struct {
	ID      string   `json:"id"`
	URI     string   `json:"uri"`
	Name    string   `json:"name"`
	Artists []Artist `json:"artists"`
}

// PlaylistItem is one entry of a saved-tracks or playlist listing. Track is nil for
// entries the provider reports as unavailable, removed, or not a track.
type PlaylistItem struct {
	Track   *Track     `json:"track"`
	AddedAt *time.Time `json:"added_at,omitempty"`
}

// Playlist represents a Spotify playlist
type Playlist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	URI          string            `json:"uri"`
	ExternalURL  string            `json:"external_url,omitempty"`
	ExternalURLs map[string]string `json:"external_urls,omitempty"`
	OwnerID      string            `json:"owner_id,omitempty"`
	TrackCount   int               `json:"track_count"`
	Public       bool              `json:"public"`
}

// PlaylistOptions are the attributes set on a newly created playlist.
type PlaylistOptions struct {
	Description string
	Public      bool
}

// User is the authenticated account.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
}

// Session binds a browser cookie to the OAuth token of the signed-in user.
type Session struct {
	ID        string
	Token     *oauth2.Token
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// API request/response models

// MergeRequest is the body of POST /api/merge-playlists. Both field spellings are
// accepted; the dashboard sends name/selectedPlaylists.
type MergeRequest struct {
	NewPlaylistName   string   `json:"newPlaylistName"`
	PlaylistIDs       []string `json:"playlistIds"`
	Name              string   `json:"name"`
	SelectedPlaylists []string `json:"selectedPlaylists"`
}

// PlaylistName returns whichever name field was supplied.
func (r MergeRequest) PlaylistName() string {
	if r.NewPlaylistName != "" {
		return r.NewPlaylistName
	}
	return r.Name
}

// SourceIDs returns whichever source list was supplied.
func (r MergeRequest) SourceIDs() []string {
	if len(r.PlaylistIDs) > 0 {
		return r.PlaylistIDs
	}
	return r.SelectedPlaylists
}

// ConvertLikedRequest is the body of POST /api/convert-liked-to-playlist.
type ConvertLikedRequest struct {
	Name string `json:"name"`
}

// RemoveArtistRequest is the body of POST /api/remove-artist-songs.
type RemoveArtistRequest struct {
	PlaylistID string `json:"playlistId"`
	ArtistName string `json:"artistName"`
}

// ImportRequest is the body of POST /api/import-playlist.
type ImportRequest struct {
	PlaylistURL  string `json:"playlistUrl"`
	PlaylistName string `json:"playlistName"`
}

// ExportRequest is the body of POST /api/export-playlist.
type ExportRequest struct {
	Platform   string `json:"platform"`
	PlaylistID string `json:"playlistId"`
}

// PlaylistResult is the success envelope for operations that create a playlist.
type PlaylistResult struct {
	Success     bool     `json:"success"`
	Playlist    Playlist `json:"playlist"`
	TracksAdded int      `json:"tracksAdded"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}
