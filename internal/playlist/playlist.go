package playlist

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/toozej/fuzic/internal/duplicate"
	"github.com/toozej/fuzic/internal/merge"
	"github.com/toozej/fuzic/internal/types"
	"github.com/toozej/fuzic/pkg/config"
)

const playlistsPageSize = 50

// PlaylistService implements the dashboard operations on a user's library.
type PlaylistService struct {
	aggregator *merge.Aggregator
	cfg        config.MergeConfig
	logger     *log.Logger
	recorder   merge.Recorder
}

// NewPlaylistService creates a new playlist service. Zero sizes in cfg fall back to
// the provider maximums.
func NewPlaylistService(aggregator *merge.Aggregator, cfg config.MergeConfig, logger *log.Logger, recorder merge.Recorder) *PlaylistService {
	return &PlaylistService{
		aggregator: aggregator,
		cfg:        cfg.WithDefaults(),
		logger:     logger,
		recorder:   recorder,
	}
}

func (p *PlaylistService) retrier(client types.ProviderClient) merge.Retrier {
	return merge.Retrier{Client: client, Logger: p.logger, Recorder: p.recorder}
}

// ListPlaylists returns every playlist in the user's library.
func (p *PlaylistService) ListPlaylists(ctx context.Context, client types.ProviderClient) ([]types.Playlist, error) {
	retrier := p.retrier(client)
	playlists, err := merge.CollectAll(ctx, playlistsPageSize, func(ctx context.Context, offset, limit int) ([]types.Playlist, error) {
		return merge.Do(ctx, retrier, "user playlists", func() ([]types.Playlist, error) {
			return client.UserPlaylists(ctx, offset, limit)
		})
	})
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"component": "playlist_service",
			"operation": "list_playlists",
		}).Error("Failed to list playlists")
		return nil, fmt.Errorf("listing playlists: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"component":      "playlist_service",
		"operation":      "list_playlists",
		"playlist_count": len(playlists),
	}).Debug("Listed playlists")

	if playlists == nil {
		playlists = []types.Playlist{}
	}
	return playlists, nil
}

// ClampLikedSongsLimit returns the page size LikedSongs actually requests for limit.
func ClampLikedSongsLimit(limit int) int {
	if limit <= 0 || limit > config.MaxSavedTracksPageSize {
		return config.MaxSavedTracksPageSize
	}
	return limit
}

// LikedSongs returns one page of the user's saved tracks. limit is clamped to the
// provider maximum.
func (p *PlaylistService) LikedSongs(ctx context.Context, client types.ProviderClient, offset, limit int) ([]types.Track, error) {
	if offset < 0 {
		offset = 0
	}
	limit = ClampLikedSongsLimit(limit)

	items, err := merge.Do(ctx, p.retrier(client), "saved tracks", func() ([]types.PlaylistItem, error) {
		return client.SavedTracks(ctx, offset, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching liked songs: %w", err)
	}

	tracks := lo.FilterMap(items, func(item types.PlaylistItem, _ int) (types.Track, bool) {
		if item.Track == nil {
			return types.Track{}, false
		}
		return *item.Track, true
	})
	return tracks, nil
}

// ConvertLikedSongs copies the liked songs into a new playlist.
func (p *PlaylistService) ConvertLikedSongs(ctx context.Context, client types.ProviderClient, name string) (*merge.Result, error) {
	return p.aggregator.ConvertLikedSongs(ctx, client, name)
}

// MergePlaylists merges the given sources into a new playlist.
func (p *PlaylistService) MergePlaylists(ctx context.Context, client types.ProviderClient, name string, sourceIDs []string) (*merge.Result, error) {
	return p.aggregator.Merge(ctx, client, merge.Request{Name: name, SourceIDs: sourceIDs})
}

// RemoveArtistTracks removes from playlistID every track credited to an artist whose
// name contains artistName, ignoring case and accents. It returns how many distinct
// tracks were removed.
func (p *PlaylistService) RemoveArtistTracks(ctx context.Context, client types.ProviderClient, playlistID, artistName string) (int, error) {
	playlistID = strings.TrimSpace(playlistID)
	artistName = strings.TrimSpace(artistName)
	if playlistID == "" {
		return 0, types.ValidationError("playlist is required")
	}
	if artistName == "" {
		return 0, types.ValidationError("artist name is required")
	}

	fields := log.Fields{
		"component":   "playlist_service",
		"operation":   "remove_artist",
		"playlist_id": playlistID,
		"artist_name": artistName,
	}

	retrier := p.retrier(client)
	matcher := newArtistMatcher(artistName)
	seen := duplicate.NewTracker(0)
	var matches []string

	err := merge.ForEachPage(ctx, p.cfg.PlaylistPageSize, func(ctx context.Context, offset, limit int) ([]types.PlaylistItem, error) {
		return merge.Do(ctx, retrier, "playlist tracks", func() ([]types.PlaylistItem, error) {
			return client.PlaylistTracks(ctx, playlistID, offset, limit)
		})
	}, func(page []types.PlaylistItem) error {
		for _, item := range page {
			if item.Track == nil || item.Track.ID == "" || !matcher.matchesAny(item.Track.Artists) {
				continue
			}
			if seen.Add(item.Track.ID) {
				matches = append(matches, item.Track.URI)
			}
		}
		return nil
	})
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("Failed to read playlist")
		return 0, fmt.Errorf("reading playlist %s: %w", playlistID, err)
	}

	if len(matches) == 0 {
		p.logger.WithFields(fields).Info("No tracks by artist found")
		return 0, nil
	}

	removed := 0
	for i, batch := range lo.Chunk(matches, p.cfg.BatchSize) {
		err := merge.Exec(ctx, retrier, "remove tracks", func() error {
			return client.RemoveTracks(ctx, playlistID, batch)
		})
		if err != nil {
			p.logger.WithError(err).WithFields(fields).WithFields(log.Fields{
				"batch":          i + 1,
				"tracks_removed": removed,
			}).Error("Failed to remove tracks")
			return removed, fmt.Errorf("removing tracks from playlist %s: %w", playlistID, err)
		}
		removed += len(batch)
	}

	p.logger.WithFields(fields).WithField("tracks_removed", removed).Info("Removed artist tracks from playlist")
	return removed, nil
}

// ImportPlaylist copies the playlist behind a share URL into a new playlist. Only
// Spotify URLs can be imported; other recognised platforms yield
// types.ErrUnsupportedPlatform.
func (p *PlaylistService) ImportPlaylist(ctx context.Context, client types.ProviderClient, rawURL, name string) (*merge.Result, error) {
	ref, err := ParsePlaylistURL(rawURL)
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(log.Fields{
		"component":   "playlist_service",
		"operation":   "import_playlist",
		"platform":    ref.Platform,
		"playlist_id": ref.ID,
	}).Info("Importing playlist")

	if ref.Platform != PlatformSpotify {
		return nil, fmt.Errorf("%w: importing from %s is not available", types.ErrUnsupportedPlatform, ref.Platform)
	}
	return p.aggregator.CopyPlaylist(ctx, client, ref.ID, name)
}

// ExportPlaylist sends a playlist to another platform. No export target is
// integrated, so every platform is reported as unsupported once the request is valid.
func (p *PlaylistService) ExportPlaylist(_ context.Context, _ types.ProviderClient, platform, playlistID string) error {
	if strings.TrimSpace(playlistID) == "" {
		return types.ValidationError("playlist is required")
	}
	if strings.TrimSpace(platform) == "" {
		return types.ValidationError("platform is required")
	}
	return fmt.Errorf("%w: exporting to %s is not available", types.ErrUnsupportedPlatform, platform)
}
