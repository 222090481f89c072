// Package merge combines tracks from several sources into a new playlist with
// order-preserving de-duplication.
//
// Sources are traversed one after another in the order given; within a source,
// pages are read in provider order. The first occurrence of a track ID fixes its
// position in the result. The destination playlist is created only after every
// source has been read, and tracks are written in batches that preserve order.
// Writes are not transactional: if a batch fails, the playlist and the batches
// already written are left in place.
package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/toozej/fuzic/internal/duplicate"
	"github.com/toozej/fuzic/internal/types"
	"github.com/toozej/fuzic/pkg/config"
)

// Descriptions set on playlists created by each operation.
const (
	MergeDescription  = "Merged playlist created using Fuzic"
	LikedDescription  = "Playlist created from liked songs using Fuzic"
	ImportDescription = "Playlist imported using Fuzic"
)

// Operation names used in logs and metrics.
const (
	OpMerge        = "merge"
	OpConvertLiked = "convert_liked"
	OpCopy         = "copy_playlist"
)

// Request asks for a new playlist built from SourceIDs. A source is either a
// playlist ID or types.LikedSongsSourceID.
type Request struct {
	Name      string
	SourceIDs []string
}

// Result describes the playlist that was created.
type Result struct {
	Playlist    types.Playlist
	TracksAdded int
	URIs        []string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithClock overrides time.Now, used for default playlist names.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// Aggregator builds playlists out of other playlists and the liked-songs library.
// It holds no per-request state; the provider client is passed to every call.
type Aggregator struct {
	cfg      config.MergeConfig
	logger   *logrus.Logger
	recorder Recorder
	now      func() time.Time
}

// NewAggregator creates an Aggregator. Zero sizes in cfg fall back to the provider
// maximums.
func NewAggregator(cfg config.MergeConfig, logger *logrus.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		cfg:      cfg.WithDefaults(),
		logger:   logger,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Merge creates a private playlist named req.Name holding the distinct tracks of all
// sources, ordered by first appearance.
//
// Input is validated before any provider call: the trimmed name must be non-empty and
// there must be at least two sources, none of them blank.
func (a *Aggregator) Merge(ctx context.Context, client types.ProviderClient, req Request) (*Result, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, a.fail(OpMerge, types.ValidationError("playlist name is required"))
	}
	if len(req.SourceIDs) < 2 {
		return nil, a.fail(OpMerge, types.ValidationError("at least two sources are required, got %d", len(req.SourceIDs)))
	}

	sources := make([]string, len(req.SourceIDs))
	for i, id := range req.SourceIDs {
		sources[i] = strings.TrimSpace(id)
		if sources[i] == "" {
			return nil, a.fail(OpMerge, types.ValidationError("source %d is empty", i+1))
		}
	}

	return a.build(ctx, client, OpMerge, name, sources, types.PlaylistOptions{Description: MergeDescription})
}

// ConvertLikedSongs copies the user's liked songs into a new private playlist. A blank
// name becomes "Liked Songs - YYYY-MM-DD".
func (a *Aggregator) ConvertLikedSongs(ctx context.Context, client types.ProviderClient, name string) (*Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Liked Songs - " + a.now().Format(time.DateOnly)
	}
	return a.build(ctx, client, OpConvertLiked, name, []string{types.LikedSongsSourceID}, types.PlaylistOptions{Description: LikedDescription})
}

// CopyPlaylist copies one playlist into a new private playlist. A blank name reuses
// the source playlist's name.
func (a *Aggregator) CopyPlaylist(ctx context.Context, client types.ProviderClient, sourceID, name string) (*Result, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return nil, a.fail(OpCopy, types.ValidationError("source playlist is required"))
	}

	name = strings.TrimSpace(name)
	if name == "" {
		retrier := a.retrier(client)
		source, err := Do(ctx, retrier, "get playlist", func() (*types.Playlist, error) {
			return client.GetPlaylist(ctx, sourceID)
		})
		if err != nil {
			return nil, a.fail(OpCopy, fmt.Errorf("looking up playlist %s: %w", sourceID, err))
		}
		name = strings.TrimSpace(source.Name)
		if name == "" {
			name = "Imported Playlist"
		}
	}

	return a.build(ctx, client, OpCopy, name, []string{sourceID}, types.PlaylistOptions{Description: ImportDescription})
}

func (a *Aggregator) retrier(client types.ProviderClient) Retrier {
	return Retrier{Client: client, Logger: a.logger, Recorder: a.recorder}
}

func (a *Aggregator) build(ctx context.Context, client types.ProviderClient, op, name string, sources []string, opts types.PlaylistOptions) (*Result, error) {
	retrier := a.retrier(client)
	fields := logrus.Fields{
		"component":     "aggregator",
		"operation":     op,
		"playlist_name": name,
		"source_count":  len(sources),
	}

	user, err := Do(ctx, retrier, "current user", func() (*types.User, error) {
		return client.CurrentUser(ctx)
	})
	if err != nil {
		return nil, a.fail(op, fmt.Errorf("resolving current user: %w", err))
	}
	fields["user_id"] = user.ID

	tracker := duplicate.NewTracker(0)
	var uris []string
	for _, source := range sources {
		before := len(uris)
		skipped := 0

		err := ForEachPage(ctx, a.pageSize(source), a.listing(client, retrier, source), func(page []types.PlaylistItem) error {
			for _, item := range page {
				if item.Track == nil || item.Track.ID == "" {
					skipped++
					continue
				}
				if tracker.Add(item.Track.ID) {
					uris = append(uris, trackURI(item.Track))
				}
			}
			return nil
		})
		if err != nil {
			return nil, a.fail(op, fmt.Errorf("reading source %s: %w", source, err))
		}

		a.logger.WithFields(fields).WithFields(logrus.Fields{
			"source_id":     source,
			"tracks_new":    len(uris) - before,
			"tracks_total":  tracker.Len(),
			"items_skipped": skipped,
		}).Debug("Read source")
	}

	if len(uris) == 0 {
		a.logger.WithFields(fields).Info("Sources contain no tracks, nothing created")
		return nil, a.fail(op, types.ErrNoTracksFound)
	}

	playlist, err := Do(ctx, retrier, "create playlist", func() (*types.Playlist, error) {
		return client.CreatePlaylist(ctx, user.ID, name, opts)
	})
	if err != nil {
		return nil, a.fail(op, writeError(fmt.Errorf("creating playlist %q: %w", name, err)))
	}
	if playlist == nil || playlist.ID == "" || playlist.Name == "" {
		return nil, a.fail(op, fmt.Errorf("%w: %w", types.ErrProviderWrite, types.ErrInvalidPlaylistResponse))
	}
	fields["playlist_id"] = playlist.ID

	batches := lo.Chunk(uris, a.cfg.BatchSize)
	written := 0
	for i, batch := range batches {
		err := Exec(ctx, retrier, "add tracks", func() error {
			return client.AddTracks(ctx, playlist.ID, batch)
		})
		if err != nil {
			a.logger.WithError(err).WithFields(fields).WithFields(logrus.Fields{
				"batch":          i + 1,
				"batches":        len(batches),
				"tracks_written": written,
			}).Error("Failed to add tracks, playlist left partially filled")
			return nil, a.fail(op, writeError(fmt.Errorf("adding batch %d of %d to playlist %s: %w", i+1, len(batches), playlist.ID, err)))
		}
		written += len(batch)
	}

	a.logger.WithFields(fields).WithField("tracks_added", written).Info("Playlist created")
	a.recorder.OperationCompleted(op, written)

	return &Result{
		Playlist:    *playlist,
		TracksAdded: written,
		URIs:        uris,
	}, nil
}

func (a *Aggregator) pageSize(source string) int {
	if source == types.LikedSongsSourceID {
		return a.cfg.SavedTracksPageSize
	}
	return a.cfg.PlaylistPageSize
}

func (a *Aggregator) listing(client types.ProviderClient, retrier Retrier, source string) ListFunc[types.PlaylistItem] {
	if source == types.LikedSongsSourceID {
		return func(ctx context.Context, offset, limit int) ([]types.PlaylistItem, error) {
			return Do(ctx, retrier, "saved tracks", func() ([]types.PlaylistItem, error) {
				return client.SavedTracks(ctx, offset, limit)
			})
		}
	}
	return func(ctx context.Context, offset, limit int) ([]types.PlaylistItem, error) {
		return Do(ctx, retrier, "playlist tracks", func() ([]types.PlaylistItem, error) {
			return client.PlaylistTracks(ctx, source, offset, limit)
		})
	}
}

func (a *Aggregator) fail(op string, err error) error {
	a.recorder.OperationFailed(op, err)
	return err
}

// writeError tags a failed write with types.ErrProviderWrite unless it is an auth or
// permission failure, which keep their own classification.
func writeError(err error) error {
	if errors.Is(err, types.ErrAuthExpired) || errors.Is(err, types.ErrPermissionDenied) {
		return err
	}
	return fmt.Errorf("%w: %w", types.ErrProviderWrite, err)
}

func trackURI(track *types.Track) string {
	if track.URI != "" {
		return track.URI
	}
	return "spotify:track:" + track.ID
}
