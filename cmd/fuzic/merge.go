package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/toozej/fuzic/internal/merge"
	"github.com/toozej/fuzic/internal/playlist"
	"github.com/toozej/fuzic/internal/search"
	"github.com/toozej/fuzic/internal/types"
)

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge SOURCE SOURCE [SOURCE...]",
		Short: "Merge playlists into a new playlist without duplicates",
		Long: `Merge two or more sources into a new private playlist. A source is a playlist
ID, a Spotify playlist URL or URI, or "liked-songs" for your saved tracks. With
--by-name, other sources are matched against your playlist names.`,
		Example:      `  fuzic merge --name "Road Trip" liked-songs 37i9dQZF1DXcBWIGoYBM5M
  fuzic merge --name "Everything Chill" --by-name "chill evenings" "lofi beats"`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE:         runMerge,
	}
	cmd.Flags().StringP("name", "n", "", "Name of the new playlist (required)")
	cmd.Flags().Bool("by-name", false, "Resolve sources by fuzzy matching playlist names")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runMerge(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	byName, _ := cmd.Flags().GetBool("by-name")

	client, err := newCLIClient()
	if err != nil {
		return err
	}

	logger := log.StandardLogger()
	aggregator := merge.NewAggregator(conf.Merge, logger)
	service := playlist.NewPlaylistService(aggregator, conf.Merge, logger, nil)

	sources, err := resolveSources(cmd.Context(), client, service, search.NewPlaylistSearcher(logger), args, byName)
	if err != nil {
		return err
	}

	result, err := service.MergePlaylists(cmd.Context(), client, name, sources)
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), result)
	return nil
}

// resolveSources turns command-line arguments into source IDs. URLs and URIs are
// reduced to their playlist ID; with byName, anything else is looked up in the
// user's library.
func resolveSources(ctx context.Context, client types.ProviderClient, service *playlist.PlaylistService, searcher *search.PlaylistSearcher, args []string, byName bool) ([]string, error) {
	var library []types.Playlist
	sources := make([]string, 0, len(args))

	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == types.LikedSongsSourceID {
			sources = append(sources, arg)
			continue
		}

		if ref, err := playlist.ParsePlaylistURL(arg); err == nil {
			if ref.Platform != playlist.PlatformSpotify {
				return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedPlatform, arg)
			}
			sources = append(sources, ref.ID)
			continue
		}

		if !byName {
			sources = append(sources, arg)
			continue
		}

		if library == nil {
			var err error
			if library, err = service.ListPlaylists(ctx, client); err != nil {
				return nil, err
			}
		}
		match, err := searcher.BestMatch(library, arg)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", arg, err)
		}
		entry := log.WithFields(log.Fields{
			"query":      arg,
			"playlist":   match.Playlist.Name,
			"confidence": match.Confidence,
		})
		switch {
		case match.IsLowConfidence():
			entry.Warn("Low confidence playlist match")
		case !match.IsHighConfidence():
			entry.Info("Resolved playlist by approximate name")
		default:
			entry.Debug("Resolved playlist by name")
		}
		sources = append(sources, match.Playlist.ID)
	}

	return sources, nil
}

func printResult(w io.Writer, result *merge.Result) {
	fmt.Fprintf(w, "✅ Created playlist %q with %d tracks\n", result.Playlist.Name, result.TracksAdded)
	if result.Playlist.ExternalURL != "" {
		fmt.Fprintf(w, "🔗 %s\n", result.Playlist.ExternalURL)
	}
}
