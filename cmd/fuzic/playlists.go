package cmd

import (
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

func newPlaylistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "playlists [FILTER]",
		Short:        "List your playlists, optionally filtered by name",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newCLIClient()
			if err != nil {
				return err
			}

			logger := log.StandardLogger()
			service := playlist.NewPlaylistService(merge.NewAggregator(conf.Merge, logger), conf.Merge, logger, nil)
			playlists, err := service.ListPlaylists(cmd.Context(), client)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				playlists = search.NewPlaylistSearcher(logger).Filter(playlists, args[0])
			}
			printPlaylists(cmd.OutOrStdout(), playlists)
			return nil
		},
	}
}

func printPlaylists(w io.Writer, playlists []types.Playlist) {
	if len(playlists) == 0 {
		fmt.Fprintln(w, "No playlists found")
		return
	}
	for _, pl := range playlists {
		fmt.Fprintf(w, "%-24s %5d  %s\n", pl.ID, pl.TrackCount, strings.TrimSpace(pl.Name))
	}
}
