// Package cmd provides the command-line interface for fuzic.
//
// The root command loads configuration from the environment (and an optional .env
// file), configures logrus, and registers the sub-commands:
//   - serve: run the web API
//   - login: authorize the CLI against Spotify and store the token
//   - merge: merge playlists from the terminal
//   - playlists: list and filter the user's playlists
//   - man, version
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/toozej/fuzic/pkg/config"
	"github.com/toozej/fuzic/pkg/man"
	"github.com/toozej/fuzic/pkg/version"
)

var (
	// conf holds the configuration loaded in rootCmdPreRun.
	conf config.Config
	// debug enables debug-level logging.
	debug bool
)

var rootCmd = &cobra.Command{
	Use:              "fuzic",
	Short:            "Merge, convert and tidy Spotify playlists",
	Long:             `fuzic merges Spotify playlists and liked songs into new playlists without duplicates. It runs as a web API behind Spotify login (fuzic serve) or directly from the terminal.`,
	Args:             cobra.ExactArgs(0),
	PersistentPreRun: rootCmdPreRun,
	Run:              rootCmdRun,
}

func rootCmdRun(cmd *cobra.Command, args []string) {
	log.Info("Use 'fuzic serve' to start the web API")
	log.Info("Use 'fuzic login' then 'fuzic merge' to merge playlists from the terminal")
}

// rootCmdPreRun loads configuration and sets up logging before any command runs.
func rootCmdPreRun(cmd *cobra.Command, args []string) {
	conf = config.GetEnvVars()
	configureLogging(conf.Server.LogFormat, debug)
}

func configureLogging(format string, debug bool) {
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug-level logging")

	rootCmd.AddCommand(
		newServeCmd(),
		newLoginCmd(),
		newMergeCmd(),
		newPlaylistsCmd(),
		man.NewManCmd(),
		version.Command(),
	)
}
