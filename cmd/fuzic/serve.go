package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/toozej/fuzic/internal/merge"
	"github.com/toozej/fuzic/internal/playlist"
	"github.com/toozej/fuzic/internal/search"
	"github.com/toozej/fuzic/internal/server"
	"github.com/toozej/fuzic/internal/session"
	"github.com/toozej/fuzic/internal/spotify"
	"github.com/toozej/fuzic/internal/types"
)

const pruneInterval = time.Hour

// pruner is implemented by session stores that need periodic cleanup.
type pruner interface {
	Prune(ctx context.Context) (int64, error)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the fuzic web API",
		Long:         `Serve the JSON API used by the fuzic dashboard. Users sign in with Spotify; sessions are kept in memory or in SQLite depending on SESSION_STORE.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.StandardLogger()

	auth, err := spotify.NewAuthenticator(conf.Spotify, logger)
	if err != nil {
		return fmt.Errorf("spotify credentials: %w", err)
	}

	store, err := session.New(conf.Session, logger)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("Failed to close session store")
		}
	}()

	metrics := server.NewMetrics()
	aggregator := merge.NewAggregator(conf.Merge, logger, merge.WithRecorder(metrics))

	srv := server.New(conf.Server, server.Deps{
		Auth: auth,
		NewClient: func(token *oauth2.Token, onRefresh func(*oauth2.Token)) types.ProviderClient {
			return auth.NewClient(token, onRefresh)
		},
		Sessions:   store,
		SessionTTL: conf.Session.TTL,
		Playlists:  playlist.NewPlaylistService(aggregator, conf.Merge, logger, metrics),
		Searcher:   search.NewPlaylistSearcher(logger),
		Metrics:    metrics,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if p, ok := store.(pruner); ok {
		g.Go(func() error {
			runPruner(gctx, p, pruneInterval)
			return nil
		})
	}

	return g.Wait()
}

// runPruner removes expired sessions every interval until ctx is done.
func runPruner(ctx context.Context, p pruner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.Prune(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("Failed to prune sessions")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
