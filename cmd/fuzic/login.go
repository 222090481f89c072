package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/toozej/fuzic/internal/server"
	"github.com/toozej/fuzic/internal/session"
	"github.com/toozej/fuzic/internal/spotify"
)

const defaultLoginTimeout = 5 * time.Minute

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize fuzic with Spotify for command-line use",
		Long: `Open the printed URL in a browser and approve access. A temporary server
receives the OAuth callback on SPOTIFY_REDIRECT_URI and the token is written to
SPOTIFY_TOKEN_FILE_PATH for later commands.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runLogin,
	}
	cmd.Flags().Duration("timeout", defaultLoginTimeout, "How long to wait for the browser callback")
	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")

	auth, err := spotify.NewAuthenticator(conf.Spotify, log.StandardLogger())
	if err != nil {
		return fmt.Errorf("spotify credentials: %w", err)
	}
	tokenPath, err := conf.Spotify.GetTokenFilePath()
	if err != nil {
		return err
	}

	token, err := authenticate(cmd.Context(), auth, conf.Server.Address(), conf.Spotify.RedirectURL, timeout)
	if err != nil {
		return err
	}
	if err := spotify.SaveToken(tokenPath, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	log.WithField("token_file", tokenPath).Info("Spotify authentication completed successfully")
	fmt.Printf("✅ Logged in. Token saved to %s\n", tokenPath)
	return nil
}

type callbackResult struct {
	token *oauth2.Token
	err   error
}

// authenticate serves the OAuth callback on addr until a token arrives, the timeout
// elapses, or ctx is cancelled.
func authenticate(ctx context.Context, auth server.Authenticator, addr, redirectURL string, timeout time.Duration) (*oauth2.Token, error) {
	callbackPath := "/callback"
	if u, err := url.Parse(redirectURL); err == nil && u.Path != "" {
		callbackPath = u.Path
	}

	state := session.NewID()
	authURL := auth.AuthURL(state)

	log.WithField("auth_url", authURL).Info("Please visit this URL to authenticate with Spotify")
	fmt.Printf("\n🔐 Spotify Authentication Required\n")
	fmt.Printf("Please visit this URL to authenticate:\n%s\n\n", authURL)
	fmt.Printf("Waiting for authentication... (Press Ctrl+C to cancel)\n")

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, callbackHandler(auth, state, results))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("address", addr).Info("Starting temporary server for OAuth callback")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			results <- callbackResult{err: fmt.Errorf("server error: %w", err)}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Error shutting down authentication server")
		}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			return nil, fmt.Errorf("authentication failed: %w", res.err)
		}
		return res.token, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("authentication timeout after %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// callbackHandler completes the authorization-code exchange and reports the outcome
// on results exactly once.
func callbackHandler(auth server.Authenticator, state string, results chan<- callbackResult) http.HandlerFunc {
	report := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if errorParam := query.Get("error"); errorParam != "" {
			log.WithField("error", errorParam).Error("Spotify authentication error")
			http.Error(w, "Authentication failed: "+errorParam, http.StatusBadRequest)
			report(callbackResult{err: fmt.Errorf("spotify authentication error: %s", errorParam)})
			return
		}

		if query.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			report(callbackResult{err: errors.New("state mismatch")})
			return
		}

		code := query.Get("code")
		if code == "" {
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			report(callbackResult{err: errors.New("no authorization code received")})
			return
		}

		token, err := auth.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, "Authentication failed", http.StatusInternalServerError)
			report(callbackResult{err: err})
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><h1>✅ fuzic is authorized</h1><p>You can close this window and return to the terminal.</p></body></html>`)
		report(callbackResult{token: token})
	}
}
