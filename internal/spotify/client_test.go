package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/toozej/fuzic/internal/types"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	logger.SetOutput(io.Discard)
	return logger
}

// fakeAPI is a minimal stand-in for the Spotify Web API.
type fakeAPI struct {
	mu       sync.Mutex
	authSeen []string
	bodies   map[string][]byte
	status   int
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{bodies: make(map[string][]byte)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		api.write(w, r, http.StatusOK, `{"id":"user-1","display_name":"Test User","email":"test@example.com","external_urls":{"spotify":"https://open.spotify.com/user/user-1"}}`)
	})
	mux.HandleFunc("GET /me/tracks", func(w http.ResponseWriter, r *http.Request) {
		api.write(w, r, http.StatusOK, fmt.Sprintf(`{"limit":%s,"offset":%s,"total":2,"items":[
			{"added_at":"2024-03-01T10:00:00Z","track":{"id":"t1","uri":"spotify:track:t1","name":"First","artists":[{"id":"a1","name":"Artist One"}]}},
			{"added_at":"2024-03-02T10:00:00Z","track":null}
		]}`, r.URL.Query().Get("limit"), r.URL.Query().Get("offset")))
	})
	playlistItems := func(w http.ResponseWriter, r *http.Request) {
		api.write(w, r, http.StatusOK, `{"limit":100,"offset":0,"total":3,"items":[
			{"added_at":"2024-03-01T10:00:00Z","track":{"type":"track","track":true,"episode":false,"id":"t2","uri":"spotify:track:t2","name":"Second","artists":[{"id":"a2","name":"Artist Two"}]}},
			{"added_at":"2024-03-01T10:00:00Z","track":null},
			{"added_at":"2024-03-01T10:00:00Z","track":{"type":"track","track":true,"episode":false,"id":"t3","name":"Third","artists":[]}}
		]}`)
	}
	mux.HandleFunc("GET /playlists/{id}/tracks", playlistItems)
	mux.HandleFunc("GET /playlists/{id}/items", playlistItems)
	mux.HandleFunc("POST /users/{user}/playlists", func(w http.ResponseWriter, r *http.Request) {
		api.write(w, r, http.StatusCreated, fmt.Sprintf(`{"id":"new-1","name":"Created","uri":"spotify:playlist:new-1","public":false,"owner":{"id":"%s"},"external_urls":{"spotify":"https://open.spotify.com/playlist/new-1"},"tracks":{"total":0}}`, r.PathValue("user")))
	})
	tracksWrite := func(w http.ResponseWriter, r *http.Request) {
		api.write(w, r, http.StatusCreated, `{"snapshot_id":"snap-1"}`)
	}
	mux.HandleFunc("POST /playlists/{id}/tracks", tracksWrite)
	mux.HandleFunc("POST /playlists/{id}/items", tracksWrite)
	mux.HandleFunc("DELETE /playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		api.write(w, r, http.StatusOK, `{"snapshot_id":"snap-2"}`)
	})
	mux.HandleFunc("GET /me/playlists", func(w http.ResponseWriter, r *http.Request) {
		api.write(w, r, http.StatusOK, `{"limit":50,"offset":0,"total":1,"items":[
			{"id":"p1","name":"Road Trip","uri":"spotify:playlist:p1","public":true,"owner":{"id":"user-1"},"external_urls":{"spotify":"https://open.spotify.com/playlist/p1"},"tracks":{"total":12}}
		]}`)
	})
	mux.HandleFunc("GET /playlists/{id}", func(w http.ResponseWriter, r *http.Request) {
		api.write(w, r, http.StatusOK, fmt.Sprintf(`{"id":"%s","name":"Fetched","uri":"spotify:playlist:%s","owner":{"id":"someone"},"tracks":{"total":7,"items":[]}}`, r.PathValue("id"), r.PathValue("id")))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return api, server
}

func (f *fakeAPI) write(w http.ResponseWriter, r *http.Request, status int, body string) {
	f.mu.Lock()
	f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		f.bodies[r.Method+" "+r.URL.Path] = data
	}
	override := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if override != 0 {
		w.WriteHeader(override)
		_, _ = fmt.Fprintf(w, `{"error":{"status":%d,"message":"forced failure"}}`, override)
		return
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeAPI) failWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *fakeAPI) lastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.authSeen) == 0 {
		return ""
	}
	return f.authSeen[len(f.authSeen)-1]
}

type stubRefresher struct {
	token *oauth2.Token
	err   error
	calls int
}

func (s *stubRefresher) Refresh(_ context.Context, _ *oauth2.Token) (*oauth2.Token, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func testToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func TestClient_CurrentUser(t *testing.T) {
	api, server := newFakeAPI(t)
	client := NewClient(testToken(), nil, quietLogger(), WithBaseURL(server.URL))

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "Test User", user.DisplayName)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "https://open.spotify.com/user/user-1", user.ExternalURL)
	assert.Equal(t, "Bearer access-1", api.lastAuth())
}

func TestClient_SavedTracks(t *testing.T) {
	_, server := newFakeAPI(t)
	client := NewClient(testToken(), nil, quietLogger(), WithBaseURL(server.URL))

	items, err := client.SavedTracks(context.Background(), 0, 50)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NotNil(t, items[0].Track)
	assert.Equal(t, "t1", items[0].Track.ID)
	assert.Equal(t, "spotify:track:t1", items[0].Track.URI)
	assert.Equal(t, []types.Artist{{ID: "a1", Name: "Artist One"}}, items[0].Track.Artists)
	require.NotNil(t, items[0].AddedAt)
	assert.Equal(t, 2024, items[0].AddedAt.Year())

	assert.Nil(t, items[1].Track, "null track must surface as nil")
}

func TestClient_PlaylistTracks(t *testing.T) {
	_, server := newFakeAPI(t)
	client := NewClient(testToken(), nil, quietLogger(), WithBaseURL(server.URL))

	items, err := client.PlaylistTracks(context.Background(), "p1", 0, 100)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "t2", items[0].Track.ID)
	assert.Nil(t, items[1].Track)
	require.NotNil(t, items[2].Track)
	assert.Equal(t, "spotify:track:t3", items[2].Track.URI, "missing URI is derived from the ID")
}

func TestClient_CreatePlaylist(t *testing.T) {
	api, server := newFakeAPI(t)
	client := NewClient(testToken(), nil, quietLogger(), WithBaseURL(server.URL))

	playlist, err := client.CreatePlaylist(context.Background(), "user-1", "Created", types.PlaylistOptions{
		Description: "Merged playlist created using Fuzic",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-1", playlist.ID)
	assert.Equal(t, "Created", playlist.Name)
	assert.Equal(t, "spotify:playlist:new-1", playlist.URI)
	assert.Equal(t, "https://open.spotify.com/playlist/new-1", playlist.ExternalURL)
	assert.Equal(t, "user-1", playlist.OwnerID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(api.bodies["POST /users/user-1/playlists"], &body))
	assert.Equal(t, "Created", body["name"])
	assert.Equal(t, "Merged playlist created using Fuzic", body["description"])
	assert.Equal(t, false, body["public"])
}

func TestClient_AddTracksAcceptsURIs(t *testing.T) {
	api, server := newFakeAPI(t)
	client := NewClient(testToken(), nil, quietLogger(), WithBaseURL(server.URL))

	err := client.AddTracks(context.Background(), "p1", []string{"spotify:track:a", "b"})
	require.NoError(t, err)

	raw := api.bodies["POST /playlists/p1/tracks"]
	if raw == nil {
		raw = api.bodies["POST /playlists/p1/items"]
	}
	var body struct {
		URIs []string `json:"uris"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, []string{"spotify:track:a", "spotify:track:b"}, body.URIs)
}

func TestClient_EmptyWritesAreNoOps(t *testing.T) {
	api, server := newFakeAPI(t)
	client := NewClient(testToken(), nil, quietLogger(), WithBaseURL(server.URL))

	require.NoError(t, client.AddTracks(context.Background(), "p1", nil))
	require.NoError(t, client.RemoveTracks(context.Background(), "p1", []string{}))
	assert.Empty(t, api.authSeen)
}

func TestClient_RemoveTracks(t *testing.T) {
	api, server := newFakeAPI(t)
	client := NewClient(testToken(), nil, quietLogger(), WithBaseURL(server.URL))

	require.NoError(t, client.RemoveTracks(context.Background(), "p1", []string{"spotify:track:x"}))
	assert.Contains(t, string(api.bodies["DELETE /playlists/p1/tracks"]), "spotify:track:x")
}

func TestClient_UserPlaylistsAndGetPlaylist(t *testing.T) {
	_, server := newFakeAPI(t)
	client := NewClient(testToken(), nil, quietLogger(), WithBaseURL(server.URL))

	playlists, err := client.UserPlaylists(context.Background(), 0, 50)
	require.NoError(t, err)
	require.Len(t, playlists, 1)
	assert.Equal(t, types.Playlist{
		ID:           "p1",
		Name:         "Road Trip",
		URI:          "spotify:playlist:p1",
		ExternalURL:  "https://open.spotify.com/playlist/p1",
		ExternalURLs: map[string]string{"spotify": "https://open.spotify.com/playlist/p1"},
		OwnerID:      "user-1",
		TrackCount:   12,
		Public:       true,
	}, playlists[0])

	playlist, err := client.GetPlaylist(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", playlist.ID)
	assert.Equal(t, "Fetched", playlist.Name)
	assert.Equal(t, 7, playlist.TrackCount)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name             string
		status           int
		expectAuth       bool
		expectPermission bool
	}{
		{name: "expired token", status: http.StatusUnauthorized, expectAuth: true},
		{name: "missing scope", status: http.StatusForbidden, expectPermission: true},
		{name: "not found", status: http.StatusNotFound},
		{name: "server error", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.failWith(tt.status)
			client := NewClient(testToken(), nil, quietLogger(), WithBaseURL(server.URL))

			_, err := client.CurrentUser(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.expectAuth, errors.Is(err, types.ErrAuthExpired))
			assert.Equal(t, tt.expectPermission, errors.Is(err, types.ErrPermissionDenied))

			var pe *types.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.status, pe.Status)
			assert.Equal(t, "current user", pe.Op)
		})
	}
}

func TestClient_RefreshCredentials(t *testing.T) {
	api, server := newFakeAPI(t)
	refreshed := &oauth2.Token{AccessToken: "access-2", RefreshToken: "refresh-2", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	refresher := &stubRefresher{token: refreshed}

	var persisted *oauth2.Token
	client := NewClient(testToken(), refresher, quietLogger(),
		WithBaseURL(server.URL),
		WithOnRefresh(func(tok *oauth2.Token) { persisted = tok }),
	)

	require.NoError(t, client.RefreshCredentials(context.Background()))
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, refreshed, persisted)

	_, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-2", api.lastAuth())
}

func TestClient_RefreshCredentialsFailures(t *testing.T) {
	t.Run("refresher error", func(t *testing.T) {
		refresher := &stubRefresher{err: errors.New("invalid_grant")}
		called := false
		client := NewClient(testToken(), refresher, quietLogger(), WithOnRefresh(func(*oauth2.Token) { called = true }))

		err := client.RefreshCredentials(context.Background())
		assert.ErrorIs(t, err, types.ErrAuthExpired)
		assert.False(t, called)
	})

	t.Run("no refresh token", func(t *testing.T) {
		refresher := &stubRefresher{}
		client := NewClient(&oauth2.Token{AccessToken: "only-access"}, refresher, quietLogger())

		err := client.RefreshCredentials(context.Background())
		assert.ErrorIs(t, err, types.ErrAuthExpired)
		assert.Zero(t, refresher.calls)
	})

	t.Run("no refresher", func(t *testing.T) {
		client := NewClient(testToken(), nil, quietLogger())
		assert.ErrorIs(t, client.RefreshCredentials(context.Background()), types.ErrAuthExpired)
	})
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))

	err := classify("op", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)

	err = classify("op", errors.New("dial tcp: refused"))
	var pe *types.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Zero(t, pe.Status)
	assert.False(t, errors.Is(err, types.ErrAuthExpired))

	err = classify("op", &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}})
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.Status)
}

func TestTrackAndPlaylistID(t *testing.T) {
	assert.Equal(t, "abc", TrackID("spotify:track:abc"))
	assert.Equal(t, "abc", TrackID("abc"))
	assert.Equal(t, "xyz", PlaylistID("spotify:playlist:xyz"))
}

func TestTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spotify_token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, SaveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, loaded.AccessToken)
	assert.Equal(t, token.RefreshToken, loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	assert.Error(t, SaveToken(path, nil))
}
