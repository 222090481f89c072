package merge

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/toozej/fuzic/internal/types"
)

type createCall struct {
	ownerID string
	name    string
	opts    types.PlaylistOptions
}

type pageCall struct {
	source string
	offset int
	limit  int
}

// fakeClient is an in-memory types.ProviderClient. Errors queued in errs are returned,
// one per call, before the call falls through to the in-memory data.
type fakeClient struct {
	user       types.User
	saved      []types.PlaylistItem
	playlists  map[string][]types.PlaylistItem
	meta       map[string]types.Playlist
	createResp *types.Playlist
	refreshErr error
	errs       map[string][]error

	pageCalls []pageCall
	created   []createCall
	added     [][]string
	removed   [][]string
	refreshes int
	calls     int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		user:      types.User{ID: "user-1", DisplayName: "Test User"},
		playlists: make(map[string][]types.PlaylistItem),
		meta:      make(map[string]types.Playlist),
		errs:      make(map[string][]error),
	}
}

func (f *fakeClient) queue(op string, errs ...error) {
	f.errs[op] = append(f.errs[op], errs...)
}

func (f *fakeClient) next(op string) error {
	f.calls++
	queued := f.errs[op]
	if len(queued) == 0 {
		return nil
	}
	f.errs[op] = queued[1:]
	return queued[0]
}

func (f *fakeClient) CurrentUser(_ context.Context) (*types.User, error) {
	if err := f.next("current_user"); err != nil {
		return nil, err
	}
	user := f.user
	return &user, nil
}

func (f *fakeClient) SavedTracks(_ context.Context, offset, limit int) ([]types.PlaylistItem, error) {
	f.pageCalls = append(f.pageCalls, pageCall{source: types.LikedSongsSourceID, offset: offset, limit: limit})
	if err := f.next("saved"); err != nil {
		return nil, err
	}
	return page(f.saved, offset, limit), nil
}

func (f *fakeClient) PlaylistTracks(_ context.Context, playlistID string, offset, limit int) ([]types.PlaylistItem, error) {
	f.pageCalls = append(f.pageCalls, pageCall{source: playlistID, offset: offset, limit: limit})
	if err := f.next("playlist"); err != nil {
		return nil, err
	}
	items, ok := f.playlists[playlistID]
	if !ok {
		return nil, &types.ProviderError{Op: "playlist tracks", Status: http.StatusNotFound, Message: "Not found"}
	}
	return page(items, offset, limit), nil
}

func (f *fakeClient) CreatePlaylist(_ context.Context, ownerID, name string, opts types.PlaylistOptions) (*types.Playlist, error) {
	f.created = append(f.created, createCall{ownerID: ownerID, name: name, opts: opts})
	if err := f.next("create"); err != nil {
		return nil, err
	}
	if f.createResp != nil {
		return f.createResp, nil
	}
	return &types.Playlist{
		ID:          "new-playlist",
		Name:        name,
		URI:         "spotify:playlist:new-playlist",
		ExternalURL: "https://open.spotify.com/playlist/new-playlist",
		OwnerID:     ownerID,
	}, nil
}

func (f *fakeClient) AddTracks(_ context.Context, _ string, uris []string) error {
	if err := f.next("add"); err != nil {
		return err
	}
	batch := make([]string, len(uris))
	copy(batch, uris)
	f.added = append(f.added, batch)
	return nil
}

func (f *fakeClient) RemoveTracks(_ context.Context, _ string, uris []string) error {
	if err := f.next("remove"); err != nil {
		return err
	}
	f.removed = append(f.removed, uris)
	return nil
}

func (f *fakeClient) UserPlaylists(_ context.Context, _, _ int) ([]types.Playlist, error) {
	return nil, f.next("user_playlists")
}

func (f *fakeClient) GetPlaylist(_ context.Context, playlistID string) (*types.Playlist, error) {
	if err := f.next("get_playlist"); err != nil {
		return nil, err
	}
	meta, ok := f.meta[playlistID]
	if !ok {
		return nil, &types.ProviderError{Op: "get playlist", Status: http.StatusNotFound, Message: "Not found"}
	}
	return &meta, nil
}

func (f *fakeClient) RefreshCredentials(_ context.Context) error {
	f.refreshes++
	return f.refreshErr
}

func (f *fakeClient) addedURIs() []string {
	var all []string
	for _, batch := range f.added {
		all = append(all, batch...)
	}
	return all
}

func page(items []types.PlaylistItem, offset, limit int) []types.PlaylistItem {
	if offset >= len(items) {
		return []types.PlaylistItem{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

func track(id string) types.PlaylistItem {
	return types.PlaylistItem{Track: &types.Track{
		ID:      id,
		URI:     "spotify:track:" + id,
		Name:    "Track " + id,
		Artists: []types.Artist{{ID: "artist-" + id, Name: "Artist " + id}},
	}}
}

func tracks(ids ...string) []types.PlaylistItem {
	items := make([]types.PlaylistItem, len(ids))
	for i, id := range ids {
		items[i] = track(id)
	}
	return items
}

func numbered(prefix string, n int) []types.PlaylistItem {
	items := make([]types.PlaylistItem, n)
	for i := range items {
		items[i] = track(fmt.Sprintf("%s%03d", prefix, i))
	}
	return items
}

func uris(items []types.PlaylistItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Track.URI)
	}
	return out
}

func authExpired() error {
	return &types.ProviderError{Op: "test", Status: http.StatusUnauthorized, Message: "The access token expired"}
}

func forbidden() error {
	return &types.ProviderError{Op: "test", Status: http.StatusForbidden, Message: "Insufficient client scope"}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type recordingRecorder struct {
	refreshes []bool
	completed map[string]int
	failed    map[string]int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{completed: make(map[string]int), failed: make(map[string]int)}
}

func (r *recordingRecorder) CredentialsRefreshed(ok bool) {
	r.refreshes = append(r.refreshes, ok)
}

func (r *recordingRecorder) OperationCompleted(op string, tracksAdded int) {
	r.completed[op] += tracksAdded
}

func (r *recordingRecorder) OperationFailed(op string, _ error) {
	r.failed[op]++
}
