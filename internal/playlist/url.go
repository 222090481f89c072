package playlist

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/toozej/fuzic/internal/types"
)

// Platforms recognised in playlist share links.
const (
	PlatformSpotify = "spotify"
	PlatformApple   = "apple"
	PlatformAmazon  = "amazon"
	PlatformYouTube = "youtube"
)

// PlaylistRef identifies a playlist on a streaming platform.
type PlaylistRef struct {
	Platform string
	ID       string
}

// ParsePlaylistURL extracts the platform and playlist ID from a share link or a
// spotify:playlist:<id> URI.
func ParsePlaylistURL(raw string) (PlaylistRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PlaylistRef{}, types.ValidationError("playlist URL is required")
	}

	if id, ok := strings.CutPrefix(raw, "spotify:playlist:"); ok {
		if id == "" {
			return PlaylistRef{}, types.ValidationError("playlist URL %q has no playlist ID", raw)
		}
		return PlaylistRef{Platform: PlatformSpotify, ID: id}, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return PlaylistRef{}, types.ValidationError("invalid playlist URL %q", raw)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	var ref PlaylistRef
	switch host {
	case "open.spotify.com":
		ref = PlaylistRef{Platform: PlatformSpotify, ID: segmentAfter(segments, "playlist")}
	case "music.apple.com":
		ref = PlaylistRef{Platform: PlatformApple, ID: segmentAfter(segments, "playlist")}
		// music.apple.com/<storefront>/playlist/<name>/<id>
		if len(segments) > 0 {
			if last := segments[len(segments)-1]; strings.HasPrefix(last, "pl.") {
				ref.ID = last
			}
		}
	case "music.amazon.com", "amazon.com":
		ref = PlaylistRef{Platform: PlatformAmazon, ID: segmentAfter(segments, "playlists")}
		if ref.ID == "" {
			ref.ID = segmentAfter(segments, "user-playlists")
		}
	case "music.youtube.com", "youtube.com":
		ref = PlaylistRef{Platform: PlatformYouTube, ID: u.Query().Get("list")}
	default:
		return PlaylistRef{}, fmt.Errorf("%w: %s", types.ErrUnsupportedPlatform, host)
	}

	if ref.ID == "" {
		return PlaylistRef{}, types.ValidationError("playlist URL %q has no playlist ID", raw)
	}
	return ref, nil
}

func segmentAfter(segments []string, key string) string {
	for i, s := range segments {
		if s == key && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}
