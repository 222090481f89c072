package search

import (
	"errors"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"

	"github.com/toozej/fuzic/internal/types"
)

// ErrNoMatch is returned by BestMatch when no playlist resembles the query.
var ErrNoMatch = errors.New("no matching playlist")

// PlaylistSearcher filters and resolves playlists by name
type PlaylistSearcher struct {
	logger *logrus.Logger
}

// NewPlaylistSearcher creates a new playlist searcher
func NewPlaylistSearcher(logger *logrus.Logger) *PlaylistSearcher {
	return &PlaylistSearcher{logger: logger}
}

// PlaylistMatch is a playlist resolved from a free-text query with a confidence score
type PlaylistMatch struct {
	Playlist   types.Playlist `json:"playlist"`
	Query      string         `json:"query"`
	Confidence float64        `json:"confidence"`
}

// IsHighConfidence returns true if the match confidence is at least 0.8
func (m PlaylistMatch) IsHighConfidence() bool {
	return m.Confidence >= 0.8
}

// IsLowConfidence returns true if the match confidence is below 0.5
func (m PlaylistMatch) IsLowConfidence() bool {
	return m.Confidence < 0.5
}

// playlistNames adapts a playlist slice to fuzzy.Source.
type playlistNames []types.Playlist

func (p playlistNames) String(i int) string { return strings.ToLower(p[i].Name) }
func (p playlistNames) Len() int            { return len(p) }

// Filter returns the playlists whose names match term. Substring matches come
// first in library order, followed by fuzzy matches ranked by score. A blank term
// returns every playlist.
func (s *PlaylistSearcher) Filter(playlists []types.Playlist, term string) []types.Playlist {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return playlists
	}

	result := make([]types.Playlist, 0)
	taken := make(map[int]bool)
	for i, pl := range playlists {
		if strings.Contains(strings.ToLower(pl.Name), term) {
			result = append(result, pl)
			taken[i] = true
		}
	}

	for _, match := range fuzzy.FindFrom(term, playlistNames(playlists)) {
		if !taken[match.Index] {
			result = append(result, playlists[match.Index])
			taken[match.Index] = true
		}
	}

	s.logger.WithFields(logrus.Fields{
		"component": "playlist_searcher",
		"term":      term,
		"total":     len(playlists),
		"matched":   len(result),
	}).Debug("Filtered playlists")

	return result
}

// BestMatch resolves query to the single most similar playlist.
func (s *PlaylistSearcher) BestMatch(playlists []types.Playlist, query string) (*PlaylistMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.ValidationError("playlist query cannot be empty")
	}

	var best *PlaylistMatch
	for _, pl := range playlists {
		confidence := matchConfidence(query, pl.Name)
		if confidence == 0 {
			continue
		}
		if best == nil || confidence > best.Confidence {
			best = &PlaylistMatch{Playlist: pl, Query: query, Confidence: confidence}
		}
	}

	if best == nil {
		s.logger.WithField("query", query).Debug("No playlist matched query")
		return nil, ErrNoMatch
	}

	s.logger.WithFields(logrus.Fields{
		"query":            query,
		"matched_playlist": best.Playlist.Name,
		"confidence":       best.Confidence,
	}).Info("Found playlist match")

	return best, nil
}

// matchConfidence scores how well name matches query, between 0.0 and 1.0. Zero
// means no match at all.
func matchConfidence(query, name string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	n := strings.ToLower(strings.TrimSpace(name))
	if q == "" || n == "" {
		return 0
	}

	if q == n {
		return 1.0
	}

	// query contained in name scores 0.8-1.0
	if strings.Contains(n, q) {
		ratio := float64(len(q)) / float64(len(n))
		return 0.8 + (ratio * 0.2)
	}

	// name contained in query scores 0.7-0.9
	if strings.Contains(q, n) {
		ratio := float64(len(n)) / float64(len(q))
		return 0.7 + (ratio * 0.2)
	}

	matches := fuzzy.Find(q, []string{n})
	if len(matches) == 0 {
		return 0
	}

	// fuzzy scores grow with consecutive and word-boundary hits; map into 0.1-0.7
	confidence := (float64(matches[0].Score) / float64(len(q)*2)) * 0.7
	return min(max(confidence, 0.1), 0.7)
}
