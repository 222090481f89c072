package playlist

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/toozej/fuzic/internal/types"
)

// artistMatcher reports whether an artist credit contains a search term,
// comparing case-folded text with combining marks stripped.
type artistMatcher struct {
	needle string
}

func newArtistMatcher(name string) artistMatcher {
	return artistMatcher{needle: foldName(name)}
}

func (m artistMatcher) matches(name string) bool {
	if m.needle == "" {
		return false
	}
	return strings.Contains(foldName(name), m.needle)
}

func (m artistMatcher) matchesAny(artists []types.Artist) bool {
	for _, artist := range artists {
		if m.matches(artist.Name) {
			return true
		}
	}
	return false
}

// foldName lowers case, removes accents and collapses whitespace.
func foldName(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}
