// Package duplicate tracks which tracks have already been collected during one
// aggregation run.
package duplicate

// Tracker is a set of track IDs. A Tracker is not safe for concurrent use.
type Tracker struct {
	seen map[string]struct{}
}

// NewTracker creates a Tracker sized for roughly expected IDs.
func NewTracker(expected int) *Tracker {
	return &Tracker{seen: make(map[string]struct{}, max(expected, 0))}
}

// Seen reports whether id was added before.
func (t *Tracker) Seen(id string) bool {
	_, ok := t.seen[id]
	return ok
}

// Add records id and reports whether it was new. Empty IDs are never recorded.
func (t *Tracker) Add(id string) bool {
	if id == "" || t.Seen(id) {
		return false
	}
	t.seen[id] = struct{}{}
	return true
}

// Len returns the number of distinct IDs recorded.
func (t *Tracker) Len() int {
	return len(t.seen)
}
