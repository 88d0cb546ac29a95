package filtering

import "github.com/spigell/offer-matcher/internal/matching"

// Matches is an ordered list of match results.
type Matches struct {
	Items []matching.MatchResult
}

func NewMatches(items []matching.MatchResult) *Matches {
	return &Matches{Items: items}
}

func (m *Matches) Len() int {
	return len(m.Items)
}

// Keep retains the items for which keep returns true, preserving order,
// and returns the ids of the dropped ones.
func (m *Matches) Keep(keep func(matching.MatchResult) bool) []string {
	kept := m.Items[:0]
	var dropped []string
	for _, item := range m.Items {
		if keep(item) {
			kept = append(kept, item)
			continue
		}
		dropped = append(dropped, MatchID(item))
	}
	clear(m.Items[len(kept):])
	m.Items = kept
	return dropped
}

// MatchID identifies a result as offer/candidate.
func MatchID(r matching.MatchResult) string {
	return r.OfferID() + "/" + r.CandidateID()
}
