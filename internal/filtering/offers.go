package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/matching"
)

type openOffersFilter struct {
	toggle
}

// NewOpenOffers creates a filter that removes matches whose offer is closed or past its deadline.
func NewOpenOffers() Filter {
	return &openOffersFilter{}
}

func (f *openOffersFilter) Name() string { return "open_offers" }

func (f *openOffersFilter) Validate(*Config) error { return nil }

func (f *openOffersFilter) Apply(_ context.Context, deps Deps, m *Matches) (*Matches, Step, error) {
	initial := m.Len()
	now := deps.now()

	dropped := m.Keep(func(r matching.MatchResult) bool {
		return r.Offer != nil && r.Offer.IsOpen(now)
	})
	if len(dropped) > 0 {
		deps.logger().Info("excluding matches for closed offers",
			zap.Strings("excluded_matches", dropped),
			zap.Int("matches_left", m.Len()),
		)
	}

	return m, Step{Initial: initial, Dropped: len(dropped), Left: m.Len()}, nil
}

func (f *openOffersFilter) Status() Status {
	return f.status(f.Name(), nil)
}

type flaggedOffersFilter struct {
	toggle
}

// NewFlaggedOffers creates a filter that removes matches whose offer carries the moderation flag.
func NewFlaggedOffers() Filter {
	return &flaggedOffersFilter{}
}

func (f *flaggedOffersFilter) Name() string { return "flagged_offers" }

func (f *flaggedOffersFilter) Validate(*Config) error { return nil }

func (f *flaggedOffersFilter) Apply(_ context.Context, deps Deps, m *Matches) (*Matches, Step, error) {
	initial := m.Len()

	dropped := m.Keep(func(r matching.MatchResult) bool {
		return r.Offer == nil || !r.Offer.Flagged
	})
	if len(dropped) > 0 {
		deps.logger().Info("excluding matches for flagged offers",
			zap.Strings("excluded_matches", dropped),
			zap.Int("matches_left", m.Len()),
		)
	}

	return m, Step{Initial: initial, Dropped: len(dropped), Left: m.Len()}, nil
}

func (f *flaggedOffersFilter) Status() Status {
	return f.status(f.Name(), nil)
}
