package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/matching"
)

type minScoreFilter struct {
	toggle
	min float64
}

// NewMinScore creates a filter that removes matches below a minimum overall score.
func NewMinScore() Filter {
	return &minScoreFilter{}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Validate(cfg *Config) error {
	if cfg.MinScore < 0 || cfg.MinScore > 100 {
		return fmt.Errorf("minimum score must be in [0, 100], got %v", cfg.MinScore)
	}
	f.min = cfg.MinScore
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, deps Deps, m *Matches) (*Matches, Step, error) {
	initial := m.Len()
	if f.min == 0 {
		return m, Step{Initial: initial, Left: initial}, nil
	}

	dropped := m.Keep(func(r matching.MatchResult) bool { return r.Overall() >= f.min })
	if len(dropped) > 0 {
		deps.logger().Debug("excluding matches below minimum score",
			zap.Float64("min_score", f.min),
			zap.Strings("excluded_matches", dropped),
		)
	}

	return m, Step{Initial: initial, Dropped: len(dropped), Left: m.Len()}, nil
}

func (f *minScoreFilter) Status() Status {
	return f.status(f.Name(), map[string]string{"min_score": strconv.FormatFloat(f.min, 'f', 2, 64)})
}

type minTierFilter struct {
	toggle
	min    matching.Tier
	active bool
}

// NewMinTier creates a filter that removes matches below a tier.
func NewMinTier() Filter {
	return &minTierFilter{}
}

func (f *minTierFilter) Name() string { return "min_tier" }

func (f *minTierFilter) Validate(cfg *Config) error {
	tier, err := matching.ParseTier(cfg.MinTier)
	if err != nil {
		return err
	}
	f.min = tier
	f.active = tier > matching.TierWeak
	return nil
}

func (f *minTierFilter) Apply(_ context.Context, deps Deps, m *Matches) (*Matches, Step, error) {
	initial := m.Len()
	if !f.active {
		return m, Step{Initial: initial, Left: initial}, nil
	}

	dropped := m.Keep(func(r matching.MatchResult) bool { return r.Tier() >= f.min })
	if len(dropped) > 0 {
		deps.logger().Debug("excluding matches below minimum tier",
			zap.Stringer("min_tier", f.min),
			zap.Strings("excluded_matches", dropped),
		)
	}

	return m, Step{Initial: initial, Dropped: len(dropped), Left: m.Len()}, nil
}

func (f *minTierFilter) Status() Status {
	return f.status(f.Name(), map[string]string{"min_tier": f.min.String()})
}

type limitFilter struct {
	toggle
	limit int
}

// NewLimit creates a filter that keeps only the first N matches.
func NewLimit() Filter {
	return &limitFilter{}
}

func (f *limitFilter) Name() string { return "limit" }

func (f *limitFilter) Validate(cfg *Config) error {
	if cfg.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", cfg.Limit)
	}
	f.limit = cfg.Limit
	return nil
}

func (f *limitFilter) Apply(_ context.Context, _ Deps, m *Matches) (*Matches, Step, error) {
	initial := m.Len()
	if f.limit == 0 || initial <= f.limit {
		return m, Step{Initial: initial, Left: initial}, nil
	}

	clear(m.Items[f.limit:])
	m.Items = m.Items[:f.limit]
	return m, Step{Initial: initial, Dropped: initial - f.limit, Left: m.Len()}, nil
}

func (f *limitFilter) Status() Status {
	details := map[string]string{}
	if f.limit > 0 {
		details["limit"] = strconv.Itoa(f.limit)
	}
	return f.status(f.Name(), details)
}
