package filtering

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/matching"
	"github.com/spigell/offer-matcher/internal/moderation"
)

type excludeFileFilter struct {
	toggle
	path string
}

// NewExcludeFile creates a filter that removes matches for offers listed in the moderation ledger.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = strings.TrimSpace(cfg.ExcludeFile)
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, m *Matches) (*Matches, Step, error) {
	initial := m.Len()
	if f.path == "" {
		return m, Step{Initial: initial, Left: initial}, nil
	}

	ledger, err := moderation.LoadLedger(f.path)
	if err != nil {
		return m, Step{}, fmt.Errorf("getting flagged offers from file: %w", err)
	}

	ids := ledger.OfferIDs()
	dropped := m.Keep(func(r matching.MatchResult) bool {
		return !slices.Contains(ids, r.OfferID())
	})
	if len(dropped) > 0 {
		deps.logger().Info("excluding matches based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_matches", dropped),
			zap.Int("matches_left", m.Len()),
		)
	}

	return m, Step{Initial: initial, Dropped: len(dropped), Left: m.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return f.status(f.Name(), details)
}
