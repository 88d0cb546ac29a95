package filtering

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/offer-matcher/internal/ai"
	"github.com/spigell/offer-matcher/internal/matching"
	"github.com/spigell/offer-matcher/internal/moderation"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func result(offer *matching.JobOffer, candidateID string, overall float64) matching.MatchResult {
	return matching.MatchResult{
		Offer:     offer,
		Candidate: &matching.CandidateProfile{ID: candidateID},
	}.WithOverall(overall)
}

func openOffer(id string) *matching.JobOffer {
	return &matching.JobOffer{ID: id, Status: matching.StatusOpen}
}

func ids(m *Matches) string {
	out := make([]string, 0, m.Len())
	for _, item := range m.Items {
		out = append(out, MatchID(item))
	}
	return strings.Join(out, ",")
}

func run(t *testing.T, cfg *Config, steps []Filter, m *Matches) *Matches {
	t.Helper()
	out, err := Run(context.Background(), cfg, Deps{Logger: zap.NewNop(), Now: func() time.Time { return now }}, steps, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return out
}

func TestMinScoreAndTier(t *testing.T) {
	o := openOffer("o1")
	m := NewMatches([]matching.MatchResult{
		result(o, "a", 90),
		result(o, "b", 72),
		result(o, "c", 55),
		result(o, "d", 20),
	})

	out := run(t, &Config{MinScore: 50}, []Filter{NewMinScore()}, m)
	if got := ids(out); got != "o1/a,o1/b,o1/c" {
		t.Fatalf("unexpected matches after min_score: %s", got)
	}

	out = run(t, &Config{MinTier: "good"}, []Filter{NewMinTier()}, out)
	if got := ids(out); got != "o1/a,o1/b" {
		t.Fatalf("unexpected matches after min_tier: %s", got)
	}
}

func TestOpenAndFlaggedOffers(t *testing.T) {
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired := &matching.JobOffer{ID: "expired", Status: matching.StatusOpen, Deadline: &past}
	pending := &matching.JobOffer{ID: "pending", Status: matching.StatusOpen, Deadline: &future}
	closed := &matching.JobOffer{ID: "closed", Status: matching.StatusClosed}
	flagged := &matching.JobOffer{ID: "flagged", Status: matching.StatusOpen, Flagged: true}

	m := NewMatches([]matching.MatchResult{
		result(expired, "c", 80),
		result(pending, "c", 70),
		result(closed, "c", 60),
		result(flagged, "c", 50),
	})

	out := run(t, nil, []Filter{NewOpenOffers(), NewFlaggedOffers()}, m)
	if got := ids(out); got != "pending/c" {
		t.Fatalf("unexpected matches: %s", got)
	}
}

func TestExcludeFileUsesLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flagged.json")
	ledger := &moderation.Ledger{}
	verdict := moderation.NewModerationResult(ai.RiskScores{Toxicity: 0.9}, moderation.DefaultThresholds())
	ledger.Append(moderation.NewFlaggedOffer(openOffer("o2"), verdict, now))
	if err := ledger.ToFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	core, observed := observer.New(zapcore.InfoLevel)
	m := NewMatches([]matching.MatchResult{
		result1("o1", 90),
		result1("o2", 80),
		result1("o3", 70),
	})

	out, err := Run(context.Background(), &Config{ExcludeFile: path}, Deps{Logger: zap.New(core)}, []Filter{NewExcludeFile()}, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(out); got != "o1/c,o3/c" {
		t.Fatalf("unexpected matches: %s", got)
	}

	entries := observed.FilterMessage("filter step").All()
	if len(entries) != 1 || entries[0].ContextMap()["dropped"] != int64(1) {
		t.Fatalf("expected one step entry with one drop, got %+v", entries)
	}
}

func result1(offerID string, overall float64) matching.MatchResult {
	return result(openOffer(offerID), "c", overall)
}

func TestLimitKeepsOrder(t *testing.T) {
	m := NewMatches([]matching.MatchResult{result1("a", 90), result1("b", 80), result1("c", 70)})

	out := run(t, &Config{Limit: 2}, []Filter{NewLimit()}, m)
	if got := ids(out); got != "a/c,b/c" {
		t.Fatalf("unexpected matches: %s", got)
	}

	out = run(t, &Config{Limit: 5}, []Filter{NewLimit()}, out)
	if out.Len() != 2 {
		t.Fatalf("expected limit above length to keep everything, got %d", out.Len())
	}
}

func TestDefaultPipeline(t *testing.T) {
	closed := &matching.JobOffer{ID: "closed", Status: matching.StatusClosed}
	m := NewMatches([]matching.MatchResult{
		result(closed, "x", 99),
		result1("a", 95),
		result1("b", 75),
		result1("c", 60),
		result1("d", 10),
	})

	out := run(t, &Config{MinScore: 40, MinTier: "fair", Limit: 2}, Default(), m)
	if got := ids(out); got != "a/c,b/c" {
		t.Fatalf("unexpected matches: %s", got)
	}
}

func TestRunValidatesEnabledSteps(t *testing.T) {
	steps := []Filter{NewMinScore(), NewMinTier(), NewLimit()}

	for _, cfg := range []*Config{{MinScore: 120}, {MinTier: "legendary"}, {Limit: -1}} {
		if _, err := Run(context.Background(), cfg, Deps{}, steps, &Matches{}); err == nil {
			t.Fatalf("expected validation error for %+v", cfg)
		}
	}

	DisableByName(steps, "min_tier", "not needed")
	if _, err := Run(context.Background(), &Config{MinTier: "legendary"}, Deps{}, steps, &Matches{}); err != nil {
		t.Fatalf("disabled step must not be validated: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	steps := Default()
	DisableByName(steps, "flagged_offers", "include flagged")
	if _, err := Run(context.Background(), &Config{Limit: 3, ExcludeFile: "ledger.json"}, Deps{}, steps, &Matches{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := Describe(steps)
	if len(statuses) != len(steps) {
		t.Fatalf("expected %d statuses, got %d", len(steps), len(statuses))
	}

	byName := map[string]Status{}
	for _, s := range statuses {
		byName[s.Name] = s
	}
	if s := byName["flagged_offers"]; s.Enabled || s.Reason != "include flagged" {
		t.Fatalf("unexpected flagged_offers status: %+v", s)
	}
	if byName["limit"].Details["limit"] != "3" {
		t.Fatalf("unexpected limit status: %+v", byName["limit"])
	}
	if byName["exclude_file"].Details["path"] != "ledger.json" {
		t.Fatalf("unexpected exclude_file status: %+v", byName["exclude_file"])
	}
}
