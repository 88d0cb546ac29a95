package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/ai"
	"github.com/spigell/offer-matcher/internal/catalog"
	"github.com/spigell/offer-matcher/internal/matching"
	"github.com/spigell/offer-matcher/internal/moderation"
)

type scriptedClassifier map[string]*ai.RiskScores

func (s scriptedClassifier) Classify(_ context.Context, text string) (*ai.RiskScores, error) {
	scores, ok := s[text]
	if !ok {
		return nil, errors.New("classifier offline")
	}
	return scores, nil
}

func TestOffersToModerate(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	c, err := catalog.New(nil, []*matching.JobOffer{
		{ID: "open", Status: matching.StatusOpen},
		{ID: "closed", Status: matching.StatusClosed},
		{ID: "expired", Status: matching.StatusOpen, Deadline: &past},
		{ID: "flagged", Status: matching.StatusOpen, Flagged: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	offers, err := offersToModerate(c, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(offers) != 1 || offers[0].ID != "open" {
		t.Fatalf("expected only the open offer, got %d offers", len(offers))
	}

	offers, err = offersToModerate(c, []string{"closed", "flagged"}, now)
	if err != nil || len(offers) != 2 {
		t.Fatalf("expected explicit ids to be honoured, got %d offers, err %v", len(offers), err)
	}

	if _, err := offersToModerate(c, []string{"missing"}, now); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClassifyOffers(t *testing.T) {
	stub := scriptedClassifier{
		"Driver\n\nMen only.":    {IdentityAttack: 0.8},
		"Cook\n\nFriendly team.": {Toxicity: 0.05},
	}
	classifier, err := moderation.NewClassifier(stub, moderation.DefaultThresholds(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	offers := []*matching.JobOffer{
		{ID: "o1", Title: "Driver", Description: "Men only."},
		{ID: "o2", Title: "Cook", Description: "Friendly team."},
		{ID: "o3", Title: "Unknown"},
	}

	entries, flagged := classifyOffers(context.Background(), classifier, offers, zap.NewNop())

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if !entries[0].Offer.Flagged || entries[0].Offer.FlaggedAt == nil {
		t.Fatalf("expected first entry to carry the flag, got %+v", entries[0].Offer)
	}
	if offers[0].Flagged {
		t.Fatal("catalog offer must not be mutated")
	}
	if entries[1].Result.Flagged() || entries[1].Err != nil {
		t.Fatalf("expected clean second entry, got %+v", entries[1])
	}
	if !errors.Is(entries[2].Err, moderation.ErrClassificationUnavailable) {
		t.Fatalf("expected classification error, got %v", entries[2].Err)
	}

	if len(flagged) != 1 || flagged[0].OfferID != "o1" {
		t.Fatalf("expected o1 to be recorded, got %+v", flagged)
	}
}

func TestRedactedHidesPasswords(t *testing.T) {
	config := Config{Catalog: "postgres://matcher:s3cret@db:5432/offers"}
	config.Moderation.Cache.RedisURL = "redis://:hunter2@cache:6379/0"

	got := redacted(config)
	if strings.Contains(got.Catalog, "s3cret") || strings.Contains(got.Moderation.Cache.RedisURL, "hunter2") {
		t.Fatalf("expected passwords to be hidden, got %q and %q", got.Catalog, got.Moderation.Cache.RedisURL)
	}
	if config.Catalog != "postgres://matcher:s3cret@db:5432/offers" {
		t.Fatal("expected the original config to be untouched")
	}
	if redactURL("./catalog.yaml") != "./catalog.yaml" {
		t.Fatal("expected file paths to pass through")
	}
}

type failingFlagStore struct {
	fail   string
	marked []string
}

func (s *failingFlagStore) MarkFlagged(_ context.Context, offerID string, _ time.Time) error {
	if offerID == s.fail {
		return errors.New("connection reset")
	}
	s.marked = append(s.marked, offerID)
	return nil
}

func TestRecordFlaggedKeepsLedgerComplete(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	result := moderation.NewModerationResult(ai.RiskScores{Threat: 0.9}, moderation.DefaultThresholds())

	var flagged []*moderation.FlaggedOffer
	for _, id := range []string{"o1", "o2", "o3"} {
		flagged = append(flagged, moderation.NewFlaggedOffer(&matching.JobOffer{ID: id, Title: id}, result, now))
	}

	excludeFile := filepath.Join(t.TempDir(), "flagged.json")
	store := &failingFlagStore{fail: "o1"}

	err := recordFlagged(context.Background(), excludeFile, store, flagged, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected the store failure to be reported, got %v", err)
	}
	if fmt.Sprint(store.marked) != "[o2 o3]" {
		t.Fatalf("expected the remaining offers to be saved, got %v", store.marked)
	}

	ledger, err := moderation.LoadLedger(excludeFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(ledger.OfferIDs()) != "[o1 o2 o3]" {
		t.Fatalf("expected every flag in the ledger, got %v", ledger.OfferIDs())
	}
}

func TestRecordFlaggedWithoutStore(t *testing.T) {
	excludeFile := filepath.Join(t.TempDir(), "flagged.json")
	result := moderation.NewModerationResult(ai.RiskScores{Insult: 0.7}, moderation.DefaultThresholds())
	flagged := []*moderation.FlaggedOffer{
		moderation.NewFlaggedOffer(&matching.JobOffer{ID: "o1"}, result, time.Now()),
	}

	if err := recordFlagged(context.Background(), excludeFile, nil, flagged, zap.NewNop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
