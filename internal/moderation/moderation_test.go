package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/offer-matcher/internal/ai"
	"github.com/spigell/offer-matcher/internal/matching"
)

type stubClassifier struct {
	scores *ai.RiskScores
	err    error
	texts  []string
}

func (s *stubClassifier) Classify(_ context.Context, text string) (*ai.RiskScores, error) {
	s.texts = append(s.texts, text)
	return s.scores, s.err
}

func newClassifier(t *testing.T, stub *stubClassifier, log *zap.Logger) *Classifier {
	t.Helper()
	c, err := NewClassifier(stub, DefaultThresholds(), log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestClassifyFlagsOnToxicity(t *testing.T) {
	stub := &stubClassifier{scores: &ai.RiskScores{Toxicity: 0.55, Insult: 0.1, Threat: 0.1, IdentityAttack: 0.1}}

	result, err := newClassifier(t, stub, nil).Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Flagged() {
		t.Fatal("expected flagged result")
	}
	if got := strings.Join(result.Reasons(), ","); got != SignalToxicity {
		t.Fatalf("unexpected reasons: %s", got)
	}
}

func TestClassifyBelowAllThresholds(t *testing.T) {
	stub := &stubClassifier{scores: &ai.RiskScores{Toxicity: 0.3, Insult: 0.3, Threat: 0.3, IdentityAttack: 0.2}}

	result, err := newClassifier(t, stub, nil).Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Flagged() {
		t.Fatalf("expected result not flagged, reasons %v", result.Reasons())
	}
}

func TestFlaggedAtExactThresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scores ai.RiskScores
		reason string
	}{
		{name: "toxicity", scores: ai.RiskScores{Toxicity: 0.50}, reason: SignalToxicity},
		{name: "insult", scores: ai.RiskScores{Insult: 0.50}, reason: SignalInsult},
		{name: "threat", scores: ai.RiskScores{Threat: 0.40}, reason: SignalThreat},
		{name: "identity attack", scores: ai.RiskScores{IdentityAttack: 0.25}, reason: SignalIdentityAttack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := NewModerationResult(tt.scores, DefaultThresholds())
			if !result.Flagged() || result.Reasons()[0] != tt.reason {
				t.Fatalf("expected flagged by %s, got %v", tt.reason, result.Reasons())
			}

			below := tt.scores
			below.Toxicity = math.Max(0, below.Toxicity-0.01)
			below.Insult = math.Max(0, below.Insult-0.01)
			below.Threat = math.Max(0, below.Threat-0.01)
			below.IdentityAttack = math.Max(0, below.IdentityAttack-0.01)
			if NewModerationResult(below, DefaultThresholds()).Flagged() {
				t.Fatalf("expected not flagged just below threshold")
			}
		})
	}
}

func TestClassifyWrapsCollaboratorErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := newClassifier(t, &stubClassifier{err: boom}, nil)

	_, err := c.Classify(context.Background(), "text")
	if !errors.Is(err, ErrClassificationUnavailable) {
		t.Fatalf("expected ErrClassificationUnavailable, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error to be reachable, got %v", err)
	}

	c = newClassifier(t, &stubClassifier{scores: &ai.RiskScores{Toxicity: math.NaN()}}, nil)
	if _, err := c.Classify(context.Background(), "text"); !errors.Is(err, ErrClassificationUnavailable) {
		t.Fatalf("expected NaN scores to be rejected, got %v", err)
	}
}

func TestClassifyOfferUsesTitleAndDescription(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	stub := &stubClassifier{scores: &ai.RiskScores{IdentityAttack: 0.9}}

	offer := &matching.JobOffer{ID: "o1", Title: "Driver", Description: "Men only."}
	result, err := newClassifier(t, stub, zap.New(core)).ClassifyOffer(context.Background(), offer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stub.texts[0] != "Driver\n\nMen only." {
		t.Fatalf("unexpected classified text: %q", stub.texts[0])
	}
	if !result.Flagged() {
		t.Fatal("expected flagged offer")
	}

	entries := observed.FilterMessage("offer flagged").All()
	if len(entries) != 1 || entries[0].ContextMap()["offer_id"] != "o1" {
		t.Fatalf("expected flagged log entry for o1, got %+v", entries)
	}
}

func TestNewClassifierValidates(t *testing.T) {
	if _, err := NewClassifier(nil, DefaultThresholds(), nil); err == nil {
		t.Fatal("expected error without collaborator")
	}

	thresholds := DefaultThresholds()
	thresholds.Threat = 0
	if _, err := NewClassifier(&stubClassifier{}, thresholds, nil); err == nil {
		t.Fatal("expected error for zero threshold")
	}
}

func TestModerationResultJSON(t *testing.T) {
	result := NewModerationResult(ai.RiskScores{Toxicity: 1.5, Threat: 0.45}, DefaultThresholds())

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded["toxicity"] != 1.0 || decoded["flagged"] != true {
		t.Fatalf("unexpected json: %s", data)
	}
	if reasons, _ := decoded["reasons"].([]any); len(reasons) != 2 {
		t.Fatalf("expected two reasons, got %s", data)
	}
}

func TestMarkFlagged(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	offer := &matching.JobOffer{ID: "o1", Title: "Driver"}

	flagged := MarkFlagged(offer, NewModerationResult(ai.RiskScores{Threat: 0.9}, DefaultThresholds()), now)
	if !flagged.Flagged || flagged.FlaggedAt == nil || !flagged.FlaggedAt.Equal(now) {
		t.Fatalf("expected flagged copy, got %+v", flagged)
	}
	if offer.Flagged {
		t.Fatal("input offer was mutated")
	}

	clean := MarkFlagged(offer, NewModerationResult(ai.RiskScores{}, DefaultThresholds()), now)
	if clean.Flagged || clean.FlaggedAt != nil {
		t.Fatalf("expected unflagged copy, got %+v", clean)
	}

	again := MarkFlagged(flagged, NewModerationResult(ai.RiskScores{Threat: 0.9}, DefaultThresholds()), now.Add(time.Hour))
	if !again.FlaggedAt.Equal(now) {
		t.Fatalf("expected original flag time to be kept, got %v", again.FlaggedAt)
	}
}

func TestZeroValueResultIsNotFlagged(t *testing.T) {
	var zero ModerationResult
	if zero.Flagged() || len(zero.Reasons()) != 0 {
		t.Fatalf("expected zero value to be clean, got reasons %v", zero.Reasons())
	}
	if zero.Thresholds() != DefaultThresholds() {
		t.Fatalf("expected default thresholds for zero value, got %+v", zero.Thresholds())
	}

	offer := MarkFlagged(&matching.JobOffer{ID: "o1"}, ModerationResult{}, time.Now())
	if offer.Flagged || offer.FlaggedAt != nil {
		t.Fatalf("expected zero value result to leave the offer unflagged, got %+v", offer)
	}

	classifier, err := NewClassifier(&stubClassifier{err: errors.New("timeout")}, DefaultThresholds(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := classifier.ClassifyOffer(context.Background(), &matching.JobOffer{ID: "o2", Title: "Cook"})
	if err == nil {
		t.Fatal("expected classification error")
	}
	if result.Flagged() {
		t.Fatal("expected the result returned next to an error to be clean")
	}
}

type stubBatchClassifier struct {
	stubClassifier
	batches [][]string
	results func(texts []string) []ai.BatchResult
}

func (s *stubBatchClassifier) ClassifyBatch(_ context.Context, texts []string) []ai.BatchResult {
	s.batches = append(s.batches, texts)
	return s.results(texts)
}

func TestClassifyOffersUsesBatch(t *testing.T) {
	stub := &stubBatchClassifier{results: func(texts []string) []ai.BatchResult {
		// reversed, the third text unanswered
		return []ai.BatchResult{
			{Index: 1, Error: errors.New("503")},
			{Index: 0, Scores: &ai.RiskScores{Threat: 0.6}},
		}
	}}
	classifier, err := NewClassifier(stub, DefaultThresholds(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	offers := []*matching.JobOffer{
		{ID: "o1", Title: "Guard", Description: "Or else."},
		{ID: "o2", Title: "Cook"},
		{ID: "o3", Title: "Driver"},
	}
	verdicts := classifier.ClassifyOffers(context.Background(), offers)

	if len(stub.batches) != 1 || len(stub.batches[0]) != 3 || len(stub.texts) != 0 {
		t.Fatalf("expected a single batch call, got batches=%v single=%v", stub.batches, stub.texts)
	}
	if len(verdicts) != 3 {
		t.Fatalf("expected 3 verdicts, got %d", len(verdicts))
	}
	if verdicts[0].Err != nil || !verdicts[0].Result.Flagged() {
		t.Fatalf("expected o1 flagged, got %+v", verdicts[0])
	}
	if !errors.Is(verdicts[1].Err, ErrClassificationUnavailable) || !strings.Contains(verdicts[1].Err.Error(), "o2") {
		t.Fatalf("expected wrapped error for o2, got %v", verdicts[1].Err)
	}
	if !errors.Is(verdicts[2].Err, ErrClassificationUnavailable) || verdicts[2].Result.Flagged() {
		t.Fatalf("expected unanswered o3 to fail cleanly, got %+v", verdicts[2])
	}
}

func TestClassifyOffersWithoutBatchSupport(t *testing.T) {
	stub := &stubClassifier{scores: &ai.RiskScores{Insult: 0.1}}
	classifier, err := NewClassifier(stub, DefaultThresholds(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	offers := []*matching.JobOffer{{ID: "o1", Title: "Cook"}, {ID: "o2", Title: "Baker"}}
	verdicts := classifier.ClassifyOffers(context.Background(), offers)
	if len(stub.texts) != 2 || verdicts[0].Err != nil || verdicts[1].Result.Flagged() {
		t.Fatalf("expected two clean single calls, got texts=%v verdicts=%+v", stub.texts, verdicts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stub.texts = nil
	verdicts = classifier.ClassifyOffers(ctx, offers)
	if len(stub.texts) != 0 || !errors.Is(verdicts[0].Err, context.Canceled) {
		t.Fatalf("expected cancelled sweep to skip the collaborator, got %v", verdicts[0].Err)
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flagged.json")

	ledger, err := LoadLedger(path)
	if err != nil {
		t.Fatalf("expected missing ledger to load empty, got %v", err)
	}
	if len(ledger.Items) != 0 {
		t.Fatalf("expected empty ledger, got %d items", len(ledger.Items))
	}

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	result := NewModerationResult(ai.RiskScores{Insult: 0.7}, DefaultThresholds())
	first := NewFlaggedOffer(&matching.JobOffer{ID: "o1", Title: "One"}, result, now)
	second := NewFlaggedOffer(&matching.JobOffer{ID: "o2", Title: "Two"}, result, now)
	duplicate := NewFlaggedOffer(&matching.JobOffer{ID: "o1", Title: "One again"}, result, now)

	if added := ledger.Append(first, second, duplicate, nil); added != 2 {
		t.Fatalf("expected 2 entries added, got %d", added)
	}
	if err := ledger.ToFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := LoadLedger(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(loaded.OfferIDs(), ","); got != "o1,o2" {
		t.Fatalf("unexpected offer ids: %s", got)
	}
	if loaded.Items[0].ID == "" || loaded.Items[0].Scores.Insult != 0.7 || !loaded.Items[0].FlaggedAt.Equal(now) {
		t.Fatalf("unexpected entry: %+v", loaded.Items[0])
	}

	// a shorter rewrite must not leave trailing bytes behind
	loaded.Items = loaded.Items[:1]
	if err := loaded.ToFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := LoadLedger(path); err != nil {
		t.Fatalf("expected rewritten ledger to decode, got %v", err)
	}
}
