// Package moderation decides whether job offer text is harmful enough to flag.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/ai"
	"github.com/spigell/offer-matcher/internal/logger"
	"github.com/spigell/offer-matcher/internal/matching"
)

// ErrClassificationUnavailable wraps any failure of the text classifier.
var ErrClassificationUnavailable = errors.New("classification unavailable")

// Classifier turns raw classifier scores into moderation decisions.
type Classifier struct {
	collaborator ai.TextClassifier
	thresholds   Thresholds
	logger       *zap.Logger
}

func NewClassifier(collaborator ai.TextClassifier, thresholds Thresholds, log *zap.Logger) (*Classifier, error) {
	if collaborator == nil {
		return nil, errors.New("text classifier is required")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid moderation thresholds: %w", err)
	}

	return &Classifier{
		collaborator: collaborator,
		thresholds:   thresholds,
		logger:       logger.WithFields(log),
	}, nil
}

func (c *Classifier) Thresholds() Thresholds { return c.thresholds }

// Classify scores text once. Collaborator failures are not retried here.
func (c *Classifier) Classify(ctx context.Context, text string) (ModerationResult, error) {
	scores, err := c.collaborator.Classify(ctx, text)
	return c.judge(scores, err)
}

func (c *Classifier) judge(scores *ai.RiskScores, err error) (ModerationResult, error) {
	if err != nil {
		return ModerationResult{}, fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)
	}
	if scores == nil {
		return ModerationResult{}, fmt.Errorf("%w: classifier returned no scores", ErrClassificationUnavailable)
	}
	for _, v := range []float64{scores.Toxicity, scores.Insult, scores.Threat, scores.IdentityAttack} {
		if math.IsNaN(v) {
			return ModerationResult{}, fmt.Errorf("%w: classifier returned a NaN score", ErrClassificationUnavailable)
		}
	}

	return NewModerationResult(*scores, c.thresholds), nil
}

// ClassifyOffer classifies the offer title and description.
func (c *Classifier) ClassifyOffer(ctx context.Context, offer *matching.JobOffer) (ModerationResult, error) {
	if offer == nil {
		return ModerationResult{}, matching.ErrMissingOffer
	}

	result, err := c.Classify(ctx, offer.Text())
	if err != nil {
		return ModerationResult{}, fmt.Errorf("offer %s: %w", offer.ID, err)
	}

	c.logVerdict(offer, result)
	return result, nil
}

// Verdict is the moderation outcome for one offer of a batch.
type Verdict struct {
	Result ModerationResult
	Err    error
}

// ClassifyOffers classifies offers, in one batch when the collaborator supports it.
// Verdicts keep the order of offers; a failed offer does not stop the others.
func (c *Classifier) ClassifyOffers(ctx context.Context, offers []*matching.JobOffer) []Verdict {
	verdicts := make([]Verdict, len(offers))

	batcher, ok := c.collaborator.(ai.BatchClassifier)
	if !ok {
		for i, offer := range offers {
			if err := ctx.Err(); err != nil {
				verdicts[i].Err = fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)
				continue
			}
			verdicts[i].Result, verdicts[i].Err = c.ClassifyOffer(ctx, offer)
		}
		return verdicts
	}

	texts := make([]string, 0, len(offers))
	index := make([]int, 0, len(offers))
	for i, offer := range offers {
		if offer == nil {
			verdicts[i].Err = matching.ErrMissingOffer
			continue
		}
		texts = append(texts, offer.Text())
		index = append(index, i)
	}

	c.logger.Debug("classifying offers in a batch", zap.Int("offers", len(texts)))

	answered := make([]bool, len(texts))
	for _, r := range batcher.ClassifyBatch(ctx, texts) {
		if r.Index < 0 || r.Index >= len(index) {
			continue
		}
		answered[r.Index] = true
		offer := offers[index[r.Index]]
		result, err := c.judge(r.Scores, r.Error)
		if err != nil {
			verdicts[index[r.Index]].Err = fmt.Errorf("offer %s: %w", offer.ID, err)
			continue
		}
		c.logVerdict(offer, result)
		verdicts[index[r.Index]].Result = result
	}

	for i, ok := range answered {
		if !ok {
			offer := offers[index[i]]
			verdicts[index[i]].Err = fmt.Errorf("offer %s: %w: missing from batch response", offer.ID, ErrClassificationUnavailable)
		}
	}

	return verdicts
}

func (c *Classifier) logVerdict(offer *matching.JobOffer, result ModerationResult) {
	log := c.logger.With(logger.SubjectFields(offer.ID, "")...)
	if result.Flagged() {
		log.Info("offer flagged", zap.Strings("reasons", result.Reasons()))
	} else {
		log.Debug("offer passed moderation")
	}
}

// MarkFlagged returns a copy of offer carrying the moderation flag when result is flagged.
// An offer that already carries a flag keeps its original timestamp.
func MarkFlagged(offer *matching.JobOffer, result ModerationResult, now time.Time) *matching.JobOffer {
	if offer == nil {
		return nil
	}

	marked := *offer
	if !result.Flagged() || offer.Flagged {
		return &marked
	}

	flaggedAt := now.UTC()
	marked.Flagged = true
	marked.FlaggedAt = &flaggedAt
	return &marked
}
