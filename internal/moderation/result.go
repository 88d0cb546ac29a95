package moderation

import (
	"encoding/json"
	"math"

	"github.com/spigell/offer-matcher/internal/ai"
)

// ModerationResult holds classifier scores and the thresholds they were judged against.
// The flag is always derived from the two, so it cannot disagree with the scores.
// A zero value judges its (zero) scores against DefaultThresholds.
type ModerationResult struct {
	scores     ai.RiskScores
	thresholds Thresholds
}

// NewModerationResult clamps scores to [0,1] and pairs them with thresholds.
func NewModerationResult(scores ai.RiskScores, thresholds Thresholds) ModerationResult {
	return ModerationResult{
		scores: ai.RiskScores{
			Toxicity:       clampUnit(scores.Toxicity),
			Insult:         clampUnit(scores.Insult),
			Threat:         clampUnit(scores.Threat),
			IdentityAttack: clampUnit(scores.IdentityAttack),
		},
		thresholds: thresholds,
	}
}

func (r ModerationResult) Scores() ai.RiskScores   { return r.scores }
func (r ModerationResult) Thresholds() Thresholds  { return r.effectiveThresholds() }
func (r ModerationResult) Toxicity() float64       { return r.scores.Toxicity }
func (r ModerationResult) Insult() float64         { return r.scores.Insult }
func (r ModerationResult) Threat() float64         { return r.scores.Threat }
func (r ModerationResult) IdentityAttack() float64 { return r.scores.IdentityAttack }

// Flagged reports whether any signal reached its threshold.
func (r ModerationResult) Flagged() bool {
	return len(r.Reasons()) > 0
}

// Reasons lists the signals at or above their thresholds.
func (r ModerationResult) Reasons() []string {
	t := r.effectiveThresholds()

	var reasons []string
	if r.scores.Toxicity >= t.Toxicity {
		reasons = append(reasons, SignalToxicity)
	}
	if r.scores.Insult >= t.Insult {
		reasons = append(reasons, SignalInsult)
	}
	if r.scores.Threat >= t.Threat {
		reasons = append(reasons, SignalThreat)
	}
	if r.scores.IdentityAttack >= t.IdentityAttack {
		reasons = append(reasons, SignalIdentityAttack)
	}
	return reasons
}

func (r ModerationResult) effectiveThresholds() Thresholds {
	if r.thresholds == (Thresholds{}) {
		return DefaultThresholds()
	}
	return r.thresholds
}

func (r ModerationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ai.RiskScores
		Flagged bool     `json:"flagged"`
		Reasons []string `json:"reasons,omitempty"`
	}{
		RiskScores: r.scores,
		Flagged:    r.Flagged(),
		Reasons:    r.Reasons(),
	})
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
