package moderation

import (
	"errors"
	"fmt"
)

// Default per-signal thresholds. A score at or above its threshold flags the text.
const (
	ToxicityThreshold       = 0.50
	InsultThreshold         = 0.50
	ThreatThreshold         = 0.40
	IdentityAttackThreshold = 0.25
)

// Signal names used in results and logs.
const (
	SignalToxicity       = "toxicity"
	SignalInsult         = "insult"
	SignalThreat         = "threat"
	SignalIdentityAttack = "identity_attack"
)

type Thresholds struct {
	Toxicity       float64 `mapstructure:"toxicity" json:"toxicity"`
	Insult         float64 `mapstructure:"insult" json:"insult"`
	Threat         float64 `mapstructure:"threat" json:"threat"`
	IdentityAttack float64 `mapstructure:"identity-attack" json:"identity_attack"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Toxicity:       ToxicityThreshold,
		Insult:         InsultThreshold,
		Threat:         ThreatThreshold,
		IdentityAttack: IdentityAttackThreshold,
	}
}

// Validate requires every threshold to lie in (0, 1].
func (t Thresholds) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		SignalToxicity:       t.Toxicity,
		SignalInsult:         t.Insult,
		SignalThreat:         t.Threat,
		SignalIdentityAttack: t.IdentityAttack,
	} {
		if !(v > 0 && v <= 1) {
			errs = append(errs, fmt.Errorf("%s threshold must be in (0, 1], got %v", name, v))
		}
	}
	return errors.Join(errs...)
}
