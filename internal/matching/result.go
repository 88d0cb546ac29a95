package matching

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Tier is the ordinal label derived from an overall score.
type Tier int

const (
	TierWeak Tier = iota
	TierFair
	TierGood
	TierExcellent
)

const (
	excellentFrom = 85.0
	goodFrom      = 70.0
	fairFrom      = 50.0
)

// TierFor classifies a score top-down.
func TierFor(score float64) Tier {
	switch {
	case score >= excellentFrom:
		return TierExcellent
	case score >= goodFrom:
		return TierGood
	case score >= fairFrom:
		return TierFair
	default:
		return TierWeak
	}
}

func (t Tier) String() string {
	switch t {
	case TierExcellent:
		return "EXCELLENT"
	case TierGood:
		return "GOOD"
	case TierFair:
		return "FAIR"
	case TierWeak:
		return "WEAK"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier accepts a tier name in any case.
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EXCELLENT":
		return TierExcellent, nil
	case "GOOD":
		return TierGood, nil
	case "FAIR":
		return TierFair, nil
	case "WEAK", "":
		return TierWeak, nil
	default:
		return TierWeak, fmt.Errorf("unknown tier %q", s)
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// MatchResult is the outcome of scoring one candidate against one offer.
// The overall score is only changed through WithOverall so that Tier always agrees with it.
type MatchResult struct {
	Offer     *JobOffer
	Candidate *CandidateProfile

	SkillsScore     float64
	LocationScore   float64
	ContractScore   float64
	ExperienceScore float64

	MatchedSkills       int
	TotalRequiredSkills int
	// DistanceKm is nil unless both parties have coordinates.
	DistanceKm *float64

	overall float64
}

func (r MatchResult) Overall() float64 {
	return r.overall
}

func (r MatchResult) Tier() Tier {
	return TierFor(r.overall)
}

// WithOverall returns a copy of r carrying the given overall score, clamped to [0,100].
func (r MatchResult) WithOverall(score float64) MatchResult {
	r.overall = clampScore(score)
	return r
}

func (r MatchResult) OfferID() string {
	if r.Offer == nil {
		return ""
	}
	return r.Offer.ID
}

func (r MatchResult) CandidateID() string {
	if r.Candidate == nil {
		return ""
	}
	return r.Candidate.ID
}

type matchResultJSON struct {
	OfferID             string   `json:"offer_id"`
	CandidateID         string   `json:"candidate_id"`
	SkillsScore         float64  `json:"skills_score"`
	LocationScore       float64  `json:"location_score"`
	ContractScore       float64  `json:"contract_score"`
	ExperienceScore     float64  `json:"experience_score"`
	Overall             float64  `json:"overall_score"`
	MatchedSkills       int      `json:"matched_skills"`
	TotalRequiredSkills int      `json:"total_required_skills"`
	DistanceKm          *float64 `json:"distance_km"`
	Tier                Tier     `json:"tier"`
}

func (r MatchResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(matchResultJSON{
		OfferID:             r.OfferID(),
		CandidateID:         r.CandidateID(),
		SkillsScore:         round(r.SkillsScore),
		LocationScore:       round(r.LocationScore),
		ContractScore:       round(r.ContractScore),
		ExperienceScore:     round(r.ExperienceScore),
		Overall:             round(r.overall),
		MatchedSkills:       r.MatchedSkills,
		TotalRequiredSkills: r.TotalRequiredSkills,
		DistanceKm:          r.DistanceKm,
		Tier:                r.Tier(),
	})
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// round keeps two decimals for presentation.
func round(v float64) float64 {
	return math.Round(v*100) / 100
}
