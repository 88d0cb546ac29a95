// Package matching scores how well a candidate fits a job offer.
package matching

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingCandidate = errors.New("candidate is required")
	ErrMissingOffer     = errors.New("offer is required")
)

// Scorer computes MatchResults. It holds only configuration and is safe for concurrent use.
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scorer config: %w", err)
	}
	return &Scorer{cfg: cfg}, nil
}

// NewDefaultScorer returns a scorer with DefaultConfig.
func NewDefaultScorer() *Scorer {
	return &Scorer{cfg: DefaultConfig()}
}

func (s *Scorer) Config() Config {
	return s.cfg
}

// Score never mutates its inputs. Missing optional data falls back to the
// unconstrained (100) or no-credit (0) defaults.
func (s *Scorer) Score(candidate *CandidateProfile, offer *JobOffer) (MatchResult, error) {
	if candidate == nil || strings.TrimSpace(candidate.ID) == "" {
		return MatchResult{}, ErrMissingCandidate
	}
	if offer == nil || strings.TrimSpace(offer.ID) == "" {
		return MatchResult{}, ErrMissingOffer
	}

	skills, matched := skillsScore(candidate.Skills, offer.RequiredSkills)
	location, distance := s.cfg.Location.locationScore(candidate.Location, offer.Location)

	result := MatchResult{
		Offer:               offer,
		Candidate:           candidate,
		SkillsScore:         skills,
		LocationScore:       location,
		ContractScore:       contractScore(candidate.PreferredContracts, offer.Contract),
		ExperienceScore:     experienceScore(candidate.ExperienceYears, offer.MinExperienceYears),
		MatchedSkills:       matched,
		TotalRequiredSkills: len(offer.RequiredSkills),
		DistanceKm:          distance,
	}

	return result.WithOverall(s.aggregate(result)), nil
}

func (s *Scorer) aggregate(r MatchResult) float64 {
	w := s.cfg.Weights
	return (r.SkillsScore*w.Skills +
		r.LocationScore*w.Location +
		r.ContractScore*w.Contract +
		r.ExperienceScore*w.Experience) / 100
}
