package matching

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ContractType is an employment contract kind, stored upper case.
type ContractType string

const (
	ContractFullTime   ContractType = "FULL_TIME"
	ContractPartTime   ContractType = "PART_TIME"
	ContractFixedTerm  ContractType = "FIXED_TERM"
	ContractFreelance  ContractType = "FREELANCE"
	ContractInternship ContractType = "INTERNSHIP"
)

var knownContracts = []ContractType{
	ContractFullTime,
	ContractPartTime,
	ContractFixedTerm,
	ContractFreelance,
	ContractInternship,
}

// ParseContractType normalizes s and checks it against the known contract kinds.
func ParseContractType(s string) (ContractType, error) {
	normalized := ContractType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if normalized == "" {
		return "", nil
	}
	for _, known := range knownContracts {
		if known == normalized {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("unknown contract type %q", s)
}

func (c *ContractType) UnmarshalText(text []byte) error {
	parsed, err := ParseContractType(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type OfferStatus string

const (
	StatusOpen   OfferStatus = "OPEN"
	StatusClosed OfferStatus = "CLOSED"
)

func (s *OfferStatus) UnmarshalText(text []byte) error {
	switch OfferStatus(strings.ToUpper(strings.TrimSpace(string(text)))) {
	case "", StatusOpen:
		*s = StatusOpen
	case StatusClosed:
		*s = StatusClosed
	default:
		return fmt.Errorf("unknown offer status %q", string(text))
	}
	return nil
}

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is a free-text place with optional coordinates.
type Location struct {
	Text        string       `json:"text,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// NewLocation builds a Location from optional latitude and longitude.
// Exactly one of them being set is an error.
func NewLocation(text string, latitude, longitude *float64) (Location, error) {
	loc := Location{Text: strings.TrimSpace(text)}
	switch {
	case latitude == nil && longitude == nil:
		return loc, nil
	case latitude == nil || longitude == nil:
		return loc, errors.New("latitude and longitude must be set together")
	}

	if *latitude < -90 || *latitude > 90 {
		return loc, fmt.Errorf("latitude %v out of range", *latitude)
	}
	if *longitude < -180 || *longitude > 180 {
		return loc, fmt.Errorf("longitude %v out of range", *longitude)
	}

	loc.Coordinates = &Coordinates{Latitude: *latitude, Longitude: *longitude}
	return loc, nil
}

// CandidateSkill is a skill declared by a candidate.
type CandidateSkill struct {
	Name              string     `json:"name"`
	Level             SkillLevel `json:"level"`
	YearsOfExperience float64    `json:"years_of_experience,omitempty"`
}

// RequiredSkill is a skill an offer asks for.
type RequiredSkill struct {
	Name  string     `json:"name"`
	Level SkillLevel `json:"level"`
}

type SalaryRange struct {
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`
}

type CandidateProfile struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Email              string           `json:"email,omitempty"`
	Location           Location         `json:"location"`
	Skills             []CandidateSkill `json:"skills,omitempty"`
	PreferredContracts []ContractType   `json:"preferred_contracts,omitempty"`
	ExperienceYears    float64          `json:"experience_years"`
	DesiredPosition    string           `json:"desired_position,omitempty"`
	ExpectedSalary     SalaryRange      `json:"expected_salary"`
}

type JobOffer struct {
	ID                 string          `json:"id"`
	RecruiterID        string          `json:"recruiter_id,omitempty"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Location           Location        `json:"location"`
	Contract           ContractType    `json:"contract,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	Deadline           *time.Time      `json:"deadline,omitempty"`
	Status             OfferStatus     `json:"status"`
	RequiredSkills     []RequiredSkill `json:"required_skills,omitempty"`
	MinExperienceYears float64         `json:"min_experience_years,omitempty"`
	Flagged            bool            `json:"flagged"`
	FlaggedAt          *time.Time      `json:"flagged_at,omitempty"`
}

// IsOpen reports whether the offer accepts applications at the given moment.
func (o *JobOffer) IsOpen(now time.Time) bool {
	if o.Status == StatusClosed {
		return false
	}
	return o.Deadline == nil || !now.After(*o.Deadline)
}

// Text returns the content submitted to moderation.
func (o *JobOffer) Text() string {
	return strings.TrimSpace(o.Title + "\n\n" + o.Description)
}

// NormalizeSkillName is the key used to compare skills between candidates and offers.
func NormalizeSkillName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Validate checks the candidate invariants.
func (c *CandidateProfile) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, errors.New("candidate id is required"))
	}

	seen := make(map[string]bool, len(c.Skills))
	for _, skill := range c.Skills {
		key := NormalizeSkillName(skill.Name)
		if key == "" {
			errs = append(errs, errors.New("candidate skill name is empty"))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate candidate skill %q", skill.Name))
		}
		seen[key] = true
		if skill.YearsOfExperience < 0 {
			errs = append(errs, fmt.Errorf("skill %q has negative years of experience", skill.Name))
		}
	}

	if c.ExpectedSalary.Max > 0 && c.ExpectedSalary.Min > c.ExpectedSalary.Max {
		errs = append(errs, errors.New("expected salary min is greater than max"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("candidate %q: %w", c.ID, errors.Join(errs...))
	}
	return nil
}

// Validate checks the offer invariants.
func (o *JobOffer) Validate() error {
	var errs []error
	if strings.TrimSpace(o.ID) == "" {
		errs = append(errs, errors.New("offer id is required"))
	}

	seen := make(map[string]bool, len(o.RequiredSkills))
	for _, skill := range o.RequiredSkills {
		key := NormalizeSkillName(skill.Name)
		if key == "" {
			errs = append(errs, errors.New("required skill name is empty"))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate required skill %q", skill.Name))
		}
		seen[key] = true
	}

	if o.MinExperienceYears < 0 {
		errs = append(errs, errors.New("minimum experience must not be negative"))
	}
	if o.Deadline != nil && !o.CreatedAt.IsZero() && o.Deadline.Before(o.CreatedAt) {
		errs = append(errs, errors.New("deadline is before creation time"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("offer %q: %w", o.ID, errors.Join(errs...))
	}
	return nil
}
