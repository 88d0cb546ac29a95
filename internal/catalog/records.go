package catalog

import (
	"time"

	"github.com/spigell/offer-matcher/internal/matching"
)

type locationRecord struct {
	Text      string   `mapstructure:"text"`
	Latitude  *float64 `mapstructure:"latitude"`
	Longitude *float64 `mapstructure:"longitude"`
}

type salaryRecord struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

type candidateSkillRecord struct {
	Name  string              `mapstructure:"name"`
	Level matching.SkillLevel `mapstructure:"level"`
	Years float64             `mapstructure:"years"`
}

type requiredSkillRecord struct {
	Name  string              `mapstructure:"name"`
	Level matching.SkillLevel `mapstructure:"level"`
}

type candidateRecord struct {
	ID                 string                  `mapstructure:"id"`
	Name               string                  `mapstructure:"name"`
	Email              string                  `mapstructure:"email"`
	Location           locationRecord          `mapstructure:"location"`
	Skills             []candidateSkillRecord  `mapstructure:"skills"`
	PreferredContracts []matching.ContractType `mapstructure:"preferred-contracts"`
	ExperienceYears    float64                 `mapstructure:"experience-years"`
	DesiredPosition    string                  `mapstructure:"desired-position"`
	ExpectedSalary     salaryRecord            `mapstructure:"expected-salary"`
}

type offerRecord struct {
	ID                 string                `mapstructure:"id"`
	RecruiterID        string                `mapstructure:"recruiter-id"`
	Title              string                `mapstructure:"title"`
	Description        string                `mapstructure:"description"`
	Location           locationRecord        `mapstructure:"location"`
	Contract           matching.ContractType `mapstructure:"contract"`
	CreatedAt          time.Time             `mapstructure:"created-at"`
	Deadline           *time.Time            `mapstructure:"deadline"`
	Status             matching.OfferStatus  `mapstructure:"status"`
	RequiredSkills     []requiredSkillRecord `mapstructure:"required-skills"`
	MinExperienceYears float64               `mapstructure:"min-experience-years"`
	Flagged            bool                  `mapstructure:"flagged"`
	FlaggedAt          *time.Time            `mapstructure:"flagged-at"`
}

func (r locationRecord) location() (matching.Location, error) {
	return matching.NewLocation(r.Text, r.Latitude, r.Longitude)
}

func (r candidateRecord) profile() (*matching.CandidateProfile, error) {
	location, err := r.Location.location()
	if err != nil {
		return nil, err
	}

	skills := make([]matching.CandidateSkill, 0, len(r.Skills))
	for _, s := range r.Skills {
		skills = append(skills, matching.CandidateSkill{
			Name:              matching.NormalizeSkillName(s.Name),
			Level:             s.Level,
			YearsOfExperience: s.Years,
		})
	}

	return &matching.CandidateProfile{
		ID:                 r.ID,
		Name:               r.Name,
		Email:              r.Email,
		Location:           location,
		Skills:             skills,
		PreferredContracts: r.PreferredContracts,
		ExperienceYears:    r.ExperienceYears,
		DesiredPosition:    r.DesiredPosition,
		ExpectedSalary:     matching.SalaryRange{Min: r.ExpectedSalary.Min, Max: r.ExpectedSalary.Max},
	}, nil
}

func (r offerRecord) offer() (*matching.JobOffer, error) {
	location, err := r.Location.location()
	if err != nil {
		return nil, err
	}

	skills := make([]matching.RequiredSkill, 0, len(r.RequiredSkills))
	for _, s := range r.RequiredSkills {
		skills = append(skills, matching.RequiredSkill{
			Name:  matching.NormalizeSkillName(s.Name),
			Level: s.Level,
		})
	}

	status := r.Status
	if status == "" {
		status = matching.StatusOpen
	}

	return &matching.JobOffer{
		ID:                 r.ID,
		RecruiterID:        r.RecruiterID,
		Title:              r.Title,
		Description:        r.Description,
		Location:           location,
		Contract:           r.Contract,
		CreatedAt:          r.CreatedAt,
		Deadline:           r.Deadline,
		Status:             status,
		RequiredSkills:     skills,
		MinExperienceYears: r.MinExperienceYears,
		Flagged:            r.Flagged,
		FlaggedAt:          r.FlaggedAt,
	}, nil
}
