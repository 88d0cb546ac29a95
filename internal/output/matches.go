package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/spigell/offer-matcher/internal/matching"
)

// Matches writes ranked results in the given format.
func Matches(w io.Writer, format string, results []matching.MatchResult) error {
	if isJSON(format) {
		if results == nil {
			results = []matching.MatchResult{}
		}
		return JSONTo(w, results)
	}

	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No matches found.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("#", "Offer", "Title", "Candidate", "Score", "Tier", "Skills", "Location", "Contract", "Experience")
	for idx, r := range results {
		title := ""
		if r.Offer != nil {
			title = truncate(r.Offer.Title, 30)
		}
		name := r.CandidateID()
		if r.Candidate != nil && r.Candidate.Name != "" {
			name = truncate(r.Candidate.Name, 25)
		}

		if err := table.Append([]string{
			strconv.Itoa(idx + 1),
			r.OfferID(),
			title,
			name,
			score(r.Overall()),
			r.Tier().String(),
			fmt.Sprintf("%s (%d/%d)", score(r.SkillsScore), r.MatchedSkills, r.TotalRequiredSkills),
			location(r),
			score(r.ContractScore),
			score(r.ExperienceScore),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// Match writes a single result as a detail view.
func Match(w io.Writer, format string, r matching.MatchResult) error {
	if isJSON(format) {
		return JSONTo(w, r)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	rows := [][]string{
		{"Offer", r.OfferID()},
		{"Candidate", r.CandidateID()},
		{"Overall", score(r.Overall())},
		{"Tier", r.Tier().String()},
		{"Skills", fmt.Sprintf("%s (%d/%d matched)", score(r.SkillsScore), r.MatchedSkills, r.TotalRequiredSkills)},
		{"Location", location(r)},
		{"Contract", score(r.ContractScore)},
		{"Experience", score(r.ExperienceScore)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func location(r matching.MatchResult) string {
	if r.DistanceKm == nil {
		return score(r.LocationScore)
	}
	return fmt.Sprintf("%s (%.1f km)", score(r.LocationScore), *r.DistanceKm)
}
