package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/spigell/offer-matcher/internal/matching"
	"github.com/spigell/offer-matcher/internal/moderation"
)

// ModerationEntry is one classified offer. Err is set when classification failed.
type ModerationEntry struct {
	Offer  *matching.JobOffer
	Result moderation.ModerationResult
	Err    error
}

func (e ModerationEntry) MarshalJSON() ([]byte, error) {
	out := struct {
		OfferID   string                       `json:"offer_id"`
		Title     string                       `json:"title"`
		FlaggedAt *time.Time                   `json:"flagged_at,omitempty"`
		Result    *moderation.ModerationResult `json:"result,omitempty"`
		Error     string                       `json:"error,omitempty"`
	}{}
	if e.Offer != nil {
		out.OfferID = e.Offer.ID
		out.Title = e.Offer.Title
		out.FlaggedAt = e.Offer.FlaggedAt
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	} else {
		out.Result = &e.Result
	}
	return json.Marshal(out)
}

// Moderation writes classification results in the given format.
func Moderation(w io.Writer, format string, entries []ModerationEntry) error {
	if isJSON(format) {
		if entries == nil {
			entries = []ModerationEntry{}
		}
		return JSONTo(w, entries)
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No offers to moderate.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Offer", "Title", "Toxicity", "Insult", "Threat", "Identity", "Flagged", "Reasons")
	for _, e := range entries {
		id, title := "", ""
		if e.Offer != nil {
			id, title = e.Offer.ID, truncate(e.Offer.Title, 30)
		}

		row := []string{id, title, "-", "-", "-", "-", "error", truncate(errString(e.Err), 40)}
		if e.Err == nil {
			row = []string{
				id,
				title,
				probability(e.Result.Toxicity()),
				probability(e.Result.Insult()),
				probability(e.Result.Threat()),
				probability(e.Result.IdentityAttack()),
				yesNo(e.Result.Flagged()),
				strings.Join(e.Result.Reasons(), ","),
			}
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func probability(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
