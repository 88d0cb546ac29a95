package output

import (
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/spigell/offer-matcher/internal/filtering"
)

// Filters writes the status of a filtering pipeline.
func Filters(w io.Writer, statuses []filtering.Status) error {
	table := tablewriter.NewWriter(w)
	table.Header("Filter", "Enabled", "Reason", "Details")
	for _, s := range statuses {
		details := make([]string, 0, len(s.Details))
		for _, key := range slices.Sorted(maps.Keys(s.Details)) {
			details = append(details, key+"="+s.Details[key])
		}
		if err := table.Append([]string{s.Name, strconv.FormatBool(s.Enabled), s.Reason, strings.Join(details, " ")}); err != nil {
			return err
		}
	}
	return table.Render()
}
