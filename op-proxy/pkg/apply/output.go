package apply

import (
	"io"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"github.com/olekukonko/tablewriter"
)

// WriteResults renders the results as a table.
func WriteResults(w io.Writer, results []Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Proxy", "From", "To", "Upgraded", "Verified", "Error"})
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	for _, r := range results {
		errStr := ""
		if r.Err != nil {
			errStr = r.Err.Error()
		}
		table.Append([]string{
			r.Name,
			r.Proxy.Hex(),
			versionString(r.From),
			versionString(r.To),
			strconv.FormatBool(r.Upgraded),
			strconv.FormatBool(r.Verified),
			errStr,
		})
	}
	table.Render()
}

func versionString(v *semver.Version) string {
	if v == nil {
		return "-"
	}
	return v.String()
}
