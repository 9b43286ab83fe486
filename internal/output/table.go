package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// NewTable creates a borderless kubectl-style table writer
func NewTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("   ")
	table.SetNoWhiteSpace(true)

	return table
}

// RecapHeaders are the columns of the per-host recap table. Skipped counts
// are tracked but omitted from the default recap.
var RecapHeaders = []string{"HOST", "OK", "CHANGED", "UNREACHABLE", "FAILED"}

// WriteRecapTable renders per-host recap rows, colorizing headers when the
// scheme allows it.
func WriteRecapTable(w io.Writer, colors *ColorScheme, rows [][]string) {
	table := NewTable(w)

	headers := RecapHeaders
	if colors != nil && !colors.Disabled {
		colored := make([]string, len(headers))
		for i, h := range headers {
			colored[i] = colors.Header(h)
		}
		headers = colored
	}
	table.SetHeader(headers)

	for _, row := range rows {
		table.Append(row)
	}

	table.Render()
}
