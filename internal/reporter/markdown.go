package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/su1ph3r/procrisk/pkg/types"
)

// MarkdownReporter generates Markdown reports
type MarkdownReporter struct {
	options ReportOptions
}

// NewMarkdownReporter creates a new Markdown reporter
func NewMarkdownReporter(options ReportOptions) *MarkdownReporter {
	return &MarkdownReporter{options: options}
}

// Format returns the format name
func (r *MarkdownReporter) Format() string {
	return "markdown"
}

// Extension returns the file extension
func (r *MarkdownReporter) Extension() string {
	return "md"
}

// Generate generates a Markdown report
func (r *MarkdownReporter) Generate(report *types.RiskReport) ([]byte, error) {
	var buf strings.Builder
	if err := r.Write(report, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Write writes the Markdown report to a writer
func (r *MarkdownReporter) Write(report *types.RiskReport, w io.Writer) error {
	// Title
	fmt.Fprintf(w, "# %s: %s\n\n", r.options.Title, report.Country)

	// Summary
	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| Country | `%s` |\n", report.Country)
	fmt.Fprintf(w, "| Run ID | `%s` |\n", report.RunID)
	fmt.Fprintf(w, "| Generated | %s |\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "| Bidders Ranked | %s |\n", humanize.Comma(int64(len(report.Composite))))
	fmt.Fprintf(w, "| Bidders Flagged | %s |\n", humanize.Comma(int64(flaggedBidders(report.Composite))))
	fmt.Fprintf(w, "| Buyers | %s |\n", humanize.Comma(int64(len(report.Buyers))))
	if report.ShortWindowThreshold != nil {
		fmt.Fprintf(w, "| Short Window Threshold | %.1f days |\n", *report.ShortWindowThreshold)
	}
	fmt.Fprintf(w, "\n")

	// Flags per detector
	fmt.Fprintf(w, "### Bidders by Signal\n\n")
	fmt.Fprintf(w, "| Signal | Bidders |\n")
	fmt.Fprintf(w, "|--------|---------|\n")
	fmt.Fprintf(w, "| Non-Competitive | %d |\n", len(report.NonCompetitive))
	fmt.Fprintf(w, "| Spending Concentration | %d |\n", len(report.SpendingConcentration))
	fmt.Fprintf(w, "| Short Bid Window | %d |\n", len(report.ShortBidWindow))
	fmt.Fprintf(w, "| Contract Splitting | %d |\n", len(report.ContractSplitting))
	fmt.Fprintf(w, "\n")

	tables := reportTables(report)
	if len(tables) == 0 {
		fmt.Fprintf(w, "_No data._\n")
		return nil
	}

	for _, t := range tables {
		fmt.Fprintf(w, "## %s\n\n", t.name)
		writeMarkdownTable(w, t)
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "---\n\n")
	fmt.Fprintf(w, "_Scores are 0-100; the total risk score is the mean of the four signal scores._\n")
	return nil
}

func writeMarkdownTable(w io.Writer, t table) {
	headers := make([]string, len(t.columns))
	seps := make([]string, len(t.columns))
	for i, c := range t.columns {
		headers[i] = c.header
		if c.kind == kindText {
			seps[i] = "---"
		} else {
			seps[i] = "---:"
		}
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(headers, " | "))
	fmt.Fprintf(w, "|%s|\n", strings.Join(seps, "|"))

	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = EscapeMarkdown(formatCell(t.columns[i].kind, v))
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
}

func flaggedBidders(rows []types.CompositeRiskRecord) int {
	n := 0
	for _, r := range rows {
		if r.NumFlags > 0 {
			n++
		}
	}
	return n
}
