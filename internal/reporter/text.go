package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/su1ph3r/procrisk/pkg/types"
)

// TextReporter generates plain text reports for the terminal
type TextReporter struct {
	options ReportOptions
}

// NewTextReporter creates a new text reporter
func NewTextReporter(options ReportOptions) *TextReporter {
	return &TextReporter{options: options}
}

// Format returns the format name
func (r *TextReporter) Format() string {
	return "text"
}

// Extension returns the file extension
func (r *TextReporter) Extension() string {
	return "txt"
}

// Generate generates a text report
func (r *TextReporter) Generate(report *types.RiskReport) ([]byte, error) {
	var buf strings.Builder
	if err := r.Write(report, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Write writes the text report to a writer
func (r *TextReporter) Write(report *types.RiskReport, w io.Writer) error {
	r.writeHeader(w, report)
	r.writeSummary(w, report)
	r.writeRanking(w, report)
	r.writeFooter(w, report)
	return nil
}

func (r *TextReporter) writeHeader(w io.Writer, report *types.RiskReport) {
	fmt.Fprintf(w, "\n")
	v := r.options.Version
	if v == "" {
		v = "unknown"
	}
	fmt.Fprintf(w, "procrisk %s\n", v)
	fmt.Fprintf(w, "%s for %s\n", r.options.Title, report.Country)
	fmt.Fprintf(w, "Generated at %s (run %s)\n", report.GeneratedAt.Format("2006-01-02 15:04 MST"), report.RunID)
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeSummary(w io.Writer, report *types.RiskReport) {
	fmt.Fprintf(w, "SIGNAL SUMMARY\n")
	fmt.Fprintf(w, "%-26s %s\n", "SIGNAL", "BIDDERS")
	fmt.Fprintf(w, "%-26s %d\n", "NON-COMPETITIVE", len(report.NonCompetitive))
	fmt.Fprintf(w, "%-26s %d\n", "SPENDING CONCENTRATION", len(report.SpendingConcentration))
	fmt.Fprintf(w, "%-26s %d\n", "SHORT BID WINDOW", len(report.ShortBidWindow))
	fmt.Fprintf(w, "%-26s %d\n", "CONTRACT SPLITTING", len(report.ContractSplitting))
	fmt.Fprintf(w, "%-26s %d of %d\n", "FLAGGED", flaggedBidders(report.Composite), len(report.Composite))
	if report.ShortWindowThreshold != nil {
		fmt.Fprintf(w, "Short bid window cutoff: %.1f days\n", *report.ShortWindowThreshold)
	}
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeRanking(w io.Writer, report *types.RiskReport) {
	if len(report.Composite) == 0 {
		fmt.Fprintf(w, "No bidders ranked.\n")
		return
	}

	rows := report.Composite
	if r.options.TopN > 0 && len(rows) > r.options.TopN {
		rows = rows[:r.options.TopN]
	}

	fmt.Fprintf(w, "TOP BIDDERS\n")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 96))
	fmt.Fprintf(w, "%-5s %-36s %-4s %6s %5s %18s  %s\n", "RANK", "BIDDER", "CC", "SCORE", "FLAGS", "AT RISK", "SIGNALS")
	for _, rec := range rows {
		fmt.Fprintf(w, "%-5d %-36s %-4s %6.1f %5d %18s  %s\n",
			rec.Rank,
			TruncateString(rec.Name, 36),
			rec.Country,
			rec.TotalRiskScore,
			rec.NumFlags,
			FormatMoney(rec.TotalDollarsAtRisk),
			signalList(rec))
	}
	if len(rows) < len(report.Composite) {
		fmt.Fprintf(w, "... %s more bidders\n", humanize.Comma(int64(len(report.Composite)-len(rows))))
	}
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeFooter(w io.Writer, report *types.RiskReport) {
	var atRisk float64
	for _, rec := range report.Composite {
		atRisk += rec.TotalDollarsAtRisk
	}
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 96))
	fmt.Fprintf(w, "Report done: %s bidders, %s buyers, %s at risk\n",
		humanize.Comma(int64(len(report.Composite))),
		humanize.Comma(int64(len(report.Buyers))),
		FormatMoney(atRisk))
}

var signalAbbrev = map[types.Component]string{
	types.ComponentNonCompetitive:        "NC",
	types.ComponentSpendingConcentration: "SC",
	types.ComponentShortBidWindow:        "SW",
	types.ComponentContractSplitting:     "CS",
}

// signalList returns the abbreviations of the components a bidder scored on
func signalList(rec types.CompositeRiskRecord) string {
	var out []string
	for _, c := range types.Components {
		if rec.ComponentScore(c) > 0 {
			out = append(out, signalAbbrev[c])
		}
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}
