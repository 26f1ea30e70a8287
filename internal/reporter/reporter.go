// Package reporter provides output formatting for risk reports
package reporter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/su1ph3r/procrisk/pkg/types"
)

// ErrNoData is returned when a report has no rows in any table
var ErrNoData = errors.New("no data to export")

// Reporter interface for generating reports
type Reporter interface {
	// Generate generates a report from a risk report
	Generate(report *types.RiskReport) ([]byte, error)

	// Write writes the report to a writer
	Write(report *types.RiskReport, w io.Writer) error

	// Format returns the report format name
	Format() string

	// Extension returns the file extension for this format
	Extension() string
}

// NewReporter creates a reporter based on format
func NewReporter(format string, options ReportOptions) (Reporter, error) {
	canonical, ok := types.NormalizeReportFormat(format)
	if !ok {
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
	switch canonical {
	case types.FormatXLSX:
		return NewXLSXReporter(options), nil
	case types.FormatJSON:
		return NewJSONReporter(options), nil
	case types.FormatMarkdown:
		return NewMarkdownReporter(options), nil
	default:
		return NewTextReporter(options), nil
	}
}

// ReportOptions contains options for report generation
type ReportOptions struct {
	Title   string // Custom report title
	TopN    int    // Bidders listed in the text report, 0 for all
	Version string
}

// DefaultOptions returns default report options
func DefaultOptions() ReportOptions {
	return ReportOptions{
		Title: "Procurement Risk Report",
		TopN:  25,
	}
}

// DefaultFileName returns <dir>/<COUNTRY>_procurement_risk_report.<ext>
func DefaultFileName(dir, country string, r Reporter) string {
	name := fmt.Sprintf("%s_procurement_risk_report.%s", strings.ToUpper(country), r.Extension())
	return filepath.Join(dir, name)
}

// WriteToFile writes a report to a file. Nothing is created when the
// report is empty.
func WriteToFile(reporter Reporter, report *types.RiskReport, filename string) error {
	if report == nil || report.Empty() {
		return ErrNoData
	}

	// Ensure directory exists
	dir := filepath.Dir(filename)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return reporter.Write(report, file)
}

// TruncateString truncates a string to maxLen runes, cutting only on rune
// boundaries
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string([]rune(s)[:maxLen])
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

// EscapeMarkdown escapes characters that break Markdown table cells
func EscapeMarkdown(s string) string {
	chars := []string{"\\", "`", "*", "_", "|", "[", "]", "#"}
	for _, c := range chars {
		s = strings.ReplaceAll(s, c, "\\"+c)
	}
	return s
}

// FormatMoney renders a USD amount as $1,234,567.89
func FormatMoney(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// formatCell renders a table value for the text formats
func formatCell(kind cellKind, v any) string {
	switch kind {
	case kindMoney:
		return FormatMoney(v.(float64))
	case kindInt:
		return humanize.Comma(int64(v.(int)))
	case kindScore, kindDecimal:
		return strconv.FormatFloat(v.(float64), 'f', 1, 64)
	case kindPercent:
		return strconv.FormatFloat(v.(float64)*100, 'f', 1, 64) + "%"
	default:
		return fmt.Sprint(v)
	}
}
