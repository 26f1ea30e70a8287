package reporter

import (
	"encoding/json"
	"io"

	"github.com/su1ph3r/procrisk/pkg/types"
)

// JSONReporter generates JSON reports
type JSONReporter struct {
	options ReportOptions
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(options ReportOptions) *JSONReporter {
	return &JSONReporter{options: options}
}

// Format returns the format name
func (r *JSONReporter) Format() string {
	return "json"
}

// Extension returns the file extension
func (r *JSONReporter) Extension() string {
	return "json"
}

// Generate generates a JSON report
func (r *JSONReporter) Generate(report *types.RiskReport) ([]byte, error) {
	return json.MarshalIndent(r.prepareOutput(report), "", "  ")
}

// Write writes the JSON report to a writer
func (r *JSONReporter) Write(report *types.RiskReport, w io.Writer) error {
	data, err := r.Generate(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// JSONOutput wraps the report with its title and table names
type JSONOutput struct {
	Title  string   `json:"title"`
	Tables []string `json:"tables"`
	*types.RiskReport
}

func (r *JSONReporter) prepareOutput(report *types.RiskReport) *JSONOutput {
	out := &JSONOutput{Title: r.options.Title, RiskReport: report, Tables: []string{}}
	for _, t := range reportTables(report) {
		out.Tables = append(out.Tables, t.name)
	}
	return out
}
