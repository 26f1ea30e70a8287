package reporter

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/su1ph3r/procrisk/pkg/types"
)

func sampleReport() *types.RiskReport {
	threshold := 10.0
	acme := types.BidderKey{Name: "ACME", Country: "MX"}
	quick := types.BidderKey{Name: "QUICK | CO", Country: "MX"}
	return &types.RiskReport{
		RunID:       "run-1",
		Country:     "MX",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Composite: []types.CompositeRiskRecord{
			{Rank: 1, BidderKey: acme, TotalRiskScore: 37.5, TotalDollarsAtRisk: 2_500_000, NumFlags: 2,
				NonCompetitiveRiskScore: 50, ShortBidWindowRiskScore: 100, TotalPayments: 3_000_000, TotalTendersWon: 4},
			{Rank: 2, BidderKey: quick, TotalTendersWon: 1, TotalPayments: 500},
		},
		Buyers: []types.BuyerSummaryRow{
			{BuyerKey: types.BuyerKey{Name: "CITYX", Country: "MX"}, TotalTendersAwarded: 5, TotalPayouts: 3_000_500, TopBidder: "ACME"},
		},
		NonCompetitive: []types.NonCompetitiveRow{
			{BidderKey: acme, NonCompetitiveTendersWon: 2, TotalTendersWon: 4, PctTendersNonCompetitive: 0.5, RiskScore: 50},
		},
		ShortBidWindow: []types.ShortWindowRow{
			{BidderKey: acme, Count: 1, AvgWindowDays: 3, MinWindowDays: 3, RiskScore: 100},
		},
		ShortWindowThreshold: &threshold,
	}
}

func TestNewReporter(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"Excel", "xlsx"},
		{"xlsx", "xlsx"},
		{"JSON", "json"},
		{"md", "md"},
		{"markdown", "md"},
		{"text", "txt"},
	}
	for _, tt := range tests {
		r, err := NewReporter(tt.format, DefaultOptions())
		if err != nil {
			t.Fatalf("NewReporter(%q) failed: %v", tt.format, err)
		}
		if r.Extension() != tt.ext {
			t.Errorf("NewReporter(%q).Extension() = %q, want %q", tt.format, r.Extension(), tt.ext)
		}
	}
	if _, err := NewReporter("pdf", DefaultOptions()); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestDefaultFileName(t *testing.T) {
	got := DefaultFileName("output", "mx", NewXLSXReporter(DefaultOptions()))
	want := filepath.Join("output", "MX_procurement_risk_report.xlsx")
	if got != want {
		t.Errorf("DefaultFileName = %q, want %q", got, want)
	}
}

func TestXLSXTabs(t *testing.T) {
	data, err := NewXLSXReporter(DefaultOptions()).Generate(sampleReport())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook did not reopen: %v", err)
	}
	defer f.Close()

	// empty concentration and splitting tables are skipped
	want := []string{TabBidderRisk, TabBuyers, TabNonCompetitive, TabShortBidWindow}
	got := f.GetSheetList()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("sheets = %v, want %v", got, want)
	}

	header, _ := f.GetCellValue(TabBidderRisk, "D1")
	if header != "Total Risk Score" {
		t.Errorf("D1 = %q, want Total Risk Score", header)
	}
	name, _ := f.GetCellValue(TabBidderRisk, "B2")
	if name != "ACME" {
		t.Errorf("B2 = %q, want ACME", name)
	}
	rank, _ := f.GetCellValue(TabBidderRisk, "A3")
	if rank != "2" {
		t.Errorf("A3 = %q, want 2", rank)
	}

	// text and number cells are bordered like the header
	for _, cell := range []string{"A1", "B2", "D2", "D3"} {
		id, err := f.GetCellStyle(TabBidderRisk, cell)
		if err != nil {
			t.Fatalf("GetCellStyle(%s): %v", cell, err)
		}
		style, err := f.GetStyle(id)
		if err != nil {
			t.Fatalf("GetStyle(%s): %v", cell, err)
		}
		if len(style.Border) != 4 {
			t.Errorf("%s has %d borders, want 4", cell, len(style.Border))
		}
	}
}

func TestSheetName(t *testing.T) {
	long := strings.Repeat("x", 40)
	if got := SheetName(long); len(got) != 31 {
		t.Errorf("len(SheetName) = %d, want 31", len(got))
	}
	if got := SheetName(TabBuyers); got != TabBuyers {
		t.Errorf("short name changed: %q", got)
	}
}

func TestJSONReport(t *testing.T) {
	data, err := NewJSONReporter(DefaultOptions()).Generate(sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out["country"] != "MX" || out["run_id"] != "run-1" {
		t.Errorf("missing report fields: %v", out)
	}
	rows, ok := out["bidder_risk_summary"].([]any)
	if !ok || len(rows) != 2 {
		t.Errorf("bidder_risk_summary = %v", out["bidder_risk_summary"])
	}
	if tables, _ := out["tables"].([]any); len(tables) != 4 {
		t.Errorf("tables = %v", out["tables"])
	}
}

func TestMarkdownReport(t *testing.T) {
	data, err := NewMarkdownReporter(DefaultOptions()).Generate(sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)
	for _, want := range []string{
		"## " + TabBidderRisk,
		"| 1 | ACME | MX | 37.5 | $2,500,000.00 | 2 |",
		"QUICK \\| CO",
		"| Short Window Threshold | 10.0 days |",
		"50.0%",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "## "+TabContractSplitting) {
		t.Error("empty table should be skipped")
	}
}

func TestTextReport(t *testing.T) {
	data, err := NewTextReporter(ReportOptions{Title: "Risk", TopN: 1}).Generate(sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "NC,SW") {
		t.Errorf("signal list missing:\n%s", text)
	}
	if !strings.Contains(text, "... 1 more bidders") {
		t.Errorf("top-N truncation missing:\n%s", text)
	}
}

func TestTextReportVersion(t *testing.T) {
	data, err := NewTextReporter(ReportOptions{Title: "Risk", Version: "1.2.3"}).Generate(sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "procrisk 1.2.3\n") {
		t.Errorf("version missing from header:\n%s", data)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short", "ACME", 40, "ACME"},
		{"exact", "ABCDE", 5, "ABCDE"},
		{"ascii", "ABCDEFGHIJ", 8, "ABCDE..."},
		{"accent at cut", "CONSTRUCTORA E INMOBILIARIA DE LA PEÑA DEL NORTE", 40, "CONSTRUCTORA E INMOBILIARIA DE LA PEÑ..."},
		{"accent kept whole", "ÑÑÑÑÑÑ", 5, "ÑÑ..."},
		{"tiny width", "ÉÉÉÉ", 2, "ÉÉ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateString(tt.in, tt.maxLen)
			if got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result is not valid UTF-8: %q", got)
			}
			if n := utf8.RuneCountInString(got); n > tt.maxLen {
				t.Errorf("result has %d runes, limit %d", n, tt.maxLen)
			}
		})
	}
}

func TestWriteToFile(t *testing.T) {
	dir := t.TempDir()
	r := NewMarkdownReporter(DefaultOptions())

	path := filepath.Join(dir, "nested", "report.md")
	if err := WriteToFile(r, sampleReport(), path); err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("report not written: %v", err)
	}

	empty := filepath.Join(dir, "empty.md")
	err := WriteToFile(r, &types.RiskReport{Country: "MX"}, empty)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Error("no file should be created for an empty report")
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{1500, "$1,500.00"},
		{2_500_000.5, "$2,500,000.50"},
		{-12.3, "-$12.30"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.in); got != tt.want {
			t.Errorf("FormatMoney(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
