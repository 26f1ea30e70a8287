package reporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/su1ph3r/procrisk/pkg/types"
)

const (
	maxSheetName = 31
	columnWidth  = 20
	headerFill   = "B8E6FE"
)

var numberFormats = map[cellKind]string{
	kindMoney:   "$#,##0.00",
	kindScore:   "#,##0.0",
	kindDecimal: "#,##0.0",
	kindInt:     "#,##0",
	kindPercent: "0.0%",
}

// XLSXReporter generates a workbook with one tab per table
type XLSXReporter struct {
	options ReportOptions
}

// NewXLSXReporter creates a new spreadsheet reporter
func NewXLSXReporter(options ReportOptions) *XLSXReporter {
	return &XLSXReporter{options: options}
}

// Format returns the format name
func (r *XLSXReporter) Format() string {
	return "xlsx"
}

// Extension returns the file extension
func (r *XLSXReporter) Extension() string {
	return "xlsx"
}

// Generate generates the workbook bytes
func (r *XLSXReporter) Generate(report *types.RiskReport) ([]byte, error) {
	f, err := r.build(report)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Write writes the workbook to a writer
func (r *XLSXReporter) Write(report *types.RiskReport, w io.Writer) error {
	f, err := r.build(report)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SheetName caps a tab name at the spreadsheet limit of 31 characters
func SheetName(name string) string {
	runes := []rune(name)
	if len(runes) > maxSheetName {
		return string(runes[:maxSheetName])
	}
	return name
}

func (r *XLSXReporter) build(report *types.RiskReport) (*excelize.File, error) {
	tables := reportTables(report)
	if len(tables) == 0 {
		return nil, ErrNoData
	}

	f := excelize.NewFile()
	styles, err := newSheetStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	for i, t := range tables {
		name := SheetName(t.name)
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), name)
		} else {
			_, err = f.NewSheet(name)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, t, styles); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write sheet %s: %w", name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

type sheetStyles struct {
	header  int
	body    int
	numbers map[cellKind]int
}

// column returns the body style for a column kind
func (s *sheetStyles) column(kind cellKind) int {
	if id, ok := s.numbers[kind]; ok {
		return id
	}
	return s.body
}

func newSheetStyles(f *excelize.File) (*sheetStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    border,
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	body, err := f.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		return nil, fmt.Errorf("failed to create body style: %w", err)
	}

	s := &sheetStyles{header: header, body: body, numbers: make(map[cellKind]int)}
	for kind, format := range numberFormats {
		numFmt := format
		id, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt, Border: border})
		if err != nil {
			return nil, fmt.Errorf("failed to create number style %q: %w", format, err)
		}
		s.numbers[kind] = id
	}
	return s, nil
}

func writeSheet(f *excelize.File, sheet string, t table, styles *sheetStyles) error {
	last, err := excelize.ColumnNumberToName(len(t.columns))
	if err != nil {
		return err
	}

	for i, c := range t.columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, c.header); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", styles.header); err != nil {
		return err
	}

	for r, row := range t.rows {
		for i, v := range row {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	lastRow := len(t.rows) + 1
	for i, c := range t.columns {
		if len(t.rows) == 0 {
			break
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("%s2", name), fmt.Sprintf("%s%d", name, lastRow), styles.column(c.kind)); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", last, columnWidth); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      2,
		YSplit:      1,
		TopLeftCell: "C2",
		ActivePane:  "bottomRight",
	})
}
