package normalize

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/statement-flow/internal/model"
)

var zipMagic = []byte("PK\x03\x04")

// XLSXParser reads spreadsheet exports. The first sheet with a recognizable
// header row is used; columns are matched like the generic CSV layout.
type XLSXParser struct {
	profile Profile
}

// NewXLSXParser creates a new XLSX parser.
func NewXLSXParser() *XLSXParser {
	profile := genericProfile
	profile.Format = model.FormatXLSX
	return &XLSXParser{profile: profile}
}

// Format returns the source format this parser produces.
func (p *XLSXParser) Format() model.SourceFormat { return model.FormatXLSX }

// Detect matches .xlsx files and zip archives that look like workbooks.
func (p *XLSXParser) Detect(filename string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return true
	}
	return bytes.HasPrefix(data, zipMagic) && bytes.Contains(data, []byte("xl/"))
}

// Parse reads the workbook with raw cell values so dates arrive as serials.
func (p *XLSXParser) Parse(data []byte) ([]model.NormalizedRow, model.Diagnostics, error) {
	diag := model.Diagnostics{Encoding: "xlsx"}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, diag, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, sheet := range f.GetSheetList() {
		records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, diag, fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		if _, _, ok := findHeader(records, p.profile); !ok {
			continue
		}

		diag.Extra = map[string]any{"sheet": sheet}
		rows, err := mapTable(p.profile, records, &diag)
		return rows, diag, err
	}
	return nil, diag, fmt.Errorf("no sheet with a date, amount and description header")
}

// excelSerialDate converts an Excel serial day number. Values outside a
// plausible statement range are rejected so plain numbers are not taken
// for dates.
func excelSerialDate(serial float64) (time.Time, bool) {
	if serial < 20000 || serial > 80000 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}
