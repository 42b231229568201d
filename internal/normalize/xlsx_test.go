package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/statement-flow/internal/model"
)

func buildWorkbook(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestXLSXParser_Parse(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", [][]any{
		{"Date", "Description", "Amount", "Currency"},
		{"2024-03-01", "REWE SAGT DANKE", -42.1, "EUR"},
		{time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), "Gehalt", 2500, ""},
	})

	res := DefaultRegistry().Normalize("export.xlsx", data)
	require.True(t, res.Success, res.Diagnostics.Messages)
	assert.Equal(t, model.FormatXLSX, res.Format)
	require.Len(t, res.Rows, 2)

	assert.Equal(t, "2024-03-01", res.Rows[0].Date.Format("2006-01-02"))
	assert.Equal(t, "-42.10", res.Rows[0].Amount.Decimal.StringFixed(2))
	assert.Equal(t, "REWE SAGT DANKE", res.Rows[0].Description)

	assert.Equal(t, "2024-03-02", res.Rows[1].Date.Format("2006-01-02"))
	assert.Equal(t, "2500.00", res.Rows[1].Amount.Decimal.StringFixed(2))
	assert.Equal(t, "EUR", res.Rows[1].Currency)
	assert.Equal(t, model.FormatXLSX, res.Rows[1].Source)
	assert.Equal(t, "Sheet1", res.Diagnostics.Extra["sheet"])
}

func TestXLSXParser_DetectByContent(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", [][]any{{"Date", "Description", "Amount"}})
	p := NewXLSXParser()
	assert.True(t, p.Detect("download", data))
	assert.False(t, p.Detect("download", []byte("Date,Amount\n")))
}

func TestXLSXParser_NoHeader(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", [][]any{{"foo", "bar"}, {1, 2}})
	_, _, err := NewXLSXParser().Parse(data)
	assert.Error(t, err)

	_, _, err = NewXLSXParser().Parse([]byte("PK\x03\x04 garbage"))
	assert.Error(t, err)
}
