package normalize

import (
	"bytes"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns the file as UTF-8 text and the encoding it was read
// as. Files that are not valid UTF-8 are read as Windows-1252, the usual
// encoding of German and Brazilian bank exports.
func decodeText(data []byte) (string, string) {
	if bytes.HasPrefix(data, utf8BOM) {
		return string(data[len(utf8BOM):]), "utf-8-bom"
	}
	if utf8.Valid(data) {
		return string(data), "utf-8"
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		decoded, _ = charmap.ISO8859_1.NewDecoder().Bytes(data)
		return string(decoded), "iso-8859-1"
	}
	return string(decoded), "windows-1252"
}

// detectDelimiter picks the candidate that occurs most often across the
// first lines, so a short preamble before the header does not mislead it.
func detectDelimiter(text string) rune {
	lines := strings.SplitN(text, "\n", 11)
	if len(lines) > 10 {
		lines = lines[:10]
	}
	sample := strings.Join(lines, "\n")

	best, bestCount := ',', 0
	for _, candidate := range []rune{';', ',', '\t'} {
		if n := strings.Count(sample, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

func delimiterName(d rune) string {
	if d == '\t' {
		return "tab"
	}
	return string(d)
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02.01.06",
	"02/01/2006",
	"2006/01/02",
	"01-02-06",
	time.RFC3339,
}

// parseDate accepts the layouts seen in bank exports and Excel serial dates.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	if serial, err := decimal.NewFromString(s); err == nil {
		if t, ok := excelSerialDate(serial.InexactFloat64()); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAmount reads amounts written either with a decimal comma
// ("-1.234,56") or a decimal point ("-1,234.56"), with optional currency
// symbols and a trailing minus.
func parseAmount(s string) (decimal.NullDecimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '€', '$', ' ', '\u00a0', '+':
			return -1
		}
		return r
	}, s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "R"), "EUR")
	if s == "" {
		return decimal.NullDecimal{}, false
	}

	negative := false
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot > lastComma:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, false
	}
	if negative {
		d = d.Neg()
	}
	return decimal.NewNullDecimal(d), true
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
