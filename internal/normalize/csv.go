package normalize

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Veraticus/statement-flow/internal/model"
)

// headerSearchDepth bounds how many preamble lines are skipped looking for
// the header row.
const headerSearchDepth = 20

// Profile describes the column layout of one institution's CSV export.
// Column lists are header aliases matched case-insensitively; the first
// alias present wins, except for Description where every present column is
// joined in order.
type Profile struct {
	Format          model.SourceFormat
	Signature       []string
	Date            []string
	BookingDate     []string
	Amount          []string
	Currency        []string
	Key             []string
	Description     []string
	DefaultCurrency string
	NegateAmounts   bool
}

var (
	sparkasseProfile = Profile{
		Format:          model.FormatSparkasse,
		Signature:       []string{"Auftragskonto", "Buchungstag", "Verwendungszweck", "Betrag"},
		Date:            []string{"Buchungstag"},
		BookingDate:     []string{"Valutadatum"},
		Amount:          []string{"Betrag"},
		Currency:        []string{"Waehrung", "Währung"},
		Description:     []string{"Beguenstigter/Zahlungspflichtiger", "Verwendungszweck"},
		DefaultCurrency: "EUR",
	}

	amexProfile = Profile{
		Format:          model.FormatAmex,
		Signature:       []string{"Datum", "Beschreibung", "Karteninhaber", "Betrag"},
		Date:            []string{"Datum"},
		Amount:          []string{"Betrag"},
		Key:             []string{"Betreff"},
		Description:     []string{"Beschreibung"},
		DefaultCurrency: "EUR",
		NegateAmounts:   true,
	}

	milesMoreProfile = Profile{
		Format:          model.FormatMilesMore,
		Signature:       []string{"Belegdatum", "Buchungsdatum", "Beschreibung", "Betrag"},
		Date:            []string{"Belegdatum"},
		BookingDate:     []string{"Buchungsdatum"},
		Amount:          []string{"Betrag"},
		Currency:        []string{"Währung", "Waehrung"},
		Description:     []string{"Beschreibung"},
		DefaultCurrency: "EUR",
	}

	genericProfile = Profile{
		Format:          model.FormatGenericCSV,
		Date:            []string{"date", "datum", "buchungstag", "buchungsdatum", "transaction date", "data"},
		BookingDate:     []string{"booking date", "value date", "valuta", "valutadatum", "wertstellung"},
		Amount:          []string{"amount", "betrag", "umsatz", "valor", "value"},
		Currency:        []string{"currency", "währung", "waehrung", "moeda"},
		Key:             []string{"reference", "referenz", "transaction id", "id"},
		Description:     []string{"description", "beschreibung", "verwendungszweck", "buchungstext", "descrição", "descricao", "memo", "payee"},
		DefaultCurrency: "EUR",
	}
)

// ProfileParsers returns the CSV parsers in detection order, institution
// specific layouts before the generic fallback.
func ProfileParsers() []Parser {
	return []Parser{
		NewCSVParser(sparkasseProfile),
		NewCSVParser(amexProfile),
		NewCSVParser(milesMoreProfile),
		NewCSVParser(genericProfile),
	}
}

// CSVParser reads delimited text exports laid out per its Profile.
type CSVParser struct {
	profile Profile
}

// NewCSVParser creates a parser for the given layout.
func NewCSVParser(profile Profile) *CSVParser {
	return &CSVParser{profile: profile}
}

// Format returns the source format this parser produces.
func (p *CSVParser) Format() model.SourceFormat { return p.profile.Format }

// Detect reports whether the file is text with a header this profile can read.
func (p *CSVParser) Detect(filename string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".ofx", ".qfx", ".pdf":
		return false
	}
	if isBinary(data) {
		return false
	}
	text, _ := decodeText(data)
	records, err := readRecords(text, detectDelimiter(text), headerSearchDepth)
	if err != nil {
		return false
	}
	_, _, ok := findHeader(records, p.profile)
	return ok
}

// Parse decodes the file and maps every data row through the profile.
func (p *CSVParser) Parse(data []byte) ([]model.NormalizedRow, model.Diagnostics, error) {
	text, encoding := decodeText(data)
	delimiter := detectDelimiter(text)
	diag := model.Diagnostics{Encoding: encoding, Delimiter: delimiterName(delimiter)}

	records, err := readRecords(text, delimiter, -1)
	if err != nil {
		return nil, diag, fmt.Errorf("reading CSV: %w", err)
	}
	rows, err := mapTable(p.profile, records, &diag)
	return rows, diag, err
}

func readRecords(text string, delimiter rune, limit int) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for limit < 0 || len(records) < limit {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func isBinary(data []byte) bool {
	sample := data[:min(len(data), 512)]
	for _, b := range sample {
		if b == 0 {
			return true
		}
	}
	return false
}

// columns holds the resolved column positions of a header row.
type columns struct {
	description []int
	date        int
	bookingDate int
	amount      int
	currency    int
	key         int
}

// findHeader locates the header row within the first records and resolves
// the profile's columns against it.
func findHeader(records [][]string, profile Profile) (int, columns, bool) {
	for i, rec := range records[:min(len(records), headerSearchDepth)] {
		index := make(map[string]int, len(rec))
		for col, name := range rec {
			key := strings.ToLower(strings.TrimSpace(name))
			if _, seen := index[key]; !seen {
				index[key] = col
			}
		}

		if !hasAll(index, profile.Signature) {
			continue
		}
		cols := columns{
			date:        lookup(index, profile.Date),
			bookingDate: lookup(index, profile.BookingDate),
			amount:      lookup(index, profile.Amount),
			currency:    lookup(index, profile.Currency),
			key:         lookup(index, profile.Key),
		}
		for _, name := range profile.Description {
			if col, ok := index[strings.ToLower(name)]; ok {
				cols.description = append(cols.description, col)
				if len(profile.Signature) == 0 {
					break
				}
			}
		}
		if cols.date < 0 || cols.amount < 0 || len(cols.description) == 0 {
			continue
		}
		return i, cols, true
	}
	return 0, columns{}, false
}

func hasAll(index map[string]int, names []string) bool {
	for _, name := range names {
		if _, ok := index[strings.ToLower(name)]; !ok {
			return false
		}
	}
	return true
}

func lookup(index map[string]int, aliases []string) int {
	for _, alias := range aliases {
		if col, ok := index[strings.ToLower(alias)]; ok {
			return col
		}
	}
	return -1
}

// mapTable converts a header row plus data rows into normalized rows. Rows
// without a readable date are skipped and reported; rows with an unreadable
// amount are kept with the amount missing.
func mapTable(profile Profile, records [][]string, diag *model.Diagnostics) ([]model.NormalizedRow, error) {
	headerAt, cols, ok := findHeader(records, profile)
	if !ok {
		return nil, fmt.Errorf("no %s header row found", profile.Format)
	}
	header := records[headerAt]

	var (
		rows    []model.NormalizedRow
		skipped int
	)
	for n, rec := range records[headerAt+1:] {
		line := headerAt + n + 2
		if blank(rec) {
			continue
		}

		date, ok := parseDate(cell(rec, cols.date))
		if !ok {
			skipped++
			diag.Messages = append(diag.Messages, fmt.Sprintf("line %d: unreadable date %q", line, cell(rec, cols.date)))
			continue
		}

		amount, ok := parseAmount(cell(rec, cols.amount))
		if !ok {
			diag.Messages = append(diag.Messages, fmt.Sprintf("line %d: unreadable amount %q", line, cell(rec, cols.amount)))
		} else if profile.NegateAmounts {
			amount.Decimal = amount.Decimal.Neg()
		}

		parts := make([]string, 0, len(cols.description))
		for _, col := range cols.description {
			if v := strings.TrimSpace(cell(rec, col)); v != "" {
				parts = append(parts, v)
			}
		}
		rawDescription := strings.Join(parts, " ")

		row := model.NormalizedRow{
			Date:           date,
			Amount:         amount,
			Currency:       strings.ToUpper(strings.TrimSpace(cell(rec, cols.currency))),
			Description:    collapseSpaces(rawDescription),
			RawDescription: rawDescription,
			Key:            strings.TrimSpace(cell(rec, cols.key)),
			Source:         profile.Format,
			Raw:            rawColumns(header, rec),
			Index:          len(rows),
		}
		if row.Currency == "" {
			row.Currency = profile.DefaultCurrency
		}
		if booking, ok := parseDate(cell(rec, cols.bookingDate)); ok {
			row.BookingDate = &booking
		}
		rows = append(rows, row)
	}

	if skipped > 0 {
		if diag.Extra == nil {
			diag.Extra = make(map[string]any)
		}
		diag.Extra["skipped_rows"] = skipped
	}
	return rows, nil
}

func cell(rec []string, col int) string {
	if col < 0 || col >= len(rec) {
		return ""
	}
	return rec[col]
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// rawColumns keeps the source row verbatim keyed by header name.
func rawColumns(header, rec []string) map[string]any {
	raw := make(map[string]any, len(rec))
	for i, v := range rec {
		name := fmt.Sprintf("column_%d", i+1)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = strings.TrimSpace(header[i])
		}
		if _, taken := raw[name]; taken {
			name = fmt.Sprintf("%s#%d", name, i+1)
		}
		raw[name] = v
	}
	return raw
}
