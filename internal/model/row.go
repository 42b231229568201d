// Package model defines the core data structures for the statement pipeline.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceFormat identifies the institution export a row was read from.
type SourceFormat string

// Known source formats.
const (
	FormatUnknown    SourceFormat = "unknown"
	FormatGenericCSV SourceFormat = "generic_csv"
	FormatMilesMore  SourceFormat = "miles_and_more"
	FormatAmex       SourceFormat = "amex"
	FormatSparkasse  SourceFormat = "sparkasse"
	FormatOFX        SourceFormat = "ofx"
	FormatXLSX       SourceFormat = "xlsx"
)

// NormalizedRow is the canonical record a normalizer produces for one source row.
type NormalizedRow struct {
	Date           time.Time           `json:"date"`
	BookingDate    *time.Time          `json:"booking_date,omitempty"`
	Amount         decimal.NullDecimal `json:"amount"`
	Raw            map[string]any      `json:"-"` // verbatim source columns
	Source         SourceFormat        `json:"source"`
	Key            string              `json:"key,omitempty"`
	Currency       string              `json:"currency"`
	Description    string              `json:"description"`
	RawDescription string              `json:"raw_description"`
	Index          int                 `json:"index"`
}
