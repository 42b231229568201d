// Package normalize turns raw statement exports into normalized rows. Each
// supported format is a Parser; the Registry picks one by sniffing the file.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/statement-flow/internal/model"
)

// Version tags the normalization rules stamped on every batch.
const Version = "normalize-v1"

// Parser converts one kind of statement export into normalized rows.
type Parser interface {
	Format() model.SourceFormat
	Detect(filename string, data []byte) bool
	Parse(data []byte) ([]model.NormalizedRow, model.Diagnostics, error)
}

// Reasons a file could not be normalized.
var (
	ErrEmptyFile          = errors.New("file is empty")
	ErrUnrecognizedFormat = errors.New("unrecognized file format")
	ErrNoRows             = errors.New("no transactions detected")
	ErrParseFailed        = errors.New("parse failed")
)

// Result is the outcome of normalizing one file. Err is set exactly when
// Success is false.
type Result struct {
	Err         error
	Format      model.SourceFormat
	Rows        []model.NormalizedRow
	Diagnostics model.Diagnostics
	Success     bool
}

// Registry holds parsers in detection order.
type Registry struct {
	byFormat map[model.SourceFormat]Parser
	parsers  []Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{byFormat: make(map[model.SourceFormat]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	if _, ok := r.byFormat[p.Format()]; ok {
		panic("duplicate parser format: " + string(p.Format()))
	}
	r.byFormat[p.Format()] = p
	r.parsers = append(r.parsers, p)
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format model.SourceFormat) Parser {
	return r.byFormat[format]
}

// DefaultRegistry returns a registry with all built-in parsers. Binary and
// markup formats come first so the delimited-text fallback only sees text.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewXLSXParser())
	r.Register(NewOFXParser())
	for _, p := range ProfileParsers() {
		r.Register(p)
	}
	return r
}

// Normalize detects the file's format and parses it. Failures are reported
// through Success and Diagnostics rather than an error so callers can keep
// the diagnostics with the batch.
func (r *Registry) Normalize(filename string, data []byte) Result {
	if len(data) == 0 {
		return Result{
			Err:         ErrEmptyFile,
			Format:      model.FormatUnknown,
			Diagnostics: model.Diagnostics{Messages: []string{ErrEmptyFile.Error()}},
		}
	}

	for _, p := range r.parsers {
		if !p.Detect(filename, data) {
			continue
		}
		rows, diag, err := p.Parse(data)
		diag.Format = string(p.Format())
		diag.RowsTotal = len(rows)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrParseFailed, err)
			diag.Messages = append(diag.Messages, err.Error())
			slog.Warn("Failed to parse statement", "filename", filename, "format", p.Format(), "error", err)
			return Result{Err: err, Format: p.Format(), Diagnostics: diag}
		}
		if len(rows) == 0 {
			diag.Messages = append(diag.Messages, ErrNoRows.Error())
			return Result{Err: ErrNoRows, Format: p.Format(), Diagnostics: diag}
		}
		return Result{Format: p.Format(), Rows: rows, Diagnostics: diag, Success: true}
	}

	return Result{
		Err:         ErrUnrecognizedFormat,
		Format:      model.FormatUnknown,
		Diagnostics: model.Diagnostics{Messages: []string{ErrUnrecognizedFormat.Error()}},
	}
}
