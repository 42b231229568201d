package model

import "time"

// ItemStatus is the state of one source row inside a batch.
type ItemStatus string

// Item statuses.
const (
	ItemPending   ItemStatus = "pending"
	ItemDuplicate ItemStatus = "duplicate"
	ItemImported  ItemStatus = "imported"
)

// IngestionItem is one source row within a batch.
type IngestionItem struct {
	CreatedAt    time.Time
	Parsed       NormalizedRow
	RawPayload   map[string]any
	BatchID      string
	Fingerprint  string
	RowHash      string
	SourceFormat SourceFormat
	Status       ItemStatus
	ID           int64
	RowIndex     int
}

// Eligible reports whether the item still needs to be committed.
func (i IngestionItem) Eligible() bool {
	return i.Status == ItemPending
}
