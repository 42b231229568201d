package model

import (
	"encoding/json"
	"time"
)

// BatchStatus is the lifecycle state of an ingestion batch.
type BatchStatus string

// Batch statuses.
const (
	BatchProcessing BatchStatus = "processing"
	BatchPreview    BatchStatus = "preview"
	BatchCommitted  BatchStatus = "committed"
	BatchRolledBack BatchStatus = "rolled_back"
	BatchError      BatchStatus = "error"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchProcessing: {BatchPreview, BatchError},
	BatchPreview:    {BatchCommitted, BatchError},
	BatchCommitted:  {BatchPreview},
	BatchRolledBack: {BatchCommitted, BatchError},
}

// CanTransition reports whether moving from s to next is a legal step.
func (s BatchStatus) CanTransition(next BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Committable reports whether a commit may start from this status.
func (s BatchStatus) Committable() bool {
	return s == BatchPreview || s == BatchRolledBack
}

// Valid reports whether s is a known status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchProcessing, BatchPreview, BatchCommitted, BatchRolledBack, BatchError:
		return true
	}
	return false
}

// IngestionBatch is one upload event.
type IngestionBatch struct {
	CreatedAt            time.Time
	UpdatedAt            time.Time
	CommittedAt          *time.Time
	Diagnostics          Diagnostics
	ID                   string
	UserID               string
	Filename             string
	FileHash             string
	ParserVersion        string
	NormalizationVersion string
	RulesVersion         string
	TaxonomyVersion      string
	SourceFormat         SourceFormat
	Status               BatchStatus
	FileSize             int64
}

// Diagnostics is the inspectable record attached to a batch by every stage.
type Diagnostics struct {
	Format        string         `json:"format,omitempty"`
	Encoding      string         `json:"encoding,omitempty"`
	Delimiter     string         `json:"delimiter,omitempty"`
	Messages      []string       `json:"messages,omitempty"`
	FailedItems   []FailedItem   `json:"failed_items,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
	RowsTotal     int            `json:"rows_total"`
	NewItems      int            `json:"new_items"`
	Duplicates    int            `json:"duplicates"`
	Imported      int            `json:"imported,omitempty"`
	NeedsReview   int            `json:"needs_review,omitempty"`
	Conflicts     int            `json:"conflicts,omitempty"`
	RolledBack    int            `json:"rolled_back,omitempty"`
	CommitRetries int            `json:"commit_retries,omitempty"`
}

// FailedItem records a per-item commit failure.
type FailedItem struct {
	Error    string `json:"error"`
	ItemID   int64  `json:"item_id"`
	RowIndex int    `json:"row_index"`
}

// MarshalText encodes diagnostics for storage.
func (d Diagnostics) MarshalText() ([]byte, error) {
	type plain Diagnostics
	return json.Marshal(plain(d))
}

// UnmarshalText decodes stored diagnostics.
func (d *Diagnostics) UnmarshalText(data []byte) error {
	type plain Diagnostics
	var p plain
	if len(data) == 0 {
		*d = Diagnostics{}
		return nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = Diagnostics(p)
	return nil
}
