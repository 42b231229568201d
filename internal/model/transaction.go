package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClassifiedBy records who produced a transaction's category.
type ClassifiedBy string

// Classification origins.
const (
	ClassifiedAuto   ClassifiedBy = "auto"
	ClassifiedManual ClassifiedBy = "manual"
	ClassifiedAI     ClassifiedBy = "ai"
)

// Transaction is a canonical financial event owned by a user.
type Transaction struct {
	PaymentDate       time.Time
	CreatedAt         time.Time
	BookingDate       *time.Time
	LeafID            *int64
	AppCategoryID     *int64
	RuleID            *int64
	Amount            decimal.Decimal
	Category1         CategoryValue
	Candidates        []RuleMatch
	UserID            string
	Key               string
	Currency          string
	DescRaw           string
	DescNorm          string
	AliasDesc         string
	Category2         string
	Category3         string
	AppCategoryName   string
	ClassifiedBy      ClassifiedBy
	ResolutionStatus  ResolutionStatus
	MatchedKeyword    string
	RulesVersion      string
	TaxonomyVersion   string
	ParserVersion     string
	SourceFormat      SourceFormat
	ID                int64
	Confidence        int
	NeedsReview       bool
	ConflictFlag      bool
	InternalTransfer  bool
	ExcludeFromBudget bool
	Display           bool
	ManualOverride    bool
}

// TransactionEvidenceLink ties a transaction to the ingestion item backing it.
type TransactionEvidenceLink struct {
	CreatedAt       time.Time
	TransactionID   int64
	IngestionItemID int64
	MatchConfidence int
	IsPrimary       bool
}
