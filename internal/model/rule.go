package model

import "time"

// RuleOrigin distinguishes built-in rules from user-authored ones.
type RuleOrigin string

// Rule origins.
const (
	RuleSystem RuleOrigin = "system"
	RuleUser   RuleOrigin = "user"
)

// Rule is a keyword classification directive.
type Rule struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LeafID      *int64
	UserID      string
	Name        string
	KeyWords    string
	KeyWordsNeg string
	Category1   string
	Category2   string
	Category3   string
	Origin      RuleOrigin
	ID          int64
	Priority    int
	Strict      bool
	Active      bool
}

// IsSystem reports whether the rule ships with the application.
func (r Rule) IsSystem() bool {
	return r.Origin == RuleSystem
}

// RuleMatch is one rule that matched a description.
type RuleMatch struct {
	LeafID         *int64 `json:"leaf_id,omitempty"`
	RuleName       string `json:"rule_name"`
	Category1      string `json:"category1"`
	Category2      string `json:"category2,omitempty"`
	Category3      string `json:"category3,omitempty"`
	MatchedKeyword string `json:"matched_keyword"`
	RuleID         int64  `json:"rule_id"`
	Priority       int    `json:"priority"`
	Strict         bool   `json:"strict"`
	System         bool   `json:"system"`
}

// ResolutionStatus is the outcome of mapping a rule match to a leaf.
type ResolutionStatus string

// Resolution statuses.
const (
	ResolutionMatched      ResolutionStatus = "MATCHED"
	ResolutionConflict     ResolutionStatus = "CONFLICT"
	ResolutionFallbackOpen ResolutionStatus = "FALLBACK_OPEN"
)
