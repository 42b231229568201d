package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/statement-flow/internal/model"
)

func int64Ptr(v int64) *int64 { return &v }

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Rewe Supermarkt München", want: "REWE SUPERMARKT MUNCHEN"},
		{in: "  café   crème\t", want: "CAFE CREME"},
		{in: "Saúde  Ótica", want: "SAUDE OTICA"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestExpressions(t *testing.T) {
	assert.Equal(t, []string{"REWE", "EDEKA"}, Expressions("REWE;EDEKA"))
	assert.Equal(t, []string{"AMEX - ZAHLUNG", "LIDL"}, Expressions(" amex - zahlung ; ;lidl;"))
	assert.Nil(t, Expressions("   "))
}

func TestMatch(t *testing.T) {
	settings := DefaultSettings()

	rewe := model.Rule{ID: 1, Name: "Supermarkets", KeyWords: "REWE;EDEKA", Category1: "Mercados", Priority: 900, Strict: true, Active: true}

	tests := []struct {
		name            string
		description     string
		rules           []model.Rule
		settings        Settings
		wantAppliedID   int64
		wantMatchIDs    []int64
		wantConfidence  int
		wantNeedsReview bool
		wantConflict    bool
	}{
		{
			name:            "strict rule applies with full confidence",
			description:     "REWE SUPERMARKT MUNCHEN",
			rules:           []model.Rule{rewe},
			settings:        settings,
			wantAppliedID:   1,
			wantMatchIDs:    []int64{1},
			wantConfidence:  100,
			wantNeedsReview: false,
		},
		{
			name:            "no rule matches",
			description:     "UNKNOWN MERCHANT XYZ",
			rules:           []model.Rule{rewe},
			settings:        settings,
			wantConfidence:  0,
			wantNeedsReview: true,
		},
		{
			name:        "matching is case and accent insensitive",
			description: "rewe markt köln",
			rules:       []model.Rule{rewe},
			settings:    settings,
			wantAppliedID:  1,
			wantMatchIDs:   []int64{1},
			wantConfidence: 100,
		},
		{
			name:        "negative keyword blocks a match",
			description: "AMAZON PRIME VIDEO",
			rules: []model.Rule{
				{ID: 2, Name: "Amazon", KeyWords: "AMAZON", KeyWordsNeg: "PRIME", Category1: "Compras", Priority: 500, Active: true},
			},
			settings:        settings,
			wantNeedsReview: true,
		},
		{
			name:        "multi-word expression is atomic",
			description: "ZAHLUNG AMEX",
			rules: []model.Rule{
				{ID: 3, Name: "Card payment", KeyWords: "AMEX - ZAHLUNG", Category1: "Interno", Priority: 900, Active: true},
			},
			settings:        settings,
			wantNeedsReview: true,
		},
		{
			name:        "disjoint targets are a conflict",
			description: "SHELL TANKSTELLE REWE TO GO",
			rules: []model.Rule{
				{ID: 4, Name: "Fuel", KeyWords: "SHELL", Category1: "Transporte", Priority: 800, Active: true},
				{ID: 5, Name: "Groceries", KeyWords: "REWE", Category1: "Mercados", Priority: 700, Active: true},
			},
			settings:        settings,
			wantMatchIDs:    []int64{4, 5},
			wantConfidence:  0,
			wantNeedsReview: true,
			wantConflict:    true,
		},
		{
			name:        "strict rule wins among matches to the same target",
			description: "NETFLIX.COM",
			rules: []model.Rule{
				{ID: 6, Name: "Streaming", KeyWords: "NETFLIX", Category1: "Lazer", Category2: "Streaming", Priority: 950, Active: true},
				{ID: 7, Name: "Netflix strict", KeyWords: "NETFLIX.COM", Category1: "Lazer", Category2: "Streaming", Priority: 100, Strict: true, Active: true},
			},
			settings:        settings,
			wantAppliedID:   7,
			wantMatchIDs:    []int64{6, 7},
			wantConfidence:  100,
			wantNeedsReview: false,
		},
		{
			name:        "same leaf with different names is not a conflict",
			description: "DM DROGERIE",
			rules: []model.Rule{
				{ID: 8, Name: "DM", KeyWords: "DM DROGERIE", LeafID: int64Ptr(42), Category1: "Saúde", Priority: 600, Active: true},
				{ID: 9, Name: "Drugstore", KeyWords: "DROGERIE", LeafID: int64Ptr(42), Category1: "Compras", Priority: 500, Active: true},
			},
			settings:        settings,
			wantAppliedID:   8,
			wantMatchIDs:    []int64{8, 9},
			wantConfidence:  75,
			wantNeedsReview: true,
		},
		{
			name:        "high confidence auto-confirms when enabled",
			description: "VODAFONE GMBH",
			rules: []model.Rule{
				{ID: 10, Name: "Phone", KeyWords: "VODAFONE", Category1: "Moradia", Priority: 900, Origin: model.RuleSystem, Active: true},
			},
			settings:        settings,
			wantAppliedID:   10,
			wantMatchIDs:    []int64{10},
			wantConfidence:  95,
			wantNeedsReview: false,
		},
		{
			name:        "high confidence still needs review when auto-confirm is off",
			description: "VODAFONE GMBH",
			rules: []model.Rule{
				{ID: 10, Name: "Phone", KeyWords: "VODAFONE", Category1: "Moradia", Priority: 900, Origin: model.RuleSystem, Active: true},
			},
			settings:        Settings{AutoConfirmHighConfidence: false, ConfidenceThreshold: 80},
			wantAppliedID:   10,
			wantMatchIDs:    []int64{10},
			wantConfidence:  95,
			wantNeedsReview: true,
		},
		{
			name:        "inactive rules are ignored",
			description: "REWE",
			rules: []model.Rule{
				{ID: 11, Name: "Old", KeyWords: "REWE", Category1: "Outros", Priority: 999, Strict: true, Active: false},
			},
			settings:        settings,
			wantNeedsReview: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.description, tt.rules, tt.settings)

			assert.Equal(t, tt.wantConfidence, got.Confidence)
			assert.Equal(t, tt.wantNeedsReview, got.NeedsReview)
			assert.Equal(t, tt.wantConflict, got.Conflict)
			assert.NotEmpty(t, got.Reason)

			ids := make([]int64, 0, len(got.Matches))
			for _, m := range got.Matches {
				ids = append(ids, m.RuleID)
			}
			if tt.wantMatchIDs == nil {
				assert.Empty(t, ids)
			} else {
				assert.Equal(t, tt.wantMatchIDs, ids)
			}

			if tt.wantAppliedID == 0 {
				assert.Nil(t, got.Applied)
			} else {
				require.NotNil(t, got.Applied)
				assert.Equal(t, tt.wantAppliedID, got.Applied.RuleID)
			}
		})
	}
}

func TestMatch_EqualPriorityBreaksTiesByRuleID(t *testing.T) {
	rules := []model.Rule{
		{ID: 20, Name: "later", KeyWords: "BAHN", Category1: "Transporte", Priority: 500, Active: true},
		{ID: 12, Name: "earlier", KeyWords: "DB BAHN", Category1: "Transporte", Priority: 500, Active: true},
	}
	got := Match("DB BAHN TICKET", rules, DefaultSettings())

	require.NotNil(t, got.Applied)
	assert.Equal(t, int64(12), got.Applied.RuleID)
	assert.Equal(t, "DB BAHN", got.Applied.MatchedKeyword)

	// Reversing the input yields the same outcome.
	reversed := Match("DB BAHN TICKET", []model.Rule{rules[1], rules[0]}, DefaultSettings())
	assert.Equal(t, got, reversed)
}

func TestMatch_DoesNotMutateInput(t *testing.T) {
	rules := []model.Rule{
		{ID: 1, KeyWords: "A", Category1: "X", Priority: 1, Active: true},
		{ID: 2, KeyWords: "A", Category1: "X", Priority: 9, Active: true},
	}
	before := append([]model.Rule(nil), rules...)

	got := Match("A", rules, DefaultSettings())
	require.NotNil(t, got.Applied)
	assert.Equal(t, int64(2), got.Applied.RuleID)
	assert.Equal(t, before, rules)
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name  string
		match model.RuleMatch
		want  int
	}{
		{name: "strict", match: model.RuleMatch{Strict: true, Priority: 1}, want: 100},
		{name: "base", match: model.RuleMatch{Priority: 100}, want: 70},
		{name: "band 500", match: model.RuleMatch{Priority: 500}, want: 75},
		{name: "band 700", match: model.RuleMatch{Priority: 700}, want: 80},
		{name: "band 900", match: model.RuleMatch{Priority: 900}, want: 85},
		{name: "system band 900", match: model.RuleMatch{Priority: 900, System: true}, want: 95},
		{name: "system low", match: model.RuleMatch{Priority: 10, System: true}, want: 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Confidence(tt.match))
		})
	}
}
