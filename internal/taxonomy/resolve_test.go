package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/statement-flow/internal/model"
	"github.com/Veraticus/statement-flow/internal/rules"
)

func int64Ptr(v int64) *int64 { return &v }

const openLeaf int64 = 1

func testIndex() *Index {
	return NewIndex([]model.LeafHierarchy{
		{LeafID: openLeaf, Category1: "OPEN", Category2: "OPEN", Category3: "OPEN", AppCategoryName: "OPEN", AppCategoryID: int64Ptr(1)},
		{LeafID: 10, Category1: "Mercados", Category2: "Supermercado", Category3: "REWE", AppCategoryName: "Mercado", AppCategoryID: int64Ptr(2)},
		{LeafID: 11, Category1: "Transporte", Category2: "Combustível", Category3: "Posto", AppCategoryName: "Transporte", AppCategoryID: int64Ptr(3)},
	})
}

func TestResolve(t *testing.T) {
	reweByLeaf := model.RuleMatch{RuleID: 1, LeafID: int64Ptr(10), Category1: "Mercados", Priority: 900, Strict: true}
	reweByPath := model.RuleMatch{RuleID: 2, Category1: "mercados", Category2: "supermercado", Category3: "rewe", Priority: 500}
	staleLeaf := model.RuleMatch{RuleID: 3, LeafID: int64Ptr(999), Category1: "Transporte", Category2: "Combustível", Category3: "Posto"}
	legacy := model.RuleMatch{RuleID: 4, Category1: "Alimentação"}
	fuel := model.RuleMatch{RuleID: 5, Category1: "Transporte", Category2: "Combustível", Category3: "Posto"}

	tests := []struct {
		name           string
		in             Input
		wantLeaf       int64
		wantStatus     model.ResolutionStatus
		wantConfidence int
		wantReview     bool
		wantCandidates int
	}{
		{
			name:           "explicit leaf id",
			in:             Input{Matches: []model.RuleMatch{reweByLeaf}, RuleID: int64Ptr(1), Confidence: 100},
			wantLeaf:       10,
			wantStatus:     model.ResolutionMatched,
			wantConfidence: 100,
		},
		{
			name:           "path lookup for legacy rule without leaf",
			in:             Input{Matches: []model.RuleMatch{reweByPath}, RuleID: int64Ptr(2), Confidence: 85},
			wantLeaf:       10,
			wantStatus:     model.ResolutionMatched,
			wantConfidence: 85,
		},
		{
			name:           "unknown leaf id falls back to path",
			in:             Input{Matches: []model.RuleMatch{staleLeaf}, RuleID: int64Ptr(3), Confidence: 90},
			wantLeaf:       11,
			wantStatus:     model.ResolutionMatched,
			wantConfidence: 90,
		},
		{
			name:           "unresolvable target falls back to OPEN",
			in:             Input{Matches: []model.RuleMatch{legacy}, RuleID: int64Ptr(4), Confidence: 90},
			wantLeaf:       openLeaf,
			wantStatus:     model.ResolutionFallbackOpen,
			wantReview:     true,
			wantCandidates: 1,
		},
		{
			name:       "no match falls back to OPEN",
			in:         Input{NeedsReview: true},
			wantLeaf:   openLeaf,
			wantStatus: model.ResolutionFallbackOpen,
			wantReview: true,
		},
		{
			name:           "conflict keeps every candidate",
			in:             Input{Matches: []model.RuleMatch{reweByLeaf, fuel}, NeedsReview: true},
			wantLeaf:       openLeaf,
			wantStatus:     model.ResolutionConflict,
			wantReview:     true,
			wantCandidates: 2,
		},
		{
			name:           "engine asked for review",
			in:             Input{Matches: []model.RuleMatch{reweByPath}, RuleID: int64Ptr(2), Confidence: 75, NeedsReview: true},
			wantLeaf:       openLeaf,
			wantStatus:     model.ResolutionFallbackOpen,
			wantConfidence: 75,
			wantReview:     true,
			wantCandidates: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			in.Index = testIndex()
			in.OpenLeafID = openLeaf

			got, err := Resolve(in)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLeaf, got.LeafID)
			assert.Equal(t, tt.wantLeaf, got.Hierarchy.LeafID)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantConfidence, got.Confidence)
			assert.Equal(t, tt.wantReview, got.NeedsReview)
			assert.Len(t, got.Candidates, tt.wantCandidates)
		})
	}
}

func TestResolve_OpenLeafMissing(t *testing.T) {
	_, err := Resolve(Input{Index: testIndex()})
	assert.ErrorIs(t, err, ErrOpenLeafMissing)

	_, err = Resolve(Input{Index: testIndex(), OpenLeafID: 404})
	assert.ErrorIs(t, err, ErrOpenLeafMissing)

	_, err = Resolve(Input{OpenLeafID: openLeaf})
	assert.ErrorIs(t, err, ErrOpenLeafMissing)
}

func TestResolve_FromEngine(t *testing.T) {
	ruleSet := []model.Rule{
		{ID: 1, Name: "Supermarkets", KeyWords: "REWE;EDEKA", Category1: "Mercados", Category2: "Supermercado", Category3: "REWE", Priority: 900, Strict: true, Active: true},
	}

	for _, tc := range []struct {
		description string
		wantLeaf    int64
		wantStatus  model.ResolutionStatus
		wantReview  bool
	}{
		{description: "REWE SUPERMARKT MUNCHEN", wantLeaf: 10, wantStatus: model.ResolutionMatched},
		{description: "UNKNOWN MERCHANT XYZ", wantLeaf: openLeaf, wantStatus: model.ResolutionFallbackOpen, wantReview: true},
	} {
		t.Run(tc.description, func(t *testing.T) {
			result := rules.Match(tc.description, ruleSet, rules.DefaultSettings())
			in := Input{
				Matches:     result.Matches,
				Index:       testIndex(),
				OpenLeafID:  openLeaf,
				Confidence:  result.Confidence,
				NeedsReview: result.NeedsReview,
			}
			if result.Applied != nil {
				in.RuleID = &result.Applied.RuleID
				in.MatchedKeyword = result.Applied.MatchedKeyword
			}

			got, err := Resolve(in)
			require.NoError(t, err)
			assert.Equal(t, tc.wantLeaf, got.LeafID)
			assert.Equal(t, tc.wantStatus, got.Status)
			assert.Equal(t, tc.wantReview, got.NeedsReview)
			assert.NotEmpty(t, got.Hierarchy.Category1, "category is never empty")
		})
	}
}

func TestIndex(t *testing.T) {
	idx := testIndex()
	assert.Equal(t, 3, idx.Len())

	h, ok := idx.ByPath(" MERCADOS ", "supermercado", "Rewe")
	require.True(t, ok)
	assert.Equal(t, int64(10), h.LeafID)

	_, ok = idx.ByLeaf(404)
	assert.False(t, ok)

	assert.Equal(t, idx.Version(), testIndex().Version())
}
