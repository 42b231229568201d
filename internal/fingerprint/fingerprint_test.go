package fingerprint

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/statement-flow/internal/model"
)

func baseRow() model.NormalizedRow {
	return model.NormalizedRow{
		Source:         model.FormatGenericCSV,
		Date:           time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.NewNullDecimal(decimal.RequireFromString("-42.5")),
		Currency:       "EUR",
		Description:    "REWE SUPERMARKT MUNCHEN",
		RawDescription: "REWE Supermarkt München",
	}
}

func TestRow(t *testing.T) {
	tests := []struct {
		mutate   func(*model.NormalizedRow)
		name     string
		wantSame bool
	}{
		{
			name:     "identical content hashes identically",
			mutate:   func(*model.NormalizedRow) {},
			wantSame: true,
		},
		{
			name: "time of day is ignored",
			mutate: func(r *model.NormalizedRow) {
				r.Date = time.Date(2024, 3, 15, 18, 45, 0, 0, time.UTC)
			},
			wantSame: true,
		},
		{
			name: "amount precision drift is ignored",
			mutate: func(r *model.NormalizedRow) {
				r.Amount = decimal.NewNullDecimal(decimal.RequireFromString("-42.500"))
			},
			wantSame: true,
		},
		{
			name: "row index does not take part",
			mutate: func(r *model.NormalizedRow) {
				r.Index = 99
			},
			wantSame: true,
		},
		{
			name: "different amount",
			mutate: func(r *model.NormalizedRow) {
				r.Amount = decimal.NewNullDecimal(decimal.RequireFromString("-42.51"))
			},
		},
		{
			name: "different date",
			mutate: func(r *model.NormalizedRow) {
				r.Date = r.Date.AddDate(0, 0, 1)
			},
		},
		{
			name: "different description",
			mutate: func(r *model.NormalizedRow) {
				r.Description = "EDEKA"
			},
		},
		{
			name: "different source",
			mutate: func(r *model.NormalizedRow) {
				r.Source = model.FormatAmex
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := baseRow()
			other := baseRow()
			tt.mutate(&other)

			assert.Equal(t, Row(base), Row(base), "fingerprint must be stable across calls")
			assert.Equal(t, tt.wantSame, Row(base) == Row(other))
		})
	}
}

func TestRow_KnownValue(t *testing.T) {
	// Pinned so a change in the concatenation is caught: stored fingerprints
	// from earlier imports would otherwise stop matching.
	row := baseRow()
	assert.Len(t, Row(row), 64)
	assert.Equal(t,
		sum([]byte("generic_csv||-42.50|2024-03-15|REWE SUPERMARKT MUNCHEN|REWE Supermarkt München")),
		Row(row))
}

func TestRow_MissingAmount(t *testing.T) {
	row := baseRow()
	row.Amount = decimal.NullDecimal{}

	first := Row(row)
	assert.Equal(t, first, Row(row))
	assert.NotEqual(t, first, Row(baseRow()))
}

func TestStableStringify(t *testing.T) {
	a := map[string]any{
		"b": "2",
		"a": []any{"z", "y"},
		"c": map[string]any{"y": 1, "x": true},
	}
	b := map[string]any{
		"c": map[string]any{"x": true, "y": 1},
		"a": []any{"z", "y"},
		"b": "2",
	}

	sa, err := StableStringify(a)
	require.NoError(t, err)
	sb, err := StableStringify(b)
	require.NoError(t, err)

	assert.Equal(t, sa, sb)
	assert.Equal(t, `{"a":["z","y"],"b":"2","c":{"x":true,"y":1}}`, sa)
}

func TestRowHash(t *testing.T) {
	h1, err := RowHash(map[string]any{"Betrag": "-42,50", "Buchungstag": "15.03.2024"})
	require.NoError(t, err)
	h2, err := RowHash(map[string]any{"Buchungstag": "15.03.2024", "Betrag": "-42,50"})
	require.NoError(t, err)
	h3, err := RowHash(map[string]any{"Buchungstag": "15.03.2024", "Betrag": "-42,51"})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	// Array order is significant.
	h4, err := RowHash([]any{"a", "b"})
	require.NoError(t, err)
	h5, err := RowHash([]any{"b", "a"})
	require.NoError(t, err)
	assert.NotEqual(t, h4, h5)
}

func TestRules(t *testing.T) {
	rules := []model.Rule{
		{ID: 1, KeyWords: "REWE", Category1: "Mercados", Priority: 900, Active: true},
		{ID: 2, KeyWords: "SHELL", Category1: "Transporte", Priority: 500, Active: true},
	}
	reordered := []model.Rule{rules[1], rules[0]}

	assert.Equal(t, Rules(rules), Rules(reordered))

	withInactive := append([]model.Rule{{ID: 3, KeyWords: "X", Active: false}}, rules...)
	assert.Equal(t, Rules(rules), Rules(withInactive), "inactive rules do not affect the version")

	changed := []model.Rule{rules[0], rules[1]}
	changed[1].Priority = 600
	assert.NotEqual(t, Rules(rules), Rules(changed))
}

func TestTaxonomy(t *testing.T) {
	leaves := []model.LeafHierarchy{
		{LeafID: 1, Category1: "OPEN", Category2: "OPEN", Category3: "OPEN", AppCategoryName: "OPEN"},
		{LeafID: 2, Category1: "Mercados", Category2: "Supermercado", Category3: "REWE"},
	}
	assert.Equal(t, Taxonomy(leaves), Taxonomy([]model.LeafHierarchy{leaves[1], leaves[0]}))

	renamed := []model.LeafHierarchy{leaves[0], leaves[1]}
	renamed[1].Category3 = "EDEKA"
	assert.NotEqual(t, Taxonomy(leaves), Taxonomy(renamed))
}
