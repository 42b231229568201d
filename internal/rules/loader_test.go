package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/statement-flow/internal/model"
)

func TestLoad(t *testing.T) {
	input := `
rules:
  - name: Supermarkets
    key_words: "REWE;EDEKA"
    category1: Mercados
    category2: Supermercado
    priority: 900
    strict: true
  - name: Amazon
    key_words: AMAZON
    key_words_negative: PRIME
    category1: Compras
    active: false
  - name: Card settlement
    key_words: "AMEX - ZAHLUNG"
    leaf_id: 7
    origin: system
`
	got, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Supermarkets", got[0].Name)
	assert.Equal(t, 900, got[0].Priority)
	assert.True(t, got[0].Strict)
	assert.True(t, got[0].Active)
	assert.Equal(t, model.RuleUser, got[0].Origin)

	assert.False(t, got[1].Active)
	assert.Equal(t, 500, got[1].Priority, "priority defaults to 500")
	assert.Equal(t, "PRIME", got[1].KeyWordsNeg)

	require.NotNil(t, got[2].LeafID)
	assert.Equal(t, int64(7), *got[2].LeafID)
	assert.Equal(t, model.RuleSystem, got[2].Origin)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unknown field", input: "rules:\n  - name: x\n    keywords: A\n    category1: B\n"},
		{name: "missing keywords", input: "rules:\n  - name: x\n    category1: B\n"},
		{name: "missing target", input: "rules:\n  - name: x\n    key_words: A\n"},
		{name: "bad origin", input: "rules:\n  - key_words: A\n    category1: B\n    origin: robot\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestLoad_Empty(t *testing.T) {
	got, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}
