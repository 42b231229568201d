package model

import "strings"

// OpenCategory is the mandatory fallback name used at every taxonomy level.
const OpenCategory = "OPEN"

// Category1 is the top-level category a transaction is filed under.
type Category1 string

// Known top-level categories.
const (
	Category1Open          Category1 = OpenCategory
	Category1Mercados      Category1 = "Mercados"
	Category1Moradia       Category1 = "Moradia"
	Category1Compras       Category1 = "Compras"
	Category1Alimentacao   Category1 = "Alimentação"
	Category1Transporte    Category1 = "Transporte"
	Category1Saude         Category1 = "Saúde"
	Category1Lazer         Category1 = "Lazer"
	Category1Educacao      Category1 = "Educação"
	Category1Financiamento Category1 = "Financiamento"
	Category1Receitas      Category1 = "Receitas"
	Category1Interno       Category1 = "Interno"
	Category1Outros        Category1 = "Outros"
)

var knownCategory1 = map[Category1]struct{}{
	Category1Open: {}, Category1Mercados: {}, Category1Moradia: {}, Category1Compras: {},
	Category1Alimentacao: {}, Category1Transporte: {}, Category1Saude: {}, Category1Lazer: {},
	Category1Educacao: {}, Category1Financiamento: {}, Category1Receitas: {}, Category1Interno: {},
	Category1Outros: {},
}

// CategoryKind discriminates a CategoryValue.
type CategoryKind string

// Category kinds.
const (
	CategoryUnset  CategoryKind = "unset"
	CategoryKnown  CategoryKind = "known"
	CategoryLegacy CategoryKind = "legacy"
)

// CategoryValue is a top-level category checked against the known set.
// Free text that is not a known category is kept verbatim as a legacy value
// instead of being trusted as a first-class category.
type CategoryValue struct {
	Name Category1
	Kind CategoryKind
}

// ParseCategory1 classifies raw text as known, legacy or unset.
func ParseCategory1(raw string) CategoryValue {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CategoryValue{Kind: CategoryUnset}
	}
	for known := range knownCategory1 {
		if strings.EqualFold(string(known), trimmed) {
			return CategoryValue{Name: known, Kind: CategoryKnown}
		}
	}
	return CategoryValue{Name: Category1(trimmed), Kind: CategoryLegacy}
}

// IsInternal reports whether the category marks internal transfers.
func (c CategoryValue) IsInternal() bool {
	return c.Kind == CategoryKnown && c.Name == Category1Interno
}

func (c CategoryValue) String() string {
	return string(c.Name)
}
