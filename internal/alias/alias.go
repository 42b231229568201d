// Package alias maps transaction descriptions to display labels. Aliases are
// cosmetic and never influence classification.
package alias

import (
	"sort"
	"strings"

	"github.com/Veraticus/statement-flow/internal/model"
	"github.com/Veraticus/statement-flow/internal/rules"
)

type compiled struct {
	label    string
	keywords []string
	id       int64
}

// Resolver finds the display label for a description.
type Resolver struct {
	aliases []compiled
}

// NewResolver prepares aliases in ascending id order.
func NewResolver(aliases []model.AliasAsset) *Resolver {
	out := make([]compiled, 0, len(aliases))
	for _, a := range aliases {
		kw := rules.Expressions(a.KeyWords)
		if len(kw) == 0 || strings.TrimSpace(a.Alias) == "" {
			continue
		}
		out = append(out, compiled{id: a.ID, label: a.Alias, keywords: kw})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].id < out[j].id })
	return &Resolver{aliases: out}
}

// Resolve returns the first alias whose keyword appears in the description,
// or "" when none does.
func (r *Resolver) Resolve(description string) string {
	if r == nil {
		return ""
	}
	normalized := rules.Normalize(description)
	for _, a := range r.aliases {
		for _, kw := range a.keywords {
			if strings.Contains(normalized, kw) {
				return a.label
			}
		}
	}
	return ""
}
