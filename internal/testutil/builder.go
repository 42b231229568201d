package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/statement-flow/internal/model"
	"github.com/Veraticus/statement-flow/internal/service"
	"github.com/Veraticus/statement-flow/internal/taxonomy"
)

// Common leaves used across tests.
var (
	LeafSupermarket = taxonomy.SeedLeaf{Category1: "Mercados", Category2: "Supermercado", Category3: "REWE", AppCategory: "Mercado"}
	LeafFuel        = taxonomy.SeedLeaf{Category1: "Transporte", Category2: "Combustível", Category3: "Posto", AppCategory: "Transporte"}
	LeafSalary      = taxonomy.SeedLeaf{Category1: "Receitas", Category2: "Salário", Category3: "Salário", AppCategory: "Receitas"}
	LeafOwnAccount  = taxonomy.SeedLeaf{Category1: "Interno", Category2: "Transferência", Category3: "Conta própria", AppCategory: "Interno"}
)

// Fixture is what a Builder created.
type Fixture struct {
	Rules   []model.Rule
	Aliases []model.AliasAsset
	Leaves  int
}

// Builder provides a fluent interface for seeding taxonomy, rules and
// aliases for one user.
type Builder struct {
	t       *testing.T
	userID  string
	leaves  []taxonomy.SeedLeaf
	rules   []model.Rule
	aliases []model.AliasAsset
}

// NewBuilder creates a builder for the given user.
func NewBuilder(t *testing.T, userID string) *Builder {
	t.Helper()
	return &Builder{t: t, userID: userID}
}

// WithLeaf adds a taxonomy leaf.
func (b *Builder) WithLeaf(leaf taxonomy.SeedLeaf) *Builder {
	b.leaves = append(b.leaves, leaf)
	return b
}

// WithBasicTaxonomy adds the leaves most tests classify into.
func (b *Builder) WithBasicTaxonomy() *Builder {
	for _, leaf := range []taxonomy.SeedLeaf{LeafSupermarket, LeafFuel, LeafSalary, LeafOwnAccount} {
		b.WithLeaf(leaf)
	}
	return b
}

// WithRule adds a rule. Rules are created in the order given.
func (b *Builder) WithRule(rule model.Rule) *Builder {
	b.rules = append(b.rules, rule)
	return b
}

// WithAlias adds a display alias.
func (b *Builder) WithAlias(alias, keywords string) *Builder {
	b.aliases = append(b.aliases, model.AliasAsset{Alias: alias, KeyWords: keywords})
	return b
}

// Build creates everything in the store.
func (b *Builder) Build(ctx context.Context, store service.Storage) (Fixture, error) {
	b.t.Helper()

	n, err := taxonomy.Seed(ctx, store, b.userID, b.leaves)
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to seed taxonomy: %w", err)
	}
	fixture := Fixture{Leaves: n}

	for _, rule := range b.rules {
		rule.UserID = b.userID
		if err := store.CreateRule(ctx, &rule); err != nil {
			return Fixture{}, fmt.Errorf("failed to create rule %q: %w", rule.Name, err)
		}
		fixture.Rules = append(fixture.Rules, rule)
	}

	for _, alias := range b.aliases {
		alias.UserID = b.userID
		if err := store.CreateAlias(ctx, &alias); err != nil {
			return Fixture{}, fmt.Errorf("failed to create alias %q: %w", alias.Alias, err)
		}
		fixture.Aliases = append(fixture.Aliases, alias)
	}
	return fixture, nil
}

// Rule returns an active user rule targeting a category path by name. Its
// priority is high enough to be auto-confirmed under the default settings.
func Rule(keywords, category1, category2, category3 string) model.Rule {
	return model.Rule{
		Name:      keywords,
		KeyWords:  keywords,
		Category1: category1,
		Category2: category2,
		Category3: category3,
		Priority:  700,
		Origin:    model.RuleUser,
		Active:    true,
	}
}

// StrictRule returns Rule with the strict flag and a high priority.
func StrictRule(keywords, category1, category2, category3 string) model.Rule {
	r := Rule(keywords, category1, category2, category3)
	r.Strict = true
	r.Priority = 900
	return r
}
