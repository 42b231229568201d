package rules

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/statement-flow/internal/model"
)

// ErrInvalidRule is returned for rules that cannot be stored.
var ErrInvalidRule = errors.New("invalid rule")

// ruleSpec is the on-disk layout of one rule.
type ruleSpec struct {
	Active      *bool  `yaml:"active"`
	LeafID      *int64 `yaml:"leaf_id"`
	Name        string `yaml:"name"`
	KeyWords    string `yaml:"key_words"`
	KeyWordsNeg string `yaml:"key_words_negative"`
	Category1   string `yaml:"category1"`
	Category2   string `yaml:"category2"`
	Category3   string `yaml:"category3"`
	Origin      string `yaml:"origin"`
	Priority    int    `yaml:"priority"`
	Strict      bool   `yaml:"strict"`
}

// Load reads a YAML rule set of the form `rules: [...]`. Rules default to
// active user rules with priority 500.
func Load(r io.Reader) ([]model.Rule, error) {
	var file struct {
		Rules []ruleSpec `yaml:"rules"`
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	out := make([]model.Rule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		rule := model.Rule{
			Name:        spec.Name,
			KeyWords:    spec.KeyWords,
			KeyWordsNeg: spec.KeyWordsNeg,
			Category1:   spec.Category1,
			Category2:   spec.Category2,
			Category3:   spec.Category3,
			LeafID:      spec.LeafID,
			Priority:    spec.Priority,
			Strict:      spec.Strict,
			Origin:      model.RuleOrigin(spec.Origin),
			Active:      spec.Active == nil || *spec.Active,
		}
		if rule.Origin == "" {
			rule.Origin = model.RuleUser
		}
		if rule.Priority == 0 {
			rule.Priority = 500
		}
		if err := Validate(rule); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, rule.Name, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

// Validate checks that a rule can match something and names a target.
func Validate(r model.Rule) error {
	if len(Expressions(r.KeyWords)) == 0 {
		return fmt.Errorf("%w: at least one keyword expression is required", ErrInvalidRule)
	}
	if r.LeafID == nil && strings.TrimSpace(r.Category1) == "" {
		return fmt.Errorf("%w: category1 or leaf_id is required", ErrInvalidRule)
	}
	switch r.Origin {
	case model.RuleSystem, model.RuleUser, "":
	default:
		return fmt.Errorf("%w: unknown origin %q", ErrInvalidRule, r.Origin)
	}
	return nil
}
