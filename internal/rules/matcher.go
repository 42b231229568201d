// Package rules implements deterministic keyword classification rules.
package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/statement-flow/internal/model"
)

// Confidence scoring constants.
const (
	baseConfidence   = 70
	systemBonus      = 10
	strictConfidence = 100
	maxConfidence    = 100
)

// Settings controls when a non-strict match may skip review.
type Settings struct {
	AutoConfirmHighConfidence bool
	ConfidenceThreshold       int
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		AutoConfirmHighConfidence: true,
		ConfidenceThreshold:       80,
	}
}

// Result is the outcome of matching one description.
type Result struct {
	Applied     *model.RuleMatch
	Reason      string
	Matches     []model.RuleMatch
	Confidence  int
	NeedsReview bool
	Conflict    bool
}

// compiledRule is a rule with its keyword fields pre-normalized.
type compiledRule struct {
	positive []string
	negative []string
	rule     model.Rule
}

// Matcher evaluates descriptions against a fixed rule set.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher prepares the active rules, ordered by priority descending with
// ascending rule ID as the tie-break. The input slice is not modified.
func NewMatcher(rules []model.Rule) *Matcher {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.Active {
			continue
		}
		compiled = append(compiled, compiledRule{
			rule:     r,
			positive: Expressions(r.KeyWords),
			negative: Expressions(r.KeyWordsNeg),
		})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].rule.Priority != compiled[j].rule.Priority {
			return compiled[i].rule.Priority > compiled[j].rule.Priority
		}
		return compiled[i].rule.ID < compiled[j].rule.ID
	})

	return &Matcher{rules: compiled}
}

// Match runs rules against description. It is shorthand for
// NewMatcher(rules).Match(description, settings).
func Match(description string, rules []model.Rule, settings Settings) Result {
	return NewMatcher(rules).Match(description, settings)
}

// Match classifies a description. Absence of a match or a conflict between
// rules is a normal, reviewable outcome.
func (m *Matcher) Match(description string, settings Settings) Result {
	normalized := Normalize(description)

	var matches []model.RuleMatch
	for _, cr := range m.rules {
		keyword, ok := cr.matches(normalized)
		if !ok {
			continue
		}
		matches = append(matches, toMatch(cr.rule, keyword))
	}

	if len(matches) == 0 {
		return Result{
			NeedsReview: true,
			Reason:      "no rule matched",
		}
	}

	if targets := distinctTargets(matches); targets > 1 {
		return Result{
			Matches:     matches,
			NeedsReview: true,
			Conflict:    true,
			Reason:      fmt.Sprintf("conflict: %d rules match %d different categories", len(matches), targets),
		}
	}

	applied := pick(matches)
	confidence := Confidence(applied)
	needsReview := !(applied.Strict ||
		(settings.AutoConfirmHighConfidence && confidence >= settings.ConfidenceThreshold))

	reason := fmt.Sprintf("rule %q matched %q", applied.RuleName, applied.MatchedKeyword)
	if applied.Strict {
		reason += " (strict)"
	}

	return Result{
		Matches:     matches,
		Applied:     &applied,
		Confidence:  confidence,
		NeedsReview: needsReview,
		Reason:      reason,
	}
}

// matches returns the first positive expression contained in the normalized
// description, provided no negative expression is present.
func (cr compiledRule) matches(normalized string) (string, bool) {
	hit := ""
	for _, expr := range cr.positive {
		if strings.Contains(normalized, expr) {
			hit = expr
			break
		}
	}
	if hit == "" {
		return "", false
	}
	for _, expr := range cr.negative {
		if strings.Contains(normalized, expr) {
			return "", false
		}
	}
	return hit, true
}

func toMatch(r model.Rule, keyword string) model.RuleMatch {
	var leaf *int64
	if r.LeafID != nil {
		v := *r.LeafID
		leaf = &v
	}
	return model.RuleMatch{
		RuleID:         r.ID,
		RuleName:       r.Name,
		Category1:      r.Category1,
		Category2:      r.Category2,
		Category3:      r.Category3,
		LeafID:         leaf,
		Priority:       r.Priority,
		Strict:         r.Strict,
		System:         r.IsSystem(),
		MatchedKeyword: keyword,
	}
}

// TargetKey identifies what a match would assign: the leaf when the rule names
// one, otherwise its category path.
func TargetKey(m model.RuleMatch) string {
	if m.LeafID != nil {
		return "leaf:" + strconv.FormatInt(*m.LeafID, 10)
	}
	return "path:" + model.PathKey(m.Category1, m.Category2, m.Category3)
}

func distinctTargets(matches []model.RuleMatch) int {
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		seen[TargetKey(m)] = struct{}{}
	}
	return len(seen)
}

// pick prefers the first strict match; matches are already in priority order.
func pick(matches []model.RuleMatch) model.RuleMatch {
	for _, m := range matches {
		if m.Strict {
			return m
		}
	}
	return matches[0]
}

// Confidence scores a single applied match.
func Confidence(m model.RuleMatch) int {
	if m.Strict {
		return strictConfidence
	}
	score := baseConfidence
	if m.System {
		score += systemBonus
	}
	switch {
	case m.Priority >= 900:
		score += 15
	case m.Priority >= 700:
		score += 10
	case m.Priority >= 500:
		score += 5
	}
	if score > maxConfidence {
		score = maxConfidence
	}
	return score
}
