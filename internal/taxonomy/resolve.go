package taxonomy

import (
	"errors"
	"fmt"

	"github.com/Veraticus/statement-flow/internal/model"
	"github.com/Veraticus/statement-flow/internal/rules"
)

// ErrOpenLeafMissing means the OPEN fallback leaf cannot be resolved. It is a
// configuration error that stops the classification pass.
var ErrOpenLeafMissing = errors.New("OPEN leaf is missing from the taxonomy")

// Input carries a rule-engine outcome into leaf resolution.
type Input struct {
	Index          *Index
	RuleID         *int64
	MatchedKeyword string
	Matches        []model.RuleMatch
	OpenLeafID     int64
	Confidence     int
	NeedsReview    bool
}

// Resolution is a concrete, always-valid leaf assignment.
type Resolution struct {
	RuleID         *int64
	MatchedKeyword string
	Status         model.ResolutionStatus
	Candidates     []model.RuleMatch
	Hierarchy      model.LeafHierarchy
	LeafID         int64
	Confidence     int
	NeedsReview    bool
}

// Resolve maps the engine outcome to a leaf: an explicit leaf id on the
// applied match, then its category path, then the OPEN leaf. Conflicts and
// outcomes that still need review land on OPEN with their candidates kept.
func Resolve(in Input) (Resolution, error) {
	if in.Index == nil || in.OpenLeafID == 0 {
		return Resolution{}, ErrOpenLeafMissing
	}
	open, ok := in.Index.ByLeaf(in.OpenLeafID)
	if !ok {
		return Resolution{}, fmt.Errorf("%w: leaf %d not indexed", ErrOpenLeafMissing, in.OpenLeafID)
	}

	fallback := func(status model.ResolutionStatus, confidence int) Resolution {
		return Resolution{
			LeafID:      open.LeafID,
			Hierarchy:   open,
			Status:      status,
			Confidence:  confidence,
			NeedsReview: true,
			Candidates:  cloneMatches(in.Matches),
		}
	}

	applied := findApplied(in.Matches, in.RuleID)
	if applied == nil {
		if distinctTargets(in.Matches) > 1 {
			return fallback(model.ResolutionConflict, 0), nil
		}
		return fallback(model.ResolutionFallbackOpen, 0), nil
	}

	if in.NeedsReview {
		res := fallback(model.ResolutionFallbackOpen, in.Confidence)
		res.RuleID = in.RuleID
		res.MatchedKeyword = in.MatchedKeyword
		return res, nil
	}

	leaf, found := lookup(in.Index, *applied)
	if !found {
		return fallback(model.ResolutionFallbackOpen, 0), nil
	}

	return Resolution{
		LeafID:         leaf.LeafID,
		Hierarchy:      leaf,
		Status:         model.ResolutionMatched,
		Confidence:     in.Confidence,
		NeedsReview:    false,
		RuleID:         in.RuleID,
		MatchedKeyword: in.MatchedKeyword,
	}, nil
}

func lookup(idx *Index, m model.RuleMatch) (model.LeafHierarchy, bool) {
	if m.LeafID != nil {
		if h, ok := idx.ByLeaf(*m.LeafID); ok {
			return h, true
		}
	}
	return idx.ByPath(m.Category1, m.Category2, m.Category3)
}

func findApplied(matches []model.RuleMatch, ruleID *int64) *model.RuleMatch {
	if ruleID == nil {
		return nil
	}
	for i := range matches {
		if matches[i].RuleID == *ruleID {
			m := matches[i]
			return &m
		}
	}
	return nil
}

func distinctTargets(matches []model.RuleMatch) int {
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		seen[rules.TargetKey(m)] = struct{}{}
	}
	return len(seen)
}

func cloneMatches(matches []model.RuleMatch) []model.RuleMatch {
	if len(matches) == 0 {
		return nil
	}
	return append([]model.RuleMatch(nil), matches...)
}
