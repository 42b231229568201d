// Package classify turns a transaction description into a complete category
// assignment. Batch commit and re-categorization both go through it so the
// two paths cannot drift apart.
package classify

import (
	"fmt"

	"github.com/Veraticus/statement-flow/internal/alias"
	"github.com/Veraticus/statement-flow/internal/fingerprint"
	"github.com/Veraticus/statement-flow/internal/model"
	"github.com/Veraticus/statement-flow/internal/rules"
	"github.com/Veraticus/statement-flow/internal/taxonomy"
)

// Snapshot is the rule set and taxonomy a classification pass runs against.
type Snapshot struct {
	Rules      []model.Rule
	Leaves     []model.LeafHierarchy
	Aliases    []model.AliasAsset
	Settings   rules.Settings
	OpenLeafID int64
}

// Outcome is the classification of one description.
type Outcome struct {
	Resolution        taxonomy.Resolution
	Category1         model.CategoryValue
	AliasDesc         string
	DescNorm          string
	Reason            string
	InternalTransfer  bool
	ExcludeFromBudget bool
	Display           bool
}

// Classifier is safe for concurrent use; it only reads its snapshot.
type Classifier struct {
	matcher         *rules.Matcher
	index           *taxonomy.Index
	aliases         *alias.Resolver
	rulesVersion    string
	taxonomyVersion string
	settings        rules.Settings
	openLeafID      int64
}

// New prepares a classifier. A snapshot without a resolvable OPEN leaf is
// rejected with taxonomy.ErrOpenLeafMissing.
func New(s Snapshot) (*Classifier, error) {
	index := taxonomy.NewIndex(s.Leaves)
	if s.OpenLeafID == 0 {
		return nil, taxonomy.ErrOpenLeafMissing
	}
	if _, ok := index.ByLeaf(s.OpenLeafID); !ok {
		return nil, fmt.Errorf("%w: leaf %d not in taxonomy", taxonomy.ErrOpenLeafMissing, s.OpenLeafID)
	}

	return &Classifier{
		matcher:         rules.NewMatcher(s.Rules),
		index:           index,
		aliases:         alias.NewResolver(s.Aliases),
		settings:        s.Settings,
		openLeafID:      s.OpenLeafID,
		rulesVersion:    fingerprint.Rules(s.Rules),
		taxonomyVersion: index.Version(),
	}, nil
}

// RulesVersion is the fingerprint of the rules this classifier applies.
func (c *Classifier) RulesVersion() string { return c.rulesVersion }

// TaxonomyVersion is the fingerprint of the taxonomy this classifier resolves against.
func (c *Classifier) TaxonomyVersion() string { return c.taxonomyVersion }

// Classify runs alias resolution, rule matching and leaf resolution.
func (c *Classifier) Classify(description string) (Outcome, error) {
	result := c.matcher.Match(description, c.settings)

	in := taxonomy.Input{
		Matches:     result.Matches,
		Index:       c.index,
		OpenLeafID:  c.openLeafID,
		Confidence:  result.Confidence,
		NeedsReview: result.NeedsReview,
	}
	if result.Applied != nil {
		id := result.Applied.RuleID
		in.RuleID = &id
		in.MatchedKeyword = result.Applied.MatchedKeyword
	}

	res, err := taxonomy.Resolve(in)
	if err != nil {
		return Outcome{}, err
	}

	cat1 := model.ParseCategory1(res.Hierarchy.Category1)
	internal := cat1.IsInternal()

	return Outcome{
		Resolution:        res,
		Category1:         cat1,
		AliasDesc:         c.aliases.Resolve(description),
		DescNorm:          rules.Normalize(description),
		Reason:            result.Reason,
		InternalTransfer:  internal,
		ExcludeFromBudget: internal,
		Display:           !internal,
	}, nil
}

// Apply copies the outcome onto txn and stamps it with the classifier's
// provenance. Manual assignments are left untouched.
func (c *Classifier) Apply(txn *model.Transaction, o Outcome) {
	if txn.ManualOverride {
		return
	}
	res := o.Resolution
	h := res.Hierarchy

	leaf := res.LeafID
	txn.LeafID = &leaf
	txn.Category1 = o.Category1
	txn.Category2 = h.Category2
	txn.Category3 = h.Category3
	txn.AppCategoryID = h.AppCategoryID
	txn.AppCategoryName = h.AppCategoryName
	txn.Confidence = res.Confidence
	txn.NeedsReview = res.NeedsReview
	txn.ConflictFlag = res.Status == model.ResolutionConflict
	txn.Candidates = res.Candidates
	txn.RuleID = res.RuleID
	txn.MatchedKeyword = res.MatchedKeyword
	txn.ResolutionStatus = res.Status
	txn.ClassifiedBy = model.ClassifiedAuto
	txn.InternalTransfer = o.InternalTransfer
	txn.ExcludeFromBudget = o.ExcludeFromBudget
	txn.Display = o.Display
	txn.AliasDesc = o.AliasDesc
	txn.DescNorm = o.DescNorm
	txn.RulesVersion = c.rulesVersion
	txn.TaxonomyVersion = c.taxonomyVersion
}
