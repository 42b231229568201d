// Package taxonomy resolves rule matches to leaves of the three-level
// category tree and guarantees the OPEN fallback chain exists.
package taxonomy

import (
	"github.com/Veraticus/statement-flow/internal/fingerprint"
	"github.com/Veraticus/statement-flow/internal/model"
)

// Index looks leaves up by id and by category path.
type Index struct {
	byLeaf map[int64]model.LeafHierarchy
	byPath map[string]model.LeafHierarchy
	leaves []model.LeafHierarchy
}

// NewIndex builds an index over the given hierarchies. When two leaves share
// a path the first one wins.
func NewIndex(leaves []model.LeafHierarchy) *Index {
	idx := &Index{
		byLeaf: make(map[int64]model.LeafHierarchy, len(leaves)),
		byPath: make(map[string]model.LeafHierarchy, len(leaves)),
		leaves: append([]model.LeafHierarchy(nil), leaves...),
	}
	for _, l := range leaves {
		idx.byLeaf[l.LeafID] = l
		if _, ok := idx.byPath[l.PathKey()]; !ok {
			idx.byPath[l.PathKey()] = l
		}
	}
	return idx
}

// ByLeaf returns the hierarchy of a leaf id.
func (i *Index) ByLeaf(id int64) (model.LeafHierarchy, bool) {
	h, ok := i.byLeaf[id]
	return h, ok
}

// ByPath returns the leaf at (category1, category2, category3).
func (i *Index) ByPath(category1, category2, category3 string) (model.LeafHierarchy, bool) {
	h, ok := i.byPath[model.PathKey(category1, category2, category3)]
	return h, ok
}

// Len returns the number of leaves.
func (i *Index) Len() int {
	return len(i.leaves)
}

// Version is the content fingerprint of the indexed taxonomy.
func (i *Index) Version() string {
	return fingerprint.Taxonomy(i.leaves)
}
