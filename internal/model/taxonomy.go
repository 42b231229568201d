package model

import "strings"

// TaxonomyLevel1 is the root of a user's category tree.
type TaxonomyLevel1 struct {
	UserID string
	Name   string
	ID     int64
}

// TaxonomyLevel2 is a child of a level-1 node.
type TaxonomyLevel2 struct {
	Name     string
	ID       int64
	Level1ID int64
}

// TaxonomyLeaf is the unit a transaction is ultimately assigned to.
type TaxonomyLeaf struct {
	Name     string
	ID       int64
	Level2ID int64
}

// AppCategory is a UI-facing grouping layered over leaves.
type AppCategory struct {
	UserID string
	Name   string
	ID     int64
	Order  int
	Active bool
}

// LeafHierarchy is a leaf with its full ancestry and app category.
type LeafHierarchy struct {
	Category1       string
	Category2       string
	Category3       string
	AppCategoryName string
	AppCategoryID   *int64
	LeafID          int64
}

// PathKey is the lookup key for a leaf by its category names.
func (h LeafHierarchy) PathKey() string {
	return PathKey(h.Category1, h.Category2, h.Category3)
}

// PathKey builds the case-insensitive (category1, category2, category3) key.
func PathKey(category1, category2, category3 string) string {
	parts := []string{category1, category2, category3}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

// OpenChain holds the identifiers of the guaranteed OPEN fallback path.
type OpenChain struct {
	Level1ID      int64
	Level2ID      int64
	LeafID        int64
	AppCategoryID int64
}
