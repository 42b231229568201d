package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedLeaf is one leaf of a taxonomy seed file.
type SeedLeaf struct {
	Category1   string `yaml:"category1"`
	Category2   string `yaml:"category2"`
	Category3   string `yaml:"category3"`
	AppCategory string `yaml:"app_category"`
}

// LoadSeed reads a YAML file of the form `leaves: [...]`.
func LoadSeed(r io.Reader) ([]SeedLeaf, error) {
	var file struct {
		Leaves []SeedLeaf `yaml:"leaves"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse taxonomy file: %w", err)
	}

	for i, leaf := range file.Leaves {
		if strings.TrimSpace(leaf.Category1) == "" ||
			strings.TrimSpace(leaf.Category2) == "" ||
			strings.TrimSpace(leaf.Category3) == "" {
			return nil, fmt.Errorf("leaf %d: category1, category2 and category3 are required", i+1)
		}
	}
	return file.Leaves, nil
}

// Seed creates the given leaves for a user. Leaves without an app category
// are filed under one named after their level-1 category.
func Seed(ctx context.Context, store Store, userID string, leaves []SeedLeaf) (int, error) {
	created := 0
	for _, leaf := range leaves {
		l1, err := store.FindOrCreateLevel1(ctx, userID, strings.TrimSpace(leaf.Category1))
		if err != nil {
			return created, fmt.Errorf("failed to ensure %q: %w", leaf.Category1, err)
		}
		l2, err := store.FindOrCreateLevel2(ctx, l1, strings.TrimSpace(leaf.Category2))
		if err != nil {
			return created, fmt.Errorf("failed to ensure %q: %w", leaf.Category2, err)
		}
		leafID, err := store.FindOrCreateLeaf(ctx, l2, strings.TrimSpace(leaf.Category3))
		if err != nil {
			return created, fmt.Errorf("failed to ensure %q: %w", leaf.Category3, err)
		}

		appName := strings.TrimSpace(leaf.AppCategory)
		if appName == "" {
			appName = strings.TrimSpace(leaf.Category1)
		}
		appID, err := store.FindOrCreateAppCategory(ctx, userID, appName)
		if err != nil {
			return created, fmt.Errorf("failed to ensure app category %q: %w", appName, err)
		}
		if err := store.LinkAppCategoryLeaf(ctx, appID, leafID); err != nil {
			return created, fmt.Errorf("failed to link leaf %q: %w", leaf.Category3, err)
		}
		created++
	}
	return created, nil
}
