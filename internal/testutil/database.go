// Package testutil provides database fixtures for tests: an in-memory store
// with migrations applied and the OPEN taxonomy chain in place, plus a
// fluent builder for leaves, rules and aliases.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/statement-flow/internal/model"
	"github.com/Veraticus/statement-flow/internal/service"
	"github.com/Veraticus/statement-flow/internal/storage"
	"github.com/Veraticus/statement-flow/internal/taxonomy"
)

// DefaultUser owns the fixtures created by SetupTestDB.
const DefaultUser = "test-user"

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
	Fixture Fixture
	UserID  string
	Open    model.OpenChain
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup   func(context.Context, service.Storage) error
	Configure     func(*Builder) *Builder
	UserID        string
	SkipBootstrap bool
}

// SetupTestDB creates a migrated in-memory database with the OPEN chain
// bootstrapped for DefaultUser. The database is closed when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithBuilder creates a test database and seeds it using a builder.
//
// Example:
//
//	db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
//		return b.WithBasicTaxonomy().WithRule(testutil.Rule("REWE", "Mercados", "Supermercado", "REWE"))
//	})
func SetupTestDBWithBuilder(t *testing.T, configure func(*Builder) *Builder) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Configure: configure})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	if opts.UserID == "" {
		opts.UserID = DefaultUser
	}

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{
		Storage: store,
		UserID:  opts.UserID,
		t:       t,
	}

	if !opts.SkipBootstrap {
		if db.Open, err = taxonomy.Bootstrap(ctx, store, opts.UserID); err != nil {
			t.Fatalf("failed to bootstrap taxonomy: %v", err)
		}
	}

	if opts.Configure != nil {
		builder := opts.Configure(NewBuilder(t, opts.UserID))
		if db.Fixture, err = builder.Build(ctx, store); err != nil {
			t.Fatalf("failed to build fixtures: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return db
}

// MustLeafID returns the id of the leaf at the given path or fails the test.
func (db *TestDB) MustLeafID(category1, category2, category3 string) int64 {
	db.t.Helper()

	leaves, err := db.Storage.GetLeafHierarchies(context.Background(), db.UserID)
	if err != nil {
		db.t.Fatalf("failed to load taxonomy: %v", err)
	}
	idx := taxonomy.NewIndex(leaves)
	h, ok := idx.ByPath(category1, category2, category3)
	if !ok {
		db.t.Fatalf("leaf %s/%s/%s not found", category1, category2, category3)
	}
	return h.LeafID
}
