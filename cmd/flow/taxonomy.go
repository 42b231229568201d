package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/statement-flow/internal/cli"
	"github.com/Veraticus/statement-flow/internal/taxonomy"
)

func taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Manage the category taxonomy",
	}
	cmd.AddCommand(taxonomyImportCmd())
	cmd.AddCommand(taxonomyListCmd())
	return cmd
}

func taxonomyImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Create the leaves listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			leaves, err := taxonomy.LoadSeed(f)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			n, err := taxonomy.Seed(ctx, store, cfg.User.ID, leaves)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Ensured %d leaves.", n)))
			return nil
		},
	}
}

func taxonomyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every leaf with its app category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			leaves, err := store.GetLeafHierarchies(ctx, cfg.User.ID)
			if err != nil {
				return fmt.Errorf("failed to load taxonomy: %w", err)
			}

			rows := make([][]string, 0, len(leaves))
			for _, l := range leaves {
				rows = append(rows, []string{
					strconv.FormatInt(l.LeafID, 10), l.Category1, l.Category2, l.Category3, l.AppCategoryName,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.RenderTable([]string{"Leaf", "Category 1", "Category 2", "Category 3", "App category"}, rows))
			fmt.Fprintln(out, cli.FormatInfo("Taxonomy version "+taxonomy.NewIndex(leaves).Version()))
			return nil
		},
	}
}

func bootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Ensure the OPEN fallback category exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			chain, err := taxonomy.Bootstrap(ctx, store, cfg.User.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("OPEN category ready for %s (leaf %d).", cfg.User.ID, chain.LeafID)))
			return nil
		},
	}
}
