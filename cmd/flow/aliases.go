package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/statement-flow/internal/cli"
	"github.com/Veraticus/statement-flow/internal/model"
)

func aliasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Manage display aliases for merchants",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			aliases, err := store.GetAliases(ctx, cfg.User.ID)
			if err != nil {
				return fmt.Errorf("failed to list aliases: %w", err)
			}
			rows := make([][]string, 0, len(aliases))
			for _, a := range aliases {
				rows = append(rows, []string{strconv.FormatInt(a.ID, 10), a.Alias, cli.Truncate(a.KeyWords, 48)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Alias", "Keywords"}, rows))
			return nil
		},
	})
	cmd.AddCommand(aliasesAddCmd())
	return cmd
}

func aliasesAddCmd() *cobra.Command {
	var logo string
	cmd := &cobra.Command{
		Use:   "add ALIAS KEYWORDS",
		Short: "Show ALIAS for descriptions matching KEYWORDS",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			alias := model.AliasAsset{UserID: cfg.User.ID, Alias: args[0], KeyWords: args[1], LogoURL: logo}
			if err := store.CreateAlias(ctx, &alias); err != nil {
				return fmt.Errorf("failed to create alias: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created alias %q.", alias.Alias)))
			return nil
		},
	}
	cmd.Flags().StringVar(&logo, "logo", "", "logo URL")
	return cmd
}
