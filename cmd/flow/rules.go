package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/statement-flow/internal/cli"
	"github.com/Veraticus/statement-flow/internal/model"
	"github.com/Veraticus/statement-flow/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage keyword classification rules",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesImportCmd())
	cmd.AddCommand(rulesDisableCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			ruleSet, err := store.GetRules(ctx, cfg.User.ID, !all)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			rows := make([][]string, 0, len(ruleSet))
			for _, r := range ruleSet {
				rows = append(rows, []string{
					strconv.FormatInt(r.ID, 10),
					strconv.Itoa(r.Priority),
					cli.Truncate(r.KeyWords, 36),
					categoryPath(r.Category1, r.Category2, r.Category3),
					boolMark(r.Strict),
					string(r.Origin),
					boolMark(r.Active),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
				[]string{"ID", "Priority", "Keywords", "Target", "Strict", "Origin", "Active"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include disabled rules")
	return cmd
}

func rulesAddCmd() *cobra.Command {
	rule := model.Rule{Origin: model.RuleUser, Active: true}
	var target string
	cmd := &cobra.Command{
		Use:   "add KEYWORDS",
		Short: "Add a rule",
		Long: `Add a rule. KEYWORDS is a ';' separated list of expressions; the rule
matches when any expression occurs in the description.

  flow rules add "REWE;EDEKA" --target "Mercados/Supermercado/REWE" --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rule.KeyWords = args[0]
			rule.UserID = cfg.User.ID
			if rule.Name == "" {
				rule.Name = args[0]
			}
			parts := strings.SplitN(target, "/", 3)
			for len(parts) < 3 {
				parts = append(parts, "")
			}
			rule.Category1, rule.Category2, rule.Category3 = parts[0], parts[1], parts[2]
			if err := rules.Validate(rule); err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := store.CreateRule(ctx, &rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created rule %d.", rule.ID)))
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "category path as Category1/Category2/Category3")
	cmd.Flags().StringVar(&rule.Name, "name", "", "rule name (default: the keywords)")
	cmd.Flags().StringVar(&rule.KeyWordsNeg, "exclude", "", "negative keyword expressions")
	cmd.Flags().IntVar(&rule.Priority, "priority", 500, "rule priority; higher wins")
	cmd.Flags().BoolVar(&rule.Strict, "strict", false, "a strict match overrides every other rule")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func rulesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import rules from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			ruleSet, err := rules.Load(f)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			for i := range ruleSet {
				ruleSet[i].UserID = cfg.User.ID
				if err := store.CreateRule(ctx, &ruleSet[i]); err != nil {
					return fmt.Errorf("failed to create rule %q after importing %d: %w", ruleSet[i].Name, i, err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %d rules.", len(ruleSet))))
			return nil
		},
	}
}

func rulesDisableCmd() *cobra.Command {
	var enable bool
	cmd := &cobra.Command{
		Use:   "disable ID",
		Short: "Disable a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q: %w", args[0], err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := store.SetRuleActive(ctx, cfg.User.ID, id, enable); err != nil {
				return fmt.Errorf("failed to update rule %d: %w", id, err)
			}
			state := "disabled"
			if enable {
				state = "enabled"
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule %d %s.", id, state)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "re-enable the rule instead")
	return cmd
}
