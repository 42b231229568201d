package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/statement-flow/internal/cli"
	"github.com/Veraticus/statement-flow/internal/model"
	"github.com/Veraticus/statement-flow/internal/service"
)

func transactionsCmd() *cobra.Command {
	var (
		needsReview bool
		limit       int
		offset      int
	)
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List committed transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			filter := service.TransactionFilter{UserID: cfg.User.ID, Limit: limit, Offset: offset}
			if needsReview {
				filter.NeedsReview = &needsReview
			}
			txns, err := store.GetTransactions(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			total, err := store.GetTransactionCount(ctx, cfg.User.ID)
			if err != nil {
				return fmt.Errorf("failed to count transactions: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.RenderTable(
				[]string{"ID", "Date", "Amount", "Description", "Category", "Status", "Conf", "Review"},
				transactionRows(txns)))
			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Showing %d of %d transactions.", len(txns), total)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&needsReview, "needs-review", false, "only transactions awaiting review")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of transactions")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many transactions")
	return cmd
}

func transactionRows(txns []model.Transaction) [][]string {
	rows := make([][]string, 0, len(txns))
	for _, t := range txns {
		desc := t.AliasDesc
		if desc == "" {
			desc = t.DescNorm
		}
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.PaymentDate.Format("2006-01-02"),
			t.Amount.StringFixed(2) + " " + t.Currency,
			cli.Truncate(desc, 36),
			categoryPath(t.Category1.String(), t.Category2, t.Category3),
			string(t.ResolutionStatus),
			strconv.Itoa(t.Confidence),
			boolMark(t.NeedsReview),
		})
	}
	return rows
}
