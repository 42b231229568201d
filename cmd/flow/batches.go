package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/statement-flow/internal/cli"
	"github.com/Veraticus/statement-flow/internal/model"
)

func batchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Inspect ingestion batches",
	}
	cmd.AddCommand(batchesListCmd())
	cmd.AddCommand(batchesShowCmd())
	return cmd
}

func batchesListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			batches, err := store.ListBatches(ctx, cfg.User.ID, limit)
			if err != nil {
				return fmt.Errorf("failed to list batches: %w", err)
			}
			if len(batches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No batches yet. Run 'flow upload FILE' to start."))
				return nil
			}

			rows := make([][]string, 0, len(batches))
			for _, b := range batches {
				rows = append(rows, []string{
					b.ID,
					cli.Truncate(b.Filename, 32),
					string(b.SourceFormat),
					cli.FormatBatchStatus(b.Status),
					strconv.Itoa(b.Diagnostics.NewItems),
					strconv.Itoa(b.Diagnostics.Duplicates),
					b.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
				[]string{"ID", "File", "Format", "Status", "New", "Dupes", "Created"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of batches to show")
	return cmd
}

func batchesShowCmd() *cobra.Command {
	var showItems bool
	cmd := &cobra.Command{
		Use:   "show BATCH",
		Short: "Show a batch with its diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			batch, err := store.GetBatch(ctx, cfg.User.ID, args[0])
			if err != nil {
				return fmt.Errorf("failed to load batch %s: %w", args[0], err)
			}
			counts, err := store.CountItems(ctx, batch.ID)
			if err != nil {
				return fmt.Errorf("failed to count items: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.RenderBox("Batch "+batch.ID, batchSummary(batch, counts)))
			for _, msg := range batch.Diagnostics.Messages {
				fmt.Fprintln(out, cli.FormatWarning(msg))
			}
			for _, failed := range batch.Diagnostics.FailedItems {
				fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("Row %d: %s", failed.RowIndex, failed.Error)))
			}

			if !showItems {
				return nil
			}
			items, err := store.ListItems(ctx, batch.ID, nil)
			if err != nil {
				return fmt.Errorf("failed to list items: %w", err)
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					strconv.Itoa(item.RowIndex),
					item.Parsed.Date.Format("2006-01-02"),
					item.Parsed.Amount.Decimal.StringFixed(2),
					cli.Truncate(item.Parsed.Description, 40),
					string(item.Status),
				})
			}
			fmt.Fprintln(out, cli.RenderTable([]string{"Row", "Date", "Amount", "Description", "Status"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showItems, "items", false, "list the batch items")
	return cmd
}

func batchSummary(batch *model.IngestionBatch, counts map[model.ItemStatus]int) string {
	diag := batch.Diagnostics
	pairs := []string{
		"File", batch.Filename,
		"Format", string(batch.SourceFormat),
		"Status", cli.FormatBatchStatus(batch.Status),
		"Rows", strconv.Itoa(diag.RowsTotal),
		"Pending", strconv.Itoa(counts[model.ItemPending]),
		"Imported", strconv.Itoa(counts[model.ItemImported]),
		"Duplicates", strconv.Itoa(counts[model.ItemDuplicate]),
		"Parser", batch.ParserVersion,
	}
	if diag.Encoding != "" {
		pairs = append(pairs, "Encoding", diag.Encoding)
	}
	if batch.RulesVersion != "" {
		pairs = append(pairs, "Rules", batch.RulesVersion)
	}
	if batch.CommittedAt != nil {
		pairs = append(pairs, "Committed", batch.CommittedAt.Local().Format("2006-01-02 15:04"))
	}
	if code, ok := diag.Extra["error_code"]; ok {
		pairs = append(pairs, "Error", fmt.Sprint(code))
	}
	return cli.KeyValues(pairs...)
}
