package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/statement-flow/internal/cli"
	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/ingest"
)

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Parse a statement file into a preview batch",
		Long: `Parse a CSV, OFX/QFX or XLSX statement and stage its rows as a preview batch.
Rows already imported for the same source are kept as duplicates and will
not be committed.`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	result, err := newService(store, nil).UploadBatch(ctx, cfg.User.ID, data, filepath.Base(args[0]))
	if err != nil {
		var uploadErr *ingest.UploadError
		if errors.As(err, &uploadErr) {
			fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatError(fmt.Sprintf("%s: %v", uploadErr.Code, uploadErr.Err)))
			return fmt.Errorf("batch %s rejected: %w", uploadErr.BatchID, err)
		}
		return err
	}

	diag := result.Diagnostics
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.RenderBox("Batch ready for review", cli.KeyValues(
		"Batch", result.BatchID,
		"Format", string(result.Format),
		"Encoding", diag.Encoding,
		"Rows", strconv.Itoa(diag.RowsTotal),
		"New items", strconv.Itoa(result.NewItems),
		"Duplicates", strconv.Itoa(result.Duplicates),
	)))
	for _, msg := range diag.Messages {
		fmt.Fprintln(out, cli.FormatWarning(msg))
	}
	fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Run 'flow commit %s' to import.", result.BatchID)))
	return nil
}

func commitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit BATCH",
		Short: "Import the pending items of a preview batch",
		Args:  cobra.ExactArgs(1),
		RunE:  runCommit,
	}
}

func runCommit(cmd *cobra.Command, args []string) error {
	batchID := args[0]

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(),
		fmt.Sprintf("Pending items stay in the batch. Run 'flow commit %s' to resume.", batchID))

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	bar := cli.NewProgress(cmd.ErrOrStderr(), 0, "Committing")
	result, err := newService(store, bar.Update).CommitBatch(ctx, cfg.User.ID, batchID)
	bar.Finish()
	if err != nil {
		if interrupts.WasInterrupted() {
			return nil
		}
		if errors.Is(err, ingest.ErrAlreadyImported) {
			return common.NewUserError(fmt.Sprintf("Batch %s is already committed.", batchID), err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.RenderBox("Batch committed", cli.KeyValues(
		"Batch", result.BatchID,
		"Imported", strconv.Itoa(result.Imported),
		"Created", strconv.Itoa(result.Created),
		"Linked", strconv.Itoa(result.Linked),
		"Needs review", strconv.Itoa(result.NeedsReview),
		"Conflicts", strconv.Itoa(result.Conflicts),
		"Duration", result.Duration.Round(time.Millisecond).String(),
	)))
	for _, failed := range result.Failed {
		fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("Row %d: %s", failed.RowIndex, failed.Error)))
	}
	return nil
}

func rollbackCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rollback BATCH",
		Short: "Undo a committed batch and return it to preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollback(cmd, args[0], yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runRollback(cmd *cobra.Command, batchID string, yes bool) error {
	ctx := cmd.Context()

	if !yes {
		confirmer := cli.NewConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
		ok, err := confirmer.Confirm(ctx, fmt.Sprintf("Roll back batch %s?", batchID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Rollback cancelled."))
			return nil
		}
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	reset, err := newService(store, nil).RollbackBatch(ctx, cfg.User.ID, batchID)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
		fmt.Sprintf("Rolled back batch %s: %d items returned to pending.", batchID, reset)))
	return nil
}

func categorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categorize",
		Short: "Re-classify existing transactions with the current rules",
		Args:  cobra.NoArgs,
		RunE:  runCategorize,
	}
}

func runCategorize(cmd *cobra.Command, _ []string) error {
	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Run 'flow categorize' again to finish.")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	bar := cli.NewProgress(cmd.ErrOrStderr(), 0, "Categorizing")
	result, err := newService(store, bar.Update).ApplyCategorization(ctx, cfg.User.ID)
	bar.Finish()
	if err != nil {
		if interrupts.WasInterrupted() {
			return nil
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Categorization complete", cli.KeyValues(
		"Transactions", strconv.Itoa(result.Total),
		"Categorized", strconv.Itoa(result.Categorized),
		"Needs review", strconv.Itoa(result.NeedsReview),
		"Manual", strconv.Itoa(result.Manual),
	)))
	return nil
}
