package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/cardscan/internal/cli"
	"github.com/Veraticus/cardscan/internal/config"
	"github.com/Veraticus/cardscan/internal/service"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded scans",
		Long: `List scans recorded by 'cardscan scan', newest first.

Only masked numbers are ever stored.`,
		RunE: runHistory,
	}

	// Flags
	cmd.Flags().Int("limit", 20, "maximum number of scans to show (0 for all)")
	cmd.Flags().Bool("found", false, "only show scans that found a number")
	cmd.Flags().Duration("since", 0, "only show scans from this long ago (e.g. 24h)")

	cmd.AddCommand(pruneCmd())
	return cmd
}

func pruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old scans",
		RunE:  runPrune,
	}
	cmd.Flags().Duration("older-than", 30*24*time.Hour, "delete scans older than this")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	foundOnly, _ := cmd.Flags().GetBool("found")
	since, _ := cmd.Flags().GetDuration("since")

	filter := service.ScanFilter{Limit: limit, FoundOnly: foundOnly}
	if since > 0 {
		from := time.Now().Add(-since)
		filter.Since = &from
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, cleanup, err := getDatabase(cmd.Context(), cfg.Database.Path)
	if err != nil {
		return err
	}
	defer cleanup()

	return showHistory(cmd.Context(), store, filter, cmd.OutOrStdout())
}

func showHistory(ctx context.Context, store service.ScanStore, filter service.ScanFilter, out io.Writer) error {
	records, err := store.ListScans(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list scans: %w", err)
	}

	if _, err := fmt.Fprintln(out, cli.FormatTitle("Scan History")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out, cli.SubtitleStyle.Render(fmt.Sprintf("%d scans", len(records)))); err != nil {
		return err
	}
	return cli.WriteHistory(out, records)
}

func runPrune(cmd *cobra.Command, _ []string) error {
	olderThan, _ := cmd.Flags().GetDuration("older-than")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, cleanup, err := getDatabase(cmd.Context(), cfg.Database.Path)
	if err != nil {
		return err
	}
	defer cleanup()

	return pruneHistory(cmd.Context(), store, time.Now().Add(-olderThan), cmd.OutOrStdout())
}

func pruneHistory(ctx context.Context, store service.ScanStore, before time.Time, out io.Writer) error {
	deleted, err := store.DeleteScansBefore(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to prune scans: %w", err)
	}
	_, err = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Deleted %d scans recorded before %s", deleted, before.Format("2006-01-02 15:04"))))
	return err
}
