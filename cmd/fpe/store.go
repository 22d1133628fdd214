package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/fill-pattern-engine/internal/config"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/repository/patternfile"
)

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and combine pattern store files",
	}
	cmd.AddCommand(storeStatsCmd())
	cmd.AddCommand(storeMergeCmd())
	return cmd
}

func storeStatsCmd() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate statistics of a store file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStoreStats(cmd.Context(), storePath)
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "./data/patterns.json", "Pattern store file")
	return cmd
}

func runStoreStats(ctx context.Context, storePath string) error {
	repo, err := patternfile.New(storePath)
	if err != nil {
		return err
	}
	store, err := repo.Load(ctx)
	if err != nil {
		return err
	}

	stats := store.Stats()
	fmt.Printf("store %s\n", storePath)
	fmt.Printf("  version:          %d\n", stats.Version)
	if !stats.UpdatedAt.IsZero() {
		fmt.Printf("  updated:          %s\n", stats.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Printf("  sheets:           %d\n", stats.Sheets)
	fmt.Printf("  columns:          %d\n", stats.Columns)
	fmt.Printf("  fillable columns: %d\n", stats.FillableColumns)
	fmt.Printf("  verifications:    %d\n", stats.Verifications)

	for _, record := range store.Records() {
		fmt.Printf("  sheet %s: %d column(s), fillable [%s]\n",
			record.SheetKey, len(record.Fingerprints), strings.Join(record.FillableColumns, " "))
	}
	return nil
}

func storeMergeCmd() *cobra.Command {
	var (
		outPath     string
		scoringPath string
	)

	cmd := &cobra.Command{
		Use:   "merge <store>...",
		Short: "Merge store files into one",
		Long: `Folds every input store into the output store. Columns learned in
more than one input keep their observation-weighted averages, exactly as
if the training runs had happened against a single store.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStoreMerge(cmd.Context(), outPath, scoringPath, args)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "./data/patterns.json", "Output store file (merged into when it exists)")
	cmd.Flags().StringVar(&scoringPath, "scoring", "", "Scoring config YAML (built-in defaults when empty)")
	return cmd
}

func runStoreMerge(ctx context.Context, outPath, scoringPath string, inputs []string) error {
	scoring, _, err := config.LoadScoring(scoringPath)
	if err != nil {
		return err
	}

	outRepo, err := patternfile.New(outPath)
	if err != nil {
		return err
	}
	target, err := outRepo.Load(ctx)
	if err != nil {
		return err
	}

	for _, input := range inputs {
		repo, err := patternfile.New(input)
		if err != nil {
			return err
		}
		other, err := repo.Load(ctx)
		if err != nil {
			return fmt.Errorf("load %s: %w", input, err)
		}
		if err := target.MergeStore(other, scoring); err != nil {
			return fmt.Errorf("merge %s: %w", input, err)
		}
	}

	target.BumpVersion()
	if err := outRepo.Save(ctx, target); err != nil {
		return err
	}

	stats := target.Stats()
	fmt.Printf("merged %d store(s) into %s: %d sheet(s), %d column(s), version %d\n",
		len(inputs), outPath, stats.Sheets, stats.Columns, stats.Version)
	return nil
}
