package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/fill-pattern-engine/internal/config"
	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
	"github.com/kirillkom/fill-pattern-engine/internal/core/usecase"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/repository/patternfile"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/source"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/source/snapshotjson"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/source/workbookxlsx"
	"github.com/kirillkom/fill-pattern-engine/internal/observability/logging"
)

func identifyCmd() *cobra.Command {
	var (
		inputPath   string
		storePath   string
		sheetName   string
		scoringPath string
		threshold   float64
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Identify fillable columns on a document",
		Long: `Loads a document, scores every column against the whole pattern
store and prints the per-column verdict. The store is read-only for the
duration of the run; identification never writes anything back.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIdentify(cmd.Context(), inputPath, storePath, sheetName, scoringPath, threshold, asJSON)
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "Document to identify (JSON export or xlsx)")
	cmd.Flags().StringVar(&storePath, "store", "./data/patterns.json", "Pattern store file")
	cmd.Flags().StringVar(&sheetName, "sheet", "", "Only identify this sheet (all data sheets when empty)")
	cmd.Flags().StringVar(&scoringPath, "scoring", "", "Scoring config YAML (built-in defaults when empty)")
	cmd.Flags().Float64Var(&threshold, "threshold", -1, "Decision threshold in [0,1] (scoring config default when negative)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit results as JSON instead of a table")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runIdentify(ctx context.Context, inputPath, storePath, sheetName, scoringPath string, threshold float64, asJSON bool) error {
	logger := logging.NewTextLogger(logLevel)

	scoring, _, err := config.LoadScoring(scoringPath)
	if err != nil {
		return err
	}
	if threshold < 0 {
		threshold = scoring.DecisionThreshold
	}

	repo, err := patternfile.New(storePath)
	if err != nil {
		return err
	}
	store, err := repo.Load(ctx)
	if err != nil {
		return err
	}
	if len(store.Sheets) == 0 {
		logger.Warn("pattern store is empty, every column will come back unknown", "store", storePath)
	}

	resolver := source.NewResolver(snapshotjson.New(), workbookxlsx.New())
	document, err := resolver.LoadDocument(ctx, inputPath)
	if err != nil {
		return err
	}

	sheets := document.Sheets
	if sheetName != "" {
		sheet, ok := document.Sheet(sheetName)
		if !ok {
			return fmt.Errorf("sheet %q not found in %s (has: %s): %w",
				sheetName, inputPath, strings.Join(document.SheetNames(), ", "), domain.ErrSheetNotFound)
		}
		sheets = []domain.SheetSnapshot{sheet}
	}

	// The oracle stays out of the CLI identify path: results must be
	// reproducible offline. The canonical tier simply contributes nothing.
	identifier := usecase.NewIdentifyUseCase(nil, scoring, logger)

	identified := make([]domain.SheetIdentification, 0, len(sheets))
	for _, sheet := range sheets {
		result, err := identifier.IdentifySheet(ctx, store, sheet, threshold)
		if err != nil {
			return err
		}
		identified = append(identified, result)
	}

	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(identified)
	}

	for _, sheet := range identified {
		printSheetIdentification(sheet)
	}
	return nil
}

func printSheetIdentification(sheet domain.SheetIdentification) {
	fmt.Printf("sheet %s (threshold %.2f): %d of %d column(s) to fill\n",
		sheet.SheetName, sheet.Threshold, sheet.FillColumns, len(sheet.Results))

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POS\tHEADER\tLABEL\tCONFIDENCE\tMETHOD\tSOURCES\tDECISION")
	for _, result := range sheet.Results {
		label := result.MatchedLabel
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%s\t%d\t%s\n",
			result.Position, result.SourceHeader, label,
			result.Confidence, result.Method, result.ContributingSources, result.Decision)
	}
	_ = w.Flush()
	fmt.Println()
}
