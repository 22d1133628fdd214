// Package main provides the fpe-mcp binary: an MCP stdio server exposing
// the pattern engine to AI assistants as tools. The store file is a
// read-only input; the tools never train or mutate anything.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/fill-pattern-engine/internal/config"
	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
	"github.com/kirillkom/fill-pattern-engine/internal/core/usecase"
	"github.com/kirillkom/fill-pattern-engine/internal/infrastructure/repository/patternfile"
	"github.com/kirillkom/fill-pattern-engine/internal/observability/logging"
)

func main() {
	storePath := flag.String("store", "./data/patterns.json", "pattern store file")
	scoringPath := flag.String("scoring", "", "scoring config YAML (built-in defaults when empty)")
	flag.Parse()

	scoring, _, err := config.LoadScoring(*scoringPath)
	if err != nil {
		log.Fatalf("load scoring config: %v", err)
	}
	repo, err := patternfile.New(*storePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	// Logs go through the text handler on stderr; stdout belongs to the
	// MCP transport.
	logger := logging.NewTextLogger("warn")
	identifier := usecase.NewIdentifyUseCase(nil, scoring, logger)

	srv := server.NewMCPServer("fill-pattern-engine", "1.0.0")

	identifyTool := mcp.NewTool("identify_column",
		mcp.WithDescription("Identify whether a spreadsheet column is expected to be filled in by a human, "+
			"based on patterns learned from before/after document pairs. Returns the matched canonical label, "+
			"confidence, matching method and the fill/unknown decision."),
		mcp.WithString("header",
			mcp.Required(),
			mcp.Description("The column's header text as it appears on the sheet."),
		),
		mcp.WithArray("sample_values",
			mcp.Description("Optional sample values observed in the column, used for structural matching."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Decision threshold in [0,1]; the store's configured default when omitted."),
		),
	)
	srv.AddTool(identifyTool, identifyColumnHandler(repo, identifier, scoring))

	statsTool := mcp.NewTool("store_stats",
		mcp.WithDescription("Aggregate statistics of the pattern store: sheets, columns, "+
			"fillable columns and verifications learned so far."),
	)
	srv.AddTool(statsTool, storeStatsHandler(repo))

	if err := server.ServeStdio(srv); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}

func identifyColumnHandler(
	repo *patternfile.Repository,
	identifier *usecase.IdentifyUseCase,
	scoring domain.ScoringConfig,
) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		header, err := request.RequireString("header")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		samples := request.GetStringSlice("sample_values", nil)
		threshold := request.GetFloat("threshold", scoring.DecisionThreshold)

		store, err := repo.Load(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load store: %v", err)), nil
		}

		// One synthetic column behind a row-label column, so the request
		// travels the same path as a full document.
		sheet := syntheticSheet(header, samples)
		identified, err := identifier.IdentifySheet(ctx, store, sheet, threshold)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("identify: %v", err)), nil
		}
		if len(identified.Results) == 0 {
			return mcp.NewToolResultError("no identifiable column in request"), nil
		}

		payload, err := json.MarshalIndent(identified.Results[0], "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

func storeStatsHandler(repo *patternfile.Repository) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		store, err := repo.Load(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load store: %v", err)), nil
		}
		payload, err := json.MarshalIndent(store.Stats(), "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode stats: %v", err)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

func syntheticSheet(header string, samples []string) domain.SheetSnapshot {
	labelKey := domain.ColumnKey(0)
	valueKey := domain.ColumnKey(1)

	rows := make([]map[string]string, 0, len(samples))
	for i, sample := range samples {
		rows = append(rows, map[string]string{
			labelKey: fmt.Sprintf("row_%d", i+1),
			valueKey: sample,
		})
	}
	return domain.SheetSnapshot{
		Name:    "request",
		Columns: []string{labelKey, valueKey},
		Headers: map[string]string{valueKey: header},
		Rows:    rows,
	}
}
