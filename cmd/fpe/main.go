// Package main provides the fpe binary: an offline command line for
// training pattern stores from snapshot pairs, identifying fillable
// columns, and inspecting or merging store files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var logLevel string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fpe",
		Short: "Fill pattern engine for spreadsheet snapshots",
		Long: `fpe learns which spreadsheet columns humans fill by comparing
before/after snapshot pairs, keeps the learned patterns in a store file,
and identifies fillable columns on unseen documents.

Documents are JSON sheet exports or xlsx workbooks. Training pairs are
discovered by filename markers (before/empty/blank vs after/filled/fill).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(trainCmd())
	cmd.AddCommand(identifyCmd())
	cmd.AddCommand(storeCmd())
	return cmd
}
