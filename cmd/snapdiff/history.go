package main

import (
	"github.com/spf13/cobra"

	"github.com/Ning0612/snapdiff/internal/export"
)

var historyCommand = &cobra.Command{
	Use:   "history",
	Short: "Show recorded comparisons, newest first",
	Args:  cobra.NoArgs,
	RunE:  historyMain,
}

var historyConfiguration struct {
	limit  int
	format string
}

func init() {
	flags := historyCommand.Flags()
	flags.IntVarP(&historyConfiguration.limit, "limit", "n", 20, "Maximum number of records")
	flags.StringVarP(&historyConfiguration.format, "format", "f", "text", "Output format: text, csv or markdown")
}

func historyMain(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(historyConfiguration.format)
	if err != nil {
		return err
	}
	store, err := current.openStore()
	if err != nil {
		return err
	}
	records, err := store.GetHistory(cmd.Context(), historyConfiguration.limit)
	if err != nil {
		return err
	}
	return export.WriteHistory(cmd.OutOrStdout(), records, format)
}
