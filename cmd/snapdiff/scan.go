package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Ning0612/snapdiff/internal/snapshotio"
)

var scanCommand = &cobra.Command{
	Use:   "scan <source|directory>",
	Short: "Record a snapshot of a source or directory",
	Args:  cobra.ExactArgs(1),
	RunE:  scanMain,
}

var scanConfiguration struct {
	output   string
	progress bool
}

func init() {
	flags := scanCommand.Flags()
	flags.StringVarP(&scanConfiguration.output, "output", "o", "", "Also write the snapshot to this JSON file")
	flags.BoolVarP(&scanConfiguration.progress, "progress", "p", false, "Show scan progress on stderr")
}

func scanMain(cmd *cobra.Command, args []string) error {
	if err := withProgress(cmd, scanConfiguration.progress); err != nil {
		return err
	}
	svc, err := current.service()
	if err != nil {
		return err
	}

	r, err := svc.Scan(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if scanConfiguration.output != "" {
		if err := snapshotio.Save(scanConfiguration.output, r.Snapshot); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	files, dirs := r.Snapshot.Count()
	fmt.Fprintf(out, "Scanned %s: %s files, %s directories, %s\n",
		r.Label,
		humanize.Comma(int64(files)),
		humanize.Comma(int64(dirs)),
		humanize.IBytes(uint64(r.Snapshot.TotalSize())),
	)
	switch {
	case r.Record == nil:
	case r.Reused:
		fmt.Fprintf(out, "Unchanged since snapshot %s\n", r.Record.ID)
	default:
		fmt.Fprintf(out, "Stored as snapshot %s\n", r.Record.ID)
	}
	if scanConfiguration.output != "" {
		fmt.Fprintf(out, "Written to %s\n", scanConfiguration.output)
	}
	return nil
}
