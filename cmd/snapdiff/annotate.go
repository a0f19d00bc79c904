package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/snapdiff/internal/annotate"
	"github.com/Ning0612/snapdiff/internal/snapshotio"
)

var annotateCommand = &cobra.Command{
	Use:   "annotate <snapshot> <notes.csv>",
	Short: "Attach notes from a relative_path,note CSV to a snapshot",
	Long: `Annotate applies notes to the entries of a snapshot. Stored and scanned
snapshots are stored again with the notes; use --output to write the
annotated snapshot to a JSON file.`,
	Args: cobra.ExactArgs(2),
	RunE: annotateMain,
}

var annotateConfiguration struct {
	output string
	strict bool
}

func init() {
	flags := annotateCommand.Flags()
	flags.StringVarP(&annotateConfiguration.output, "output", "o", "", "Write the annotated snapshot to this JSON file")
	flags.BoolVar(&annotateConfiguration.strict, "strict", false, "Fail when a note names an unknown path")
}

func annotateMain(cmd *cobra.Command, args []string) error {
	notes, err := annotate.ReadFile(args[1])
	if err != nil {
		return err
	}

	svc, err := current.service()
	if err != nil {
		return err
	}
	r, report, err := svc.Annotate(cmd.Context(), args[0], notes)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Applied %d notes to %s\n", report.Applied, r.Label)
	for _, p := range report.Unknown {
		fmt.Fprintf(out, "  unknown path: %s\n", p)
	}
	if r.Record != nil && !r.Reused {
		fmt.Fprintf(out, "Stored as snapshot %s\n", r.Record.ID)
	}

	if annotateConfiguration.output != "" {
		if err := snapshotio.Save(annotateConfiguration.output, r.Snapshot); err != nil {
			return err
		}
		fmt.Fprintf(out, "Written to %s\n", annotateConfiguration.output)
	}

	if annotateConfiguration.strict && len(report.Unknown) > 0 {
		return fmt.Errorf("%d notes name unknown paths", len(report.Unknown))
	}
	return nil
}
