package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/snapdiff/internal/annotate"
	"github.com/Ning0612/snapdiff/internal/snapshotio"
)

var exportCommand = &cobra.Command{
	Use:   "export <snapshot>",
	Short: "Write a snapshot as JSON, or its paths as an annotation CSV",
	Long: `Export writes the snapshot behind a reference to a JSON file that can be
compared later without the store. With --notes it writes a relative_path,note
CSV of every entry instead, ready to be edited and fed to annotate.`,
	Args: cobra.ExactArgs(1),
	RunE: exportMain,
}

var exportConfiguration struct {
	output string
	notes  bool
}

func init() {
	flags := exportCommand.Flags()
	flags.StringVarP(&exportConfiguration.output, "output", "o", "", "Destination file (stdout when empty)")
	flags.BoolVar(&exportConfiguration.notes, "notes", false, "Write an annotation CSV instead of snapshot JSON")
}

func exportMain(cmd *cobra.Command, args []string) error {
	svc, err := current.service()
	if err != nil {
		return err
	}
	r, err := svc.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if !exportConfiguration.notes && exportConfiguration.output != "" && exportConfiguration.output != "-" {
		if err := snapshotio.Save(exportConfiguration.output, r.Snapshot); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Written to %s\n", exportConfiguration.output)
		return nil
	}

	w, closeOutput, err := openOutput(cmd, exportConfiguration.output)
	if err != nil {
		return err
	}
	if exportConfiguration.notes {
		err = annotate.Write(w, r.Snapshot)
	} else {
		err = snapshotio.Encode(w, r.Snapshot)
	}
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	return err
}
