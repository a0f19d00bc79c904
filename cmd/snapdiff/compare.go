package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Ning0612/snapdiff/internal/domain"
	"github.com/Ning0612/snapdiff/internal/export"
)

var compareCommand = &cobra.Command{
	Use:   "compare <old> <new>",
	Short: "List paths added, deleted or modified between two snapshots",
	Args:  cobra.ExactArgs(2),
	RunE:  compareMain,
}

var compareConfiguration struct {
	format   string
	output   string
	summary  bool
	statuses []string
	depth    int
	exitCode bool
	progress bool
}

var treeCommand = &cobra.Command{
	Use:   "tree <old> <new>",
	Short: "Show both snapshots side by side with aligned rows",
	Args:  cobra.ExactArgs(2),
	RunE:  treeMain,
}

var treeConfiguration struct {
	changesOnly bool
	colorMode   string
	exitCode    bool
	progress    bool
}

func init() {
	flags := compareCommand.Flags()
	flags.StringVarP(&compareConfiguration.format, "format", "f", "text", "Output format: text, csv or markdown")
	flags.StringVarP(&compareConfiguration.output, "output", "o", "", "Write the report to a file")
	flags.BoolVarP(&compareConfiguration.summary, "summary", "s", false, "Append summary statistics")
	flags.StringSliceVar(&compareConfiguration.statuses, "status", nil, "Only list these changes: added, deleted, modified")
	flags.IntVar(&compareConfiguration.depth, "depth", 0, "Only list paths with at most this many segments (0 for all)")
	flags.BoolVar(&compareConfiguration.exitCode, "exit-code", false, "Exit with status 2 when there are changes")
	flags.BoolVarP(&compareConfiguration.progress, "progress", "p", false, "Show scan progress on stderr")

	flags = treeCommand.Flags()
	flags.BoolVar(&treeConfiguration.changesOnly, "changes-only", false, "Hide subtrees without changes")
	flags.StringVar(&treeConfiguration.colorMode, "color", "auto", "Colorize output: auto, always or never")
	flags.BoolVar(&treeConfiguration.exitCode, "exit-code", false, "Exit with status 2 when there are changes")
	flags.BoolVarP(&treeConfiguration.progress, "progress", "p", false, "Show scan progress on stderr")
}

func compareMain(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(compareConfiguration.format)
	if err != nil {
		return err
	}
	statuses, err := parseStatuses(compareConfiguration.statuses)
	if err != nil {
		return err
	}
	if compareConfiguration.depth < 0 {
		return errInvalidFlag("depth", fmt.Sprint(compareConfiguration.depth))
	}
	if err := withProgress(cmd, compareConfiguration.progress); err != nil {
		return err
	}
	svc, err := current.service()
	if err != nil {
		return err
	}

	c, err := svc.Compare(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	w, closeOutput, err := openOutput(cmd, compareConfiguration.output)
	if err != nil {
		return err
	}
	err = export.WriteReport(w, c.Result, export.Options{
		Format:   format,
		Summary:  compareConfiguration.summary,
		Statuses: statuses,
		MaxDepth: compareConfiguration.depth,
	})
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if compareConfiguration.exitCode && c.Result.HasChanges() {
		return errChanges
	}
	return nil
}

func treeMain(cmd *cobra.Command, args []string) error {
	useColor, err := colorEnabled(treeConfiguration.colorMode)
	if err != nil {
		return err
	}
	if err := withProgress(cmd, treeConfiguration.progress); err != nil {
		return err
	}
	svc, err := current.service()
	if err != nil {
		return err
	}

	c, err := svc.Compare(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	if err := export.WriteSideBySide(cmd.OutOrStdout(), c.Union, export.TreeOptions{
		Color:       useColor,
		ChangesOnly: treeConfiguration.changesOnly,
		OldTitle:    c.Old.Label,
		NewTitle:    c.New.Label,
	}); err != nil {
		return err
	}

	if treeConfiguration.exitCode && c.Result.HasChanges() {
		return errChanges
	}
	return nil
}

// parseStatuses converts --status values; only change classifications are accepted
func parseStatuses(values []string) ([]domain.Classification, error) {
	var out []domain.Classification
	for _, v := range values {
		c, err := domain.ParseClassification(strings.TrimSpace(v))
		if err != nil {
			return nil, errInvalidFlag("status", v)
		}
		switch c {
		case domain.Added, domain.Deleted, domain.Modified:
			out = append(out, c)
		default:
			return nil, errInvalidFlag("status", v)
		}
	}
	return out, nil
}

// colorEnabled resolves a --color value; auto follows terminal detection
func colorEnabled(mode string) (bool, error) {
	switch mode {
	case "", "auto":
		return !color.NoColor, nil
	case "always":
		return true, nil
	case "never":
		return false, nil
	}
	return false, errInvalidFlag("color", mode)
}
