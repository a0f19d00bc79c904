package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/snapdiff/internal/export"
	"github.com/Ning0612/snapdiff/internal/lock"
)

var snapshotsCommand = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage stored snapshots",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var snapshotsListCommand = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE:  snapshotsListMain,
}

var snapshotsDeleteCommand = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete stored snapshots and the history that references them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  snapshotsDeleteMain,
}

var snapshotsUnlockCommand = &cobra.Command{
	Use:   "unlock",
	Short: "Remove a store lock left by a crashed process",
	Args:  cobra.NoArgs,
	RunE:  snapshotsUnlockMain,
}

var snapshotsConfiguration struct {
	label  string
	limit  int
	format string
	force  bool
}

func init() {
	flags := snapshotsListCommand.Flags()
	flags.StringVarP(&snapshotsConfiguration.label, "label", "l", "", "Only list snapshots with this label")
	flags.IntVarP(&snapshotsConfiguration.limit, "limit", "n", 20, "Maximum number of snapshots")
	flags.StringVarP(&snapshotsConfiguration.format, "format", "f", "text", "Output format: text, csv or markdown")

	snapshotsUnlockCommand.Flags().BoolVar(&snapshotsConfiguration.force, "force", false, "Remove the lock even if its holder is alive")

	snapshotsCommand.AddCommand(
		snapshotsListCommand,
		snapshotsDeleteCommand,
		snapshotsUnlockCommand,
	)
}

func snapshotsListMain(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(snapshotsConfiguration.format)
	if err != nil {
		return err
	}
	store, err := current.openStore()
	if err != nil {
		return err
	}
	records, err := store.ListSnapshots(cmd.Context(), snapshotsConfiguration.label, snapshotsConfiguration.limit)
	if err != nil {
		return err
	}
	return export.WriteSnapshots(cmd.OutOrStdout(), records, format)
}

func snapshotsDeleteMain(cmd *cobra.Command, args []string) error {
	store, err := current.openStore()
	if err != nil {
		return err
	}
	l, err := lock.New(current.cfg.StoreDir())
	if err != nil {
		return err
	}
	if err := l.Acquire("delete"); err != nil {
		return err
	}
	defer l.Release()

	for _, ref := range args {
		if err := store.DeleteSnapshot(cmd.Context(), ref); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", ref)
	}
	return nil
}

func snapshotsUnlockMain(cmd *cobra.Command, args []string) error {
	l, err := lock.New(current.cfg.StoreDir())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if holder, err := l.Holder(); err == nil {
		if !snapshotsConfiguration.force {
			return &lock.LockError{Holder: holder, Reason: "holder is still running (use --force)"}
		}
		fmt.Fprintf(out, "Removing lock held by pid %d on %s\n", holder.PID, holder.Hostname)
	}
	if err := l.ForceRelease(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Store unlocked")
	return nil
}
