package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/snapdiff/internal/domain"
	"github.com/Ning0612/snapdiff/internal/progress"
)

const progressInterval = 200 * time.Millisecond

// openOutput returns a writer for path, or the command's stdout when path
// is empty or "-". The returned close function must always be called.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}

// withProgress installs a stderr status line reporter when enabled
func withProgress(cmd *cobra.Command, enabled bool) error {
	if !enabled {
		return nil
	}
	svc, err := current.service()
	if err != nil {
		return err
	}
	svc.SetProgressReporter(progress.NewWriterReporter(cmd.ErrOrStderr(), progressInterval))
	return nil
}

func errInvalidFlag(name, value string) error {
	return fmt.Errorf("%w: invalid --%s value %q", domain.ErrInvalidInput, name, value)
}
