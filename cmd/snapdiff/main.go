package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Ning0612/snapdiff/internal/checksum"
	"github.com/Ning0612/snapdiff/internal/config"
	"github.com/Ning0612/snapdiff/internal/logger"
	"github.com/Ning0612/snapdiff/internal/service"
	"github.com/Ning0612/snapdiff/internal/state"
)

// Exit codes
const (
	exitOK      = 0
	exitError   = 1
	exitChanges = 2
)

// errChanges is returned by commands run with --exit-code when the two
// snapshots differ
var errChanges = errors.New("changes detected")

var rootCommand = &cobra.Command{
	Use:   "snapdiff",
	Short: "Record directory snapshots and compare them",
	Long: `snapdiff records the structure of a directory tree (local or Google Drive)
and compares two recordings: which paths were added, deleted or modified,
and how both trees line up side by side.

A snapshot reference is a configured source name, a directory, a snapshot
JSON file or a stored snapshot id (or id prefix). Use a source:, dir:,
file: or id: prefix to force one interpretation.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var rootConfiguration struct {
	configPath string
	verbose    bool
	quiet      bool
	noRecord   bool
	version    string
}

func init() {
	flags := rootCommand.PersistentFlags()
	flags.StringVarP(&rootConfiguration.configPath, "config", "c", "", "Config file (default: search ./, ./configs, user config dir)")
	flags.BoolVarP(&rootConfiguration.verbose, "verbose", "v", false, "Log debug output")
	flags.BoolVarP(&rootConfiguration.quiet, "quiet", "q", false, "Log errors only")
	flags.BoolVar(&rootConfiguration.noRecord, "no-record", false, "Do not store scans or comparison history")
	flags.StringVar(&rootConfiguration.version, "label-version", "", "Version label stored on scanned snapshots")

	rootCommand.AddCommand(
		scanCommand,
		compareCommand,
		treeCommand,
		exportCommand,
		annotateCommand,
		snapshotsCommand,
		historyCommand,
		authCommand,
	)
}

// env holds what commands share during one invocation
type env struct {
	cfg   *config.Config
	store *state.Manager
	svc   *service.CompareService
	err   io.Writer
}

var current *env

// setup loads the configuration and starts the logger
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rootConfiguration.configPath)
	if err != nil {
		return err
	}

	lc := cfg.LoggerConfig()
	switch {
	case rootConfiguration.verbose:
		lc.Level = logger.LevelDebug
	case rootConfiguration.quiet:
		lc.Level = logger.LevelError
	}
	for i := range lc.Outputs {
		if lc.Outputs[i].Type == logger.OutputStderr {
			lc.Outputs[i].Writer = cmd.ErrOrStderr()
		}
	}
	if err := logger.Init(lc); err != nil {
		return err
	}

	current = &env{cfg: cfg, err: cmd.ErrOrStderr()}
	return nil
}

// openStore opens the snapshot database once per invocation
func (e *env) openStore() (*state.Manager, error) {
	if e.store != nil {
		return e.store, nil
	}
	m, err := state.NewManager(e.cfg.StoreDir())
	if err != nil {
		return nil, err
	}
	if e.cfg.Scan.Fingerprint != "" {
		m.Fingerprint = checksum.Algorithm(e.cfg.Scan.Fingerprint)
	}
	e.store = m
	return m, nil
}

// service returns the compare service backed by the store
func (e *env) service() (*service.CompareService, error) {
	if e.svc != nil {
		return e.svc, nil
	}
	store, err := e.openStore()
	if err != nil {
		return nil, err
	}
	svc, err := service.NewCompareService(e.cfg, store, service.Options{
		Version:  rootConfiguration.version,
		NoRecord: rootConfiguration.noRecord,
	})
	if err != nil {
		return nil, err
	}
	e.svc = svc
	return svc, nil
}

func (e *env) close() {
	if e == nil {
		return
	}
	if e.svc != nil {
		if err := e.svc.Close(); err != nil {
			logger.Get().Warn("failed to close adapters", "error", err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logger.Get().Warn("failed to close store", "error", err)
		}
	}
}

// run executes the command line and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCommand.SetArgs(args)
	rootCommand.SetOut(stdout)
	rootCommand.SetErr(stderr)

	err := rootCommand.ExecuteContext(ctx)

	current.close()
	current = nil
	logger.Shutdown()

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errChanges):
		return exitChanges
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return exitError
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
