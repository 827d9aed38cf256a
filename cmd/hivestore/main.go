// hivestore stores tables and model artifacts in Hive-partitioned
// directory trees and browses them through their side-index.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"

	herrors "github.com/xtxerr/hivestore/internal/errors"
	"github.com/xtxerr/hivestore/internal/logging"
	"github.com/xtxerr/hivestore/internal/storage/config"
)

// Version is set at build time via ldflags
var Version = "dev"

// command is one subcommand. run receives the arguments after its name.
type command struct {
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = map[string]command{
	"write":   {"split a CSV file into a partitioned dataset", runWrite},
	"read":    {"read every shard at or below a path", runRead},
	"ls":      {"list the partitions directly below a path", runLs},
	"tree":    {"print the index tree below a path", runTree},
	"latest":  {"show the newest version of a model", runLatest},
	"metrics": {"print the evaluation metrics of a model", runMetrics},
	"shell":   {"browse a dataset interactively", runShell},
}

// env is the state every subcommand shares.
type env struct {
	cfg *config.Config
	out io.Writer
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// Exit codes beyond the generic failure.
const (
	exitFailure     = 1
	exitUsage       = 2
	exitNotFound    = 3
	exitBadIndex    = 4
	exitLockTimeout = 5
)

// exitCode maps an error to the process exit status by category.
func exitCode(err error) int {
	switch {
	case herrors.IsValidation(err):
		return exitUsage
	case herrors.IsNotFound(err):
		return exitNotFound
	case herrors.IsIndexError(err):
		return exitBadIndex
	case herrors.IsRetriable(err):
		return exitLockTimeout
	default:
		return exitFailure
	}
}

func run(args []string) error {
	var (
		cfgPath  string
		logLevel string
		logJSON  bool
		version  bool
	)

	flagSet := pflag.NewFlagSet("hivestore", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&cfgPath, "config", "hivestore.yaml", "config file path")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&logJSON, "log-json", false, "log in JSON")
	flagSet.BoolVar(&version, "version", false, "print the version")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if version {
		fmt.Printf("hivestore %s\n", Version)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(flagSet)
		return errors.New("no command given")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logging.Init(level, logJSON)

	cfg, err := loadConfig(cfgPath, flagSet.Changed("config"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithOperation(ctx, rest[0])

	return cmd.run(ctx, &env{cfg: cfg, out: os.Stdout}, rest[1:])
}

// loadConfig reads the config file. A missing default file falls back to
// the built-in defaults; a missing file named explicitly is an error.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		logging.Component("cli").Debug("no config file, using defaults", "path", path)
		return config.DefaultConfig(), nil
	}
	return nil, err
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: hivestore [flags] <command> [command flags] [args]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n%s", flagSet.FlagUsages())
}
