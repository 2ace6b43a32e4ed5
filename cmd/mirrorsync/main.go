package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/mirrorsync/internal/filter"
	"github.com/bamsammich/mirrorsync/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// globalOpts holds the persistent flags shared by every subcommand.
type globalOpts struct {
	workspace  string
	logFile    string
	bwLimitStr string
	sshKeyFile string
	sshPort    int
	verbose    bool
	quiet      bool
	dryRun     bool

	// --exclude/--include rules in command-line order, then --filter.
	chain      *filter.Chain
	filterFile string

	logCloser func() error
}

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared filter.Chain.
type filterFlag struct {
	chain   *filter.Chain
	include bool
}

var _ pflag.Value = (*filterFlag)(nil)

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string   { return "string" }

func (f *filterFlag) Set(val string) error {
	if f.include {
		return f.chain.AddInclude(val)
	}
	return f.chain.AddExclude(val)
}

func run() int {
	opts := &globalOpts{chain: filter.NewChain()}
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "mirrorsync <command>",
		Short: "Keep a local workspace and a remote SFTP tree in sync",
		Long: `mirrorsync keeps a local workspace and a directory on an SFTP server in
sync. It remembers what the server held the last time it looked, so deciding
what to push costs no remote calls for files that have not changed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setupLogging()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if opts.logCloser != nil {
				return opts.logCloser()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "mirrorsync %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.workspace, "workspace", "C", "", "workspace directory (default: nearest parent with .mirrorsync/)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.BoolVar(&opts.dryRun, "dry-run", false, "print the worklist without applying it")
	pf.StringVar(&opts.logFile, "log", "", "write structured JSON log to FILE")
	pf.StringVar(&opts.bwLimitStr, "bwlimit", "", "bandwidth limit (e.g. 100M, 1G)")
	pf.StringVar(&opts.sshKeyFile, "ssh-key", "", "SSH private key file (default: auto-detect)")
	pf.IntVar(&opts.sshPort, "ssh-port", 0, "SSH port (default: workspace setting or 22)")
	pf.Var(&filterFlag{chain: opts.chain}, "exclude", "skip local files matching PATTERN (repeatable)")
	pf.Var(&filterFlag{chain: opts.chain, include: true}, "include", "keep local files matching PATTERN even if ignored (repeatable)")
	pf.StringVar(&opts.filterFile, "filter", "", "read include/exclude rules from FILE")

	rootCmd.AddCommand(
		newInitCmd(opts),
		newStatusCmd(opts),
		newPushCmd(opts),
		newPullCmd(opts),
		newCleanCmd(opts),
		newSyncCmd(opts),
		newRefreshCmd(opts),
		newVerifyCmd(opts),
		newLogCmd(opts),
		docsCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// setupLogging installs the default slog logger: text on stderr, plus JSON
// to --log when set.
func (o *globalOpts) setupLogging() error {
	logLevel := slog.LevelWarn
	if o.verbose {
		logLevel = slog.LevelDebug
	} else if !o.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	var logHandler slog.Handler = textHandler
	if o.logFile != "" {
		lf, err := os.Create(o.logFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		o.logCloser = lf.Close
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))
	return nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
